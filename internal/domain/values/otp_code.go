package values

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"regexp"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

// OTPCode is a 6-digit numeric one-time code used as the possession
// factor in the two-step login protocol.
type OTPCode struct {
	code string
}

var otpRegex = regexp.MustCompile(`^[0-9]{6}$`)

// NewOTPCode validates a code supplied by a caller
func NewOTPCode(code string) (OTPCode, error) {
	if !otpRegex.MatchString(code) {
		return OTPCode{}, errors.NewValidationError("INVALID_OTP_FORMAT",
			"code must be exactly 6 digits")
	}
	return OTPCode{code: code}, nil
}

// GenerateOTPCode produces a fresh cryptographically random 6-digit code
func GenerateOTPCode() (OTPCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return OTPCode{}, errors.NewInternalError("failed to generate code").WithCause(err)
	}
	return OTPCode{code: fmt.Sprintf("%06d", n.Int64())}, nil
}

// MustNewOTPCode validates a code and panics on error (for tests)
func MustNewOTPCode(code string) OTPCode {
	c, err := NewOTPCode(code)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the code digits
func (c OTPCode) String() string {
	return c.code
}

// IsZero reports whether the code is unset
func (c OTPCode) IsZero() bool {
	return c.code == ""
}

// Matches compares codes in constant time
func (c OTPCode) Matches(other OTPCode) bool {
	return subtle.ConstantTimeCompare([]byte(c.code), []byte(other.code)) == 1
}
