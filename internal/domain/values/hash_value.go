package values

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

// HashValue represents the SHA-256 content hash that identifies an evidence
// artifact. The hash, not any storage reference, is the integrity anchor.
type HashValue struct {
	hash string // Hex-encoded SHA-256 hash (64 characters)
}

var sha256HexRegex = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// NewHashValue creates a new HashValue value object with validation
func NewHashValue(hash string) (HashValue, error) {
	if hash == "" {
		return HashValue{}, errors.NewValidationError("EMPTY_HASH",
			"hash value cannot be empty")
	}

	normalized := strings.ToLower(strings.TrimSpace(hash))

	if !sha256HexRegex.MatchString(normalized) {
		return HashValue{}, errors.NewValidationError("INVALID_HASH_FORMAT",
			"hash must be a 64-character hexadecimal string (SHA-256)")
	}

	return HashValue{hash: normalized}, nil
}

// NewHashValueFromBytes creates HashValue from raw digest bytes
func NewHashValueFromBytes(bytes []byte) (HashValue, error) {
	if len(bytes) != 32 {
		return HashValue{}, errors.NewValidationError("INVALID_HASH_LENGTH",
			"hash must be 32 bytes (SHA-256)")
	}

	return HashValue{hash: hex.EncodeToString(bytes)}, nil
}

// ComputeHashValue computes the SHA-256 digest of the given content
func ComputeHashValue(data []byte) (HashValue, error) {
	if len(data) == 0 {
		return HashValue{}, errors.NewValidationError("EMPTY_DATA",
			"data to hash cannot be empty")
	}

	hash := sha256.Sum256(data)
	return NewHashValueFromBytes(hash[:])
}

// MustNewHashValue creates HashValue and panics on error (for constants/tests)
func MustNewHashValue(hash string) HashValue {
	h, err := NewHashValue(hash)
	if err != nil {
		panic(err)
	}
	return h
}

// String returns the hex-encoded hash
func (h HashValue) String() string {
	return h.hash
}

// IsZero reports whether the hash is unset
func (h HashValue) IsZero() bool {
	return h.hash == ""
}

// Equal compares two hash values
func (h HashValue) Equal(other HashValue) bool {
	return h.hash == other.hash
}

// MarshalJSON implements json.Marshaler
func (h HashValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.hash)
}

// UnmarshalJSON implements json.Unmarshaler
func (h *HashValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewHashValue(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Value implements driver.Valuer for database storage
func (h HashValue) Value() (driver.Value, error) {
	if h.hash == "" {
		return nil, nil
	}
	return h.hash, nil
}

// Scan implements sql.Scanner for database retrieval
func (h *HashValue) Scan(value interface{}) error {
	if value == nil {
		*h = HashValue{}
		return nil
	}

	switch v := value.(type) {
	case string:
		parsed, err := NewHashValue(v)
		if err != nil {
			return err
		}
		*h = parsed
		return nil
	case []byte:
		parsed, err := NewHashValue(string(v))
		if err != nil {
			return err
		}
		*h = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into HashValue", value)
	}
}
