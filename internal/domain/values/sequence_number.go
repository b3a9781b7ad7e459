package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

// SequenceNumber represents the monotonic position of an entry in the
// audit ledger. Positions start at 1 and never repeat.
type SequenceNumber struct {
	value uint64
}

const (
	// MaxSequenceNumber is 2^63 - 1 for safe database storage
	MaxSequenceNumber = uint64(9223372036854775807)
	MinSequenceNumber = uint64(1)
)

// NewSequenceNumber creates a new SequenceNumber value object with validation
func NewSequenceNumber(value uint64) (SequenceNumber, error) {
	if value == 0 {
		return SequenceNumber{}, errors.NewValidationError("ZERO_SEQUENCE",
			"sequence number cannot be zero")
	}

	if value > MaxSequenceNumber {
		return SequenceNumber{}, errors.NewValidationError("SEQUENCE_TOO_LARGE",
			fmt.Sprintf("sequence number %d exceeds maximum %d", value, MaxSequenceNumber))
	}

	return SequenceNumber{value: value}, nil
}

// MustNewSequenceNumber creates SequenceNumber and panics on error (for tests)
func MustNewSequenceNumber(value uint64) SequenceNumber {
	seq, err := NewSequenceNumber(value)
	if err != nil {
		panic(err)
	}
	return seq
}

// FirstSequenceNumber returns the first sequence number (1)
func FirstSequenceNumber() SequenceNumber {
	return MustNewSequenceNumber(MinSequenceNumber)
}

// Value returns the sequence number value
func (s SequenceNumber) Value() uint64 {
	return s.value
}

// String returns the string representation of the sequence number
func (s SequenceNumber) String() string {
	return strconv.FormatUint(s.value, 10)
}

// IsZero reports whether the sequence number is unset
func (s SequenceNumber) IsZero() bool {
	return s.value == 0
}

// Next returns the following sequence number
func (s SequenceNumber) Next() (SequenceNumber, error) {
	return NewSequenceNumber(s.value + 1)
}

// Before reports whether s orders strictly before other
func (s SequenceNumber) Before(other SequenceNumber) bool {
	return s.value < other.value
}

// MarshalJSON implements json.Marshaler
func (s SequenceNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (s *SequenceNumber) UnmarshalJSON(data []byte) error {
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewSequenceNumber(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SQLValue returns the database representation. Named SQLValue because
// Value already returns the raw uint64.
func (s SequenceNumber) SQLValue() (driver.Value, error) {
	return int64(s.value), nil
}

// Scan implements sql.Scanner for database retrieval
func (s *SequenceNumber) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		parsed, err := NewSequenceNumber(uint64(v))
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into SequenceNumber", value)
	}
}
