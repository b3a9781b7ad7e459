package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

// AccessLevel is a per-case grant level with the total order
// none < read < write < admin. It is distinct from an operator's
// system-wide role.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessWrite
	AccessAdmin
)

// NewAccessLevel parses a stored access level string
func NewAccessLevel(s string) (AccessLevel, error) {
	switch s {
	case "none":
		return AccessNone, nil
	case "read":
		return AccessRead, nil
	case "write":
		return AccessWrite, nil
	case "admin":
		return AccessAdmin, nil
	default:
		return AccessNone, errors.NewValidationError("INVALID_ACCESS_LEVEL",
			fmt.Sprintf("unknown access level %q", s))
	}
}

// MustNewAccessLevel parses an access level and panics on error (for tests)
func MustNewAccessLevel(s string) AccessLevel {
	l, err := NewAccessLevel(s)
	if err != nil {
		panic(err)
	}
	return l
}

func (l AccessLevel) String() string {
	switch l {
	case AccessNone:
		return "none"
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// IsValid reports whether the level is one of the defined values
func (l AccessLevel) IsValid() bool {
	return l >= AccessNone && l <= AccessAdmin
}

// AtLeast reports whether l satisfies the minimum level under the
// total order none < read < write < admin.
func (l AccessLevel) AtLeast(min AccessLevel) bool {
	return l >= min
}

// MarshalJSON implements json.Marshaler
func (l AccessLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (l *AccessLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewAccessLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Value implements driver.Valuer for database storage
func (l AccessLevel) Value() (driver.Value, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("invalid access level %d", int(l))
	}
	return l.String(), nil
}

// Scan implements sql.Scanner for database retrieval
func (l *AccessLevel) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		parsed, err := NewAccessLevel(v)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	case []byte:
		parsed, err := NewAccessLevel(string(v))
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into AccessLevel", value)
	}
}
