package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLevelOrdering(t *testing.T) {
	tests := []struct {
		name  string
		level AccessLevel
		min   AccessLevel
		want  bool
	}{
		{"read satisfies read", AccessRead, AccessRead, true},
		{"read does not satisfy write", AccessRead, AccessWrite, false},
		{"write satisfies read", AccessWrite, AccessRead, true},
		{"admin satisfies write", AccessAdmin, AccessWrite, true},
		{"none satisfies nothing", AccessNone, AccessRead, false},
		{"none satisfies none", AccessNone, AccessNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.AtLeast(tt.min))
		})
	}
}

func TestNewAccessLevel(t *testing.T) {
	for _, s := range []string{"none", "read", "write", "admin"} {
		level, err := NewAccessLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, level.String())
	}

	_, err := NewAccessLevel("owner")
	assert.Error(t, err)
}

func TestComputeHashValue(t *testing.T) {
	h1, err := ComputeHashValue([]byte("payload"))
	require.NoError(t, err)
	h2, err := ComputeHashValue([]byte("payload"))
	require.NoError(t, err)
	h3, err := ComputeHashValue([]byte("different"))
	require.NoError(t, err)

	assert.True(t, h1.Equal(h2))
	assert.False(t, h1.Equal(h3))
	assert.Len(t, h1.String(), 64)
}

func TestComputeHashValueRejectsEmpty(t *testing.T) {
	_, err := ComputeHashValue(nil)
	assert.Error(t, err)
}

func TestNewHashValueNormalizes(t *testing.T) {
	upper := "A3F2" + "00000000000000000000000000000000000000000000000000000000" + "BEEF"
	require.Len(t, upper, 64)

	h, err := NewHashValue(upper)
	require.NoError(t, err)
	assert.Equal(t, "a3f2", h.String()[:4])

	_, err = NewHashValue("not-a-hash")
	assert.Error(t, err)
}

func TestOTPCodeFormat(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"123456", false},
		{"000000", false},
		{"12345", true},
		{"1234567", true},
		{"12345a", true},
		{"", true},
	}

	for _, tt := range tests {
		_, err := NewOTPCode(tt.code)
		if tt.wantErr {
			assert.Error(t, err, tt.code)
		} else {
			assert.NoError(t, err, tt.code)
		}
	}
}

func TestOTPCodeMatches(t *testing.T) {
	code := MustNewOTPCode("428190")
	assert.True(t, code.Matches(MustNewOTPCode("428190")))
	assert.False(t, code.Matches(MustNewOTPCode("428191")))
	assert.False(t, code.Matches(OTPCode{}))
}

func TestGenerateOTPCode(t *testing.T) {
	code, err := GenerateOTPCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code.String())
}

func TestSequenceNumber(t *testing.T) {
	_, err := NewSequenceNumber(0)
	assert.Error(t, err)

	first := FirstSequenceNumber()
	assert.Equal(t, uint64(1), first.Value())

	next, err := first.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Value())
	assert.True(t, first.Before(next))
	assert.False(t, next.Before(first))
}

func TestSequenceNumberBounds(t *testing.T) {
	max, err := NewSequenceNumber(MaxSequenceNumber)
	require.NoError(t, err)

	_, err = max.Next()
	assert.Error(t, err)

	_, err = NewSequenceNumber(MaxSequenceNumber + 1)
	assert.Error(t, err)
}
