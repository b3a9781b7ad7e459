package operator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

func newTestOperator(t *testing.T) *Operator {
	t.Helper()
	op, err := NewOperator("alice", "alice@example.org", "+15550000001", "hash", RoleUploader)
	require.NoError(t, err)
	return op
}

func TestNewOperatorValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		hash     string
		role     Role
		wantErr  bool
	}{
		{"valid", "alice", "a@example.org", "hash", RoleUploader, false},
		{"missing username", "", "a@example.org", "hash", RoleUploader, true},
		{"missing email", "alice", "", "hash", RoleUploader, true},
		{"missing hash", "alice", "a@example.org", "", RoleUploader, true},
		{"invalid role", "alice", "a@example.org", "hash", Role(99), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOperator(tt.username, tt.email, "", tt.hash, tt.role)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewOperatorStartsPending(t *testing.T) {
	op := newTestOperator(t)
	assert.Equal(t, StatusPending, op.Status)
	assert.Equal(t, KYCPending, op.KYC.Status)
	assert.False(t, op.IsActive())
	assert.False(t, op.IsKYCVerified())
}

func TestVerifyKYCActivates(t *testing.T) {
	op := newTestOperator(t)
	admin := uuid.New()

	require.NoError(t, op.VerifyKYC(admin))
	assert.Equal(t, StatusActive, op.Status)
	assert.True(t, op.IsKYCVerified())
	require.NotNil(t, op.KYC.VerifiedBy)
	assert.Equal(t, admin, *op.KYC.VerifiedBy)

	// A verified identity is not re-decidable.
	assert.Error(t, op.VerifyKYC(admin))
	assert.Error(t, op.RejectKYC(admin))
}

func TestRejectKYCBlocks(t *testing.T) {
	op := newTestOperator(t)
	require.NoError(t, op.RejectKYC(uuid.New()))
	assert.Equal(t, StatusBlocked, op.Status)
	assert.Equal(t, KYCRejected, op.KYC.Status)
}

func TestIsLockedAt(t *testing.T) {
	op := newTestOperator(t)
	now := time.Now().UTC()

	locked, _ := op.IsLockedAt(now)
	assert.False(t, locked)

	until := now.Add(10 * time.Minute)
	op.LockedUntil = &until

	locked, remaining := op.IsLockedAt(now)
	assert.True(t, locked)
	assert.InDelta(t, (10 * time.Minute).Seconds(), remaining.Seconds(), 1)

	// The boundary instant is unlocked.
	locked, _ = op.IsLockedAt(until)
	assert.False(t, locked)
}

func TestAddSessionEvictsOldest(t *testing.T) {
	op := newTestOperator(t)
	now := time.Now().UTC()

	var first uuid.UUID
	for i := 0; i <= MaxActiveSessions; i++ {
		s := Session{
			ID:        uuid.New(),
			CaseID:    uuid.New(),
			CreatedAt: now.Add(time.Duration(i) * time.Second),
			ExpiresAt: now.Add(8 * time.Hour),
			Active:    true,
		}
		if i == 0 {
			first = s.ID
		}
		op.AddSession(s)
	}

	assert.Len(t, op.Sessions, MaxActiveSessions)
	_, found := op.SessionByID(first)
	assert.False(t, found, "oldest session should have been evicted")
}

func TestRevokeSession(t *testing.T) {
	op := newTestOperator(t)
	s := Session{ID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour), Active: true}
	op.AddSession(s)

	op.RevokeSession(s.ID)
	stored, found := op.SessionByID(s.ID)
	require.True(t, found)
	assert.False(t, stored.Active)

	// Revoking again is a no-op.
	op.RevokeSession(s.ID)
}

func TestSessionIsLive(t *testing.T) {
	now := time.Now().UTC()
	s := Session{Active: true, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, s.IsLive(now))
	assert.False(t, s.IsLive(now.Add(2*time.Hour)))

	s.Active = false
	assert.False(t, s.IsLive(now))
}

func TestAddGrantReplacesLevel(t *testing.T) {
	op := newTestOperator(t)
	caseID := uuid.New()

	op.AddGrant(caseID, values.AccessRead)
	op.AddGrant(caseID, values.AccessWrite)

	require.Len(t, op.Grants, 1)
	g, ok := op.GrantFor(caseID)
	require.True(t, ok)
	assert.Equal(t, values.AccessWrite, g.Level)

	_, ok = op.GrantFor(uuid.New())
	assert.False(t, ok)
}

func TestOTPRecordExpiry(t *testing.T) {
	now := time.Now().UTC()
	rec := OTPRecord{
		Code:      values.MustNewOTPCode("123456"),
		ExpiresAt: now.Add(5 * time.Minute),
		SentAt:    now,
	}

	assert.False(t, rec.IsExpiredAt(now))
	assert.True(t, rec.IsExpiredAt(now.Add(5*time.Minute)))
	assert.True(t, rec.IsExpiredAt(now.Add(6*time.Minute)))
}

func TestOTPRecordAttemptBudget(t *testing.T) {
	rec := OTPRecord{Attempts: OTPMaxAttempts - 1}
	assert.False(t, rec.AttemptsExhausted())

	rec.Attempts = OTPMaxAttempts
	assert.True(t, rec.AttemptsExhausted())
}

func TestOTPRecordResendCooldown(t *testing.T) {
	now := time.Now().UTC()
	rec := OTPRecord{SentAt: now}

	assert.True(t, rec.InResendCooldown(now.Add(30*time.Second)))
	assert.False(t, rec.InResendCooldown(now.Add(OTPResendCooldown)))
}
