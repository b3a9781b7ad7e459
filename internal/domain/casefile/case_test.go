package casefile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
)

func newTestCase(t *testing.T) *Case {
	t.Helper()
	c, err := NewCase("CASE-2024-001", "Warehouse burglary", "", uuid.New())
	require.NoError(t, err)
	return c
}

func TestNewCaseValidation(t *testing.T) {
	_, err := NewCase("", "name", "", uuid.New())
	assert.Error(t, err)

	_, err = NewCase("CASE-1", "", "", uuid.New())
	assert.Error(t, err)

	c := newTestCase(t)
	assert.Equal(t, StatusActive, c.Status)
	assert.True(t, c.IsActive())
	assert.False(t, c.IsTerminal())
}

func TestCaseLifecycle(t *testing.T) {
	c := newTestCase(t)

	// Active cases cannot be archived or reopened.
	assert.Error(t, c.Archive())
	assert.Error(t, c.Reopen())

	require.NoError(t, c.Close())
	assert.Equal(t, StatusClosed, c.Status)
	assert.True(t, c.IsTerminal())
	assert.Error(t, c.Close())

	require.NoError(t, c.Reopen())
	assert.True(t, c.IsActive())

	require.NoError(t, c.Close())
	require.NoError(t, c.Archive())
	assert.Equal(t, StatusArchived, c.Status)

	// Archived is final.
	assert.Error(t, c.Reopen())
	assert.Error(t, c.Close())
}

func TestAssignIsIdempotent(t *testing.T) {
	c := newTestCase(t)
	opID := uuid.New()

	c.Assign(opID, operator.RoleVerifier)
	c.Assign(opID, operator.RoleVerifier)

	assert.Len(t, c.Assigned, 1)
	assert.Equal(t, opID, c.Assigned[0].OperatorID)
}

func TestAppendTimeline(t *testing.T) {
	c := newTestCase(t)
	actor := uuid.New()

	c.AppendTimeline("upload", actor, "dump.bin")
	c.AppendTimeline("verify", actor, "")

	require.Len(t, c.Timeline, 2)
	assert.Equal(t, "upload", c.Timeline[0].Action)
	assert.Equal(t, "verify", c.Timeline[1].Action)
	assert.False(t, c.Timeline[0].Timestamp.After(c.Timeline[1].Timestamp))
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusPending, StatusClosed, StatusArchived} {
		parsed, ok := ParseStatus(s.String())
		require.True(t, ok)
		assert.Equal(t, s, parsed)
	}
}
