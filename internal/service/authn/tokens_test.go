package authn

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	operatorID, sessionID, caseID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	token, expiresAt, err := issuer.Issue(operatorID, sessionID, caseID, "verifier", now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), expiresAt, time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, operatorID, claims.OperatorID)
	assert.Equal(t, sessionID, claims.SessionID)
	assert.Equal(t, caseID, claims.CaseID)
	assert.Equal(t, "verifier", claims.Role)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)

	token, _, err := issuer.Issue(uuid.New(), uuid.New(), uuid.New(), "admin",
		time.Now().UTC().Add(-2*time.Minute))
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "SESSION_EXPIRED"))
}

func TestTokenWrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("secret-a", time.Hour).
		Issue(uuid.New(), uuid.New(), uuid.New(), "admin", time.Now().UTC())
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b", time.Hour).Parse(token)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "SESSION_INVALID"))
}

func TestTokenGarbage(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.Parse(tok)
		assert.Error(t, err, tok)
	}
}

func TestTokenMissingBindings(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	// A token without a case binding is structurally invalid.
	token, _, err := issuer.Issue(uuid.New(), uuid.New(), uuid.Nil, "admin", time.Now().UTC())
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.True(t, errors.IsCode(err, "SESSION_INVALID"))
}
