package authn

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
)

// Claims is the case-bound session credential. A token is only valid
// for the single case it was issued against; switching cases means
// authenticating again.
type Claims struct {
	OperatorID uuid.UUID `json:"operator_id"`
	SessionID  uuid.UUID `json:"session_id"`
	CaseID     uuid.UUID `json:"case_id"`
	Role       string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses session tokens. Possession of a
// structurally valid token is never sufficient on its own; the session
// it names must still be live server-side.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token bound to the operator, session, and case.
func (t *TokenIssuer) Issue(operatorID, sessionID, caseID uuid.UUID, role string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		OperatorID: operatorID,
		SessionID:  sessionID,
		CaseID:     caseID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        sessionID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, errors.NewInternalError("failed to sign token").WithCause(err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the claims.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.NewSessionInvalidError()
		}
		return t.secret, nil
	})
	if err != nil {
		if jwtErrorIsExpiry(err) {
			return nil, errors.NewSessionExpiredError()
		}
		return nil, errors.NewSessionInvalidError().WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.NewSessionInvalidError()
	}
	if claims.OperatorID == uuid.Nil || claims.SessionID == uuid.Nil || claims.CaseID == uuid.Nil {
		return nil, errors.NewSessionInvalidError()
	}
	return claims, nil
}

func jwtErrorIsExpiry(err error) bool {
	return err != nil && stderrors.Is(err, jwt.ErrTokenExpired)
}
