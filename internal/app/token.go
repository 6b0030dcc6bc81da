package app

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quiz-lobby-service/internal/domain"
)

// TokenIssuer mints and verifies the opaque per-participant identity carrier.
// A token proves nothing beyond possession; it resolves back to a participant
// ID on later requests.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

type participantClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Issue signs a token for a participant at join time.
func (t *TokenIssuer) Issue(participantID, sessionID string) (string, error) {
	now := t.now()
	claims := participantClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Resolve verifies a token and returns the participant ID it carries.
func (t *TokenIssuer) Resolve(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &participantClaims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil || !parsed.Valid {
		return "", domain.ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*participantClaims)
	if !ok || claims.Subject == "" {
		return "", domain.ErrTokenInvalid
	}
	return claims.Subject, nil
}
