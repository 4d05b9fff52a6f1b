// Package auth mints and verifies the HS256 tokens handed to clients.
// A token carries its user, its session and its kind; expiry is fixed at
// issue time from the kind's lifetime.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id,omitempty"`
	Kind      models.TokenKind `json:"type"`
}

// TTLs holds the lifetime of each token kind.
type TTLs struct {
	Access  time.Duration
	Refresh time.Duration
	Reset   time.Duration
}

type Issuer struct {
	secret []byte
	clock  common.Clock
	ttls   TTLs
}

func NewIssuer(secret []byte, clock common.Clock, ttls TTLs) *Issuer {
	if clock == nil {
		clock = common.RealClock()
	}
	return &Issuer{secret: secret, clock: clock, ttls: ttls}
}

func (i *Issuer) ttl(kind models.TokenKind) (time.Duration, error) {
	switch kind {
	case models.TokenAccess:
		return i.ttls.Access, nil
	case models.TokenRefresh:
		return i.ttls.Refresh, nil
	case models.TokenReset:
		return i.ttls.Reset, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", common.ErrInvalidToken, kind)
	}
}

// Issue signs a token of kind for userID bound to sessionID.
func (i *Issuer) Issue(userID, sessionID string, kind models.TokenKind) (string, error) {
	ttl, err := i.ttl(kind)
	if err != nil {
		return "", err
	}
	now := i.clock.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		SessionID: sessionID,
		Kind:      kind,
	})

	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Parse verifies signature, expiry and kind.
func (i *Issuer) Parse(tokenString string, want models.TokenKind) (*models.TokenInfo, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	if claims.Kind != want {
		return nil, fmt.Errorf("%w: want %s token, got %q", common.ErrInvalidToken, want, claims.Kind)
	}

	info := &models.TokenInfo{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Kind:      claims.Kind,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
