package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0   = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ttls = TTLs{Access: 24 * time.Hour, Refresh: 30 * 24 * time.Hour, Reset: time.Hour}
)

func TestIssueAndParse(t *testing.T) {
	clock := common.NewManualClock(t0)
	i := NewIssuer([]byte("secret"), clock, ttls)

	tok, err := i.Issue("user_1", "session_1", models.TokenAccess)
	require.NoError(t, err)

	info, err := i.Parse(tok, models.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "user_1", info.UserID)
	assert.Equal(t, "session_1", info.SessionID)
	assert.Equal(t, models.TokenAccess, info.Kind)
	assert.True(t, info.ExpiresAt.Equal(t0.Add(24*time.Hour)))
}

func TestParse_ExpiryPerKind(t *testing.T) {
	tests := []struct {
		kind models.TokenKind
		ttl  time.Duration
	}{
		{models.TokenAccess, ttls.Access},
		{models.TokenRefresh, ttls.Refresh},
		{models.TokenReset, ttls.Reset},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			clock := common.NewManualClock(t0)
			i := NewIssuer([]byte("secret"), clock, ttls)
			tok, err := i.Issue("user_1", "session_1", tt.kind)
			require.NoError(t, err)

			clock.Set(t0.Add(tt.ttl - time.Second))
			_, err = i.Parse(tok, tt.kind)
			require.NoError(t, err, "still valid just before expiry")

			clock.Set(t0.Add(tt.ttl + time.Second))
			_, err = i.Parse(tok, tt.kind)
			assert.ErrorIs(t, err, common.ErrTokenExpired)
		})
	}
}

func TestParse_WrongKind(t *testing.T) {
	i := NewIssuer([]byte("secret"), common.NewManualClock(t0), ttls)
	tok, err := i.Issue("user_1", "session_1", models.TokenRefresh)
	require.NoError(t, err)

	_, err = i.Parse(tok, models.TokenAccess)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParse_WrongSecret(t *testing.T) {
	clock := common.NewManualClock(t0)
	tok, err := NewIssuer([]byte("right"), clock, ttls).Issue("user_1", "s", models.TokenAccess)
	require.NoError(t, err)

	_, err = NewIssuer([]byte("wrong"), clock, ttls).Parse(tok, models.TokenAccess)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParse_Malformed(t *testing.T) {
	i := NewIssuer([]byte("secret"), common.NewManualClock(t0), ttls)
	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := i.Parse(tok, models.TokenAccess)
		assert.ErrorIs(t, err, common.ErrInvalidToken, tok)
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	clock := common.NewManualClock(t0)
	i := NewIssuer([]byte("secret"), clock, ttls)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour))},
		UserID:           "user_1",
		Kind:             models.TokenAccess,
	})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = i.Parse(s, models.TokenAccess)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParse_NoExpiry(t *testing.T) {
	i := NewIssuer([]byte("secret"), common.NewManualClock(t0), ttls)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user_1", Kind: models.TokenAccess})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = i.Parse(s, models.TokenAccess)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestIssue_UnknownKind(t *testing.T) {
	i := NewIssuer([]byte("secret"), nil, ttls)
	_, err := i.Issue("user_1", "", models.TokenKind("magic"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
