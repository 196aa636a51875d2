package session_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamline-ai/chat-client/internal/session"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestStaticTokenEmpty(t *testing.T) {
	_, err := session.StaticToken("").AccessToken()
	assert.ErrorIs(t, err, session.ErrNoToken)
}

func TestStaticTokenOpaquePassthrough(t *testing.T) {
	got, err := session.StaticToken("not-a-jwt-at-all").AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "not-a-jwt-at-all", got)
}

func TestStaticTokenValidJWT(t *testing.T) {
	raw := signedToken(t, time.Now().Add(time.Hour))
	got, err := session.StaticToken(raw).AccessToken()
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestStaticTokenExpiredJWT(t *testing.T) {
	raw := signedToken(t, time.Now().Add(-time.Minute))
	_, err := session.StaticToken(raw).AccessToken()
	assert.ErrorIs(t, err, session.ErrTokenExpired)
}

func TestNewSession(t *testing.T) {
	s := session.New(session.StaticToken("tok"), time.UTC)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "UTC", s.TimezoneName())
	assert.Equal(t, "medium", s.ModelParams.ReasoningEffort)

	other := session.New(session.StaticToken("tok"), time.UTC)
	assert.NotEqual(t, s.ID, other.ID)
}

func TestNewSessionNilTimezone(t *testing.T) {
	s := session.New(session.StaticToken("tok"), nil)
	require.NotNil(t, s.Timezone)
}
