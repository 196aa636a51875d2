// Package session holds per-run application context: the session
// identifier, credential source, and user preferences that the rest of
// the engine receives explicitly instead of through ambient state.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/streamline-ai/chat-client/internal/model"
)

// ErrNoToken is returned when a credential source has nothing to offer.
var ErrNoToken = errors.New("session: no access token configured")

// ErrTokenExpired is returned when the configured token's exp claim has
// already passed.
var ErrTokenExpired = errors.New("session: access token expired")

// CredentialSource yields the access token for outbound calls.
type CredentialSource interface {
	AccessToken() (string, error)
}

// StaticToken is a credential source backed by a fixed token string.
// When the token is a JWT, its expiry claim is checked on each access;
// the signature is not verified here because the client holds no key
// material, only the service does.
type StaticToken string

// AccessToken implements CredentialSource.
func (t StaticToken) AccessToken() (string, error) {
	if t == "" {
		return "", ErrNoToken
	}

	token := string(t)
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque tokens are passed through as-is.
		return token, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, nil
	}
	if exp.Before(time.Now()) {
		return "", fmt.Errorf("%w (at %s)", ErrTokenExpired, exp.Format(time.RFC3339))
	}
	return token, nil
}

// Session is the explicit application context passed to constructors.
// Created once at startup and torn down at shutdown.
type Session struct {
	ID          string
	Creds       CredentialSource
	Timezone    *time.Location
	Preferences model.Preferences
	ModelParams model.ModelParams
}

// New creates a session with a fresh identifier. A nil timezone falls
// back to the system's local zone.
func New(creds CredentialSource, tz *time.Location) *Session {
	if tz == nil {
		tz = time.Local
	}
	return &Session{
		ID:       uuid.NewString(),
		Creds:    creds,
		Timezone: tz,
		ModelParams: model.ModelParams{
			ReasoningEffort: "medium",
			IncludeSearch:   false,
		},
	}
}

// TimezoneName returns the IANA name sent with requests.
func (s *Session) TimezoneName() string {
	return s.Timezone.String()
}
