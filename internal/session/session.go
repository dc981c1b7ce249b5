// Package session is the gate in front of every data view: it signs an
// operator in, checks the admin allow-list, keeps the session in local state
// across restarts, and refreshes it before it lapses.
package session

import (
	"errors"
	"strings"
	"time"

	"swipedesk/internal/remote"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSession = errors.New("no active session")

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id,omitempty"`
	Email        string    `json:"email"`
}

// FromToken builds a session from an auth response. Expiry comes from
// expires_at, then expires_in, then the access token's exp claim. Identity
// fields missing from the response are filled from the token's claims.
func FromToken(tok *remote.Token, now time.Time) *Session {
	s := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		UserID:       tok.User.ID,
		Email:        strings.ToLower(strings.TrimSpace(tok.User.Email)),
	}
	switch {
	case tok.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tok.ExpiresAt, 0)
	case tok.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	c := peekClaims(tok.AccessToken)
	if s.ExpiresAt.IsZero() && !c.expiresAt.IsZero() {
		s.ExpiresAt = c.expiresAt
	}
	if s.UserID == "" {
		s.UserID = c.subject
	}
	if s.Email == "" {
		s.Email = strings.ToLower(c.email)
	}
	return s
}

type tokenClaims struct {
	subject   string
	email     string
	expiresAt time.Time
}

// peekClaims reads claims without verifying the signature; the token is only
// ever sent back to the service that issued it.
func peekClaims(token string) tokenClaims {
	var out tokenClaims
	if token == "" {
		return out
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return out
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.expiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		out.subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.email = email
	}
	return out
}

// Expired reports whether the session has lapsed at now. A session with no
// known expiry never lapses locally.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the session lapses within d of now.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !s.ExpiresAt.IsZero() && !now.Add(d).Before(s.ExpiresAt)
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s *Session) same(o *Session) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	return s.AccessToken == o.AccessToken &&
		s.RefreshToken == o.RefreshToken &&
		s.ExpiresAt.Equal(o.ExpiresAt) &&
		s.UserID == o.UserID &&
		s.Email == o.Email
}
