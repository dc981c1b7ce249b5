package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"swipedesk/internal/apperr"
	"swipedesk/internal/catalog"
	"swipedesk/internal/logging"
	"swipedesk/internal/remote"
)

// Event names an auth transition.
type Event string

const (
	EventInitial        Event = "initial"
	EventSignedIn       Event = "signed_in"
	EventSignedOut      Event = "signed_out"
	EventTokenRefreshed Event = "token_refreshed"
)

const (
	DefaultRefreshSkew = 60 * time.Second
	accessDenied       = "Access denied! You are not an admin."
)

// Backend is what the gate needs from the hosted service.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*remote.Token, error)
	RefreshSession(ctx context.Context, refreshToken string) (*remote.Token, error)
	SignOut(ctx context.Context, accessToken string) error
	SetAccessToken(token string)
	IsAdmin(ctx context.Context, email string) (bool, error)
}

type remoteBackend struct {
	*remote.Client
}

// Remote adapts a remote client, checking the allow-list against the
// admins collection.
func Remote(c *remote.Client) Backend {
	return remoteBackend{Client: c}
}

func (b remoteBackend) IsAdmin(ctx context.Context, email string) (bool, error) {
	_, err := b.Collection(catalog.Admins).Select("email").FindOne(ctx, "email", email)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type Gate struct {
	store   *Store
	backend Backend
	log     *slog.Logger
	now     func() time.Time
	skew    time.Duration

	mu        sync.Mutex
	current   *Session
	confirmed bool
	listeners []func(Event, *Session)
}

type GateOption func(*Gate)

func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.log = l }
}

func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithRefreshSkew sets how close to expiry Refresh starts exchanging tokens.
func WithRefreshSkew(d time.Duration) GateOption {
	return func(g *Gate) { g.skew = d }
}

func NewGate(store *Store, backend Backend, opts ...GateOption) *Gate {
	g := &Gate{
		store:   store,
		backend: backend,
		now:     time.Now,
		skew:    DefaultRefreshSkew,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = logging.OrDiscard(g.log)
	return g
}

// Subscribe registers fn for every transition that changes the session.
func (g *Gate) Subscribe(fn func(Event, *Session)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

// Session returns a copy of the current session, or nil.
func (g *Gate) Session() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current.Clone()
}

// Authorized reports whether a session is present and has passed the admin
// allow-list check.
func (g *Gate) Authorized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil && g.confirmed
}

// OnChange records an auth transition: a non-nil session is persisted, nil
// clears local state. Repeating the current state is a no-op.
func (g *Gate) OnChange(ctx context.Context, event Event, s *Session) error {
	return g.apply(ctx, event, s, false)
}

func (g *Gate) apply(ctx context.Context, event Event, s *Session, confirmed bool) error {
	g.mu.Lock()
	if s == nil {
		had := g.current != nil
		if _, err := g.store.Delete(ctx, StateKey); err != nil {
			g.mu.Unlock()
			return err
		}
		g.current = nil
		g.confirmed = false
		g.backend.SetAccessToken("")
		listeners := g.listeners
		g.mu.Unlock()
		if had {
			g.log.Info("session cleared", "event", string(event))
			notify(listeners, event, nil)
		}
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		g.mu.Unlock()
		return apperr.Auth("could not save session", err)
	}
	if _, err := g.store.Put(ctx, StateKey, string(data)); err != nil {
		g.mu.Unlock()
		return err
	}
	changed := !g.current.same(s)
	if !confirmed && g.confirmed && g.current != nil && g.current.Email == s.Email {
		confirmed = true
	}
	g.current = s.Clone()
	g.confirmed = confirmed
	g.backend.SetAccessToken(s.AccessToken)
	listeners := g.listeners
	g.mu.Unlock()

	if changed {
		g.log.Info("session stored", "event", string(event), "email", s.Email, "expires_at", s.ExpiresAt)
		notify(listeners, event, s.Clone())
	}
	return nil
}

func notify(listeners []func(Event, *Session), event Event, s *Session) {
	for _, fn := range listeners {
		fn(event, s)
	}
}

// Restore loads the persisted session at startup. A missing or unreadable
// value yields nil; an unreadable one is also cleared. A lapsed session is
// refreshed when it carries a refresh token and discarded otherwise. The
// restored session is re-checked against the admin allow-list.
func (g *Gate) Restore(ctx context.Context) (*Session, error) {
	raw, ok, err := g.store.Get(ctx, StateKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, g.OnChange(ctx, EventInitial, nil)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.AccessToken == "" {
		g.log.Warn("discarding unreadable stored session", "err", err)
		return nil, g.OnChange(ctx, EventInitial, nil)
	}

	restored := &s
	if restored.Expired(g.now()) {
		if restored.RefreshToken == "" {
			g.log.Info("stored session expired")
			return nil, g.OnChange(ctx, EventInitial, nil)
		}
		tok, err := g.backend.RefreshSession(ctx, restored.RefreshToken)
		if err != nil {
			g.log.Warn("refresh of stored session failed", "err", err)
			if apperr.IsAuth(err) {
				return nil, g.OnChange(ctx, EventInitial, nil)
			}
			return nil, err
		}
		restored = FromToken(tok, g.now())
	}

	if err := g.OnChange(ctx, EventInitial, restored); err != nil {
		return nil, err
	}

	admin, err := g.backend.IsAdmin(ctx, restored.Email)
	if err != nil {
		// Keep the stored session so the next start can re-check.
		g.log.Warn("allow-list check failed", "email", restored.Email, "err", err)
		return nil, err
	}
	if !admin {
		g.revoke(ctx, restored.AccessToken)
		if err := g.OnChange(ctx, EventSignedOut, nil); err != nil {
			return nil, err
		}
		return nil, apperr.Auth(accessDenied, nil)
	}

	g.mu.Lock()
	g.confirmed = true
	g.mu.Unlock()
	return restored.Clone(), nil
}

// SignIn authenticates with email and password and requires the account to
// be on the admin allow-list. Nothing is persisted unless both pass.
func (g *Gate) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	if email == "" {
		return nil, apperr.Validation("email", "Email is required.")
	}
	if password == "" {
		return nil, apperr.Validation("password", "Password is required.")
	}

	tok, err := g.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		g.log.Info("sign in failed", "email", email, "err", err)
		return nil, err
	}
	s := FromToken(tok, g.now())
	if s.Email == "" {
		s.Email = email
	}

	g.backend.SetAccessToken(s.AccessToken)
	if err := g.requireAdmin(ctx, email); err != nil {
		g.revoke(ctx, s.AccessToken)
		g.mu.Lock()
		prev := g.current
		g.mu.Unlock()
		if prev != nil {
			g.backend.SetAccessToken(prev.AccessToken)
		} else {
			g.backend.SetAccessToken("")
		}
		g.log.Warn("sign in rejected by allow-list", "email", email, "err", err)
		return nil, err
	}

	if err := g.apply(ctx, EventSignedIn, s, true); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (g *Gate) requireAdmin(ctx context.Context, email string) error {
	admin, err := g.backend.IsAdmin(ctx, email)
	if err != nil {
		return apperr.Auth(accessDenied, err)
	}
	if !admin {
		return apperr.Auth(accessDenied, nil)
	}
	return nil
}

// revoke signs accessToken out remotely. Failures are only logged.
func (g *Gate) revoke(ctx context.Context, accessToken string) {
	if err := g.backend.SignOut(ctx, accessToken); err != nil {
		g.log.Warn("remote sign out failed", "err", err)
	}
}

// SignOut ends the session remotely (best effort) and clears local state.
func (g *Gate) SignOut(ctx context.Context) error {
	g.mu.Lock()
	cur := g.current.Clone()
	g.mu.Unlock()
	if cur != nil {
		g.revoke(ctx, cur.AccessToken)
	}
	return g.OnChange(ctx, EventSignedOut, nil)
}

// Refresh exchanges the refresh token when the session is within the
// refresh skew of expiry. Otherwise it returns the current session as is.
func (g *Gate) Refresh(ctx context.Context) (*Session, error) {
	g.mu.Lock()
	cur := g.current.Clone()
	g.mu.Unlock()
	if cur == nil {
		return nil, ErrNoSession
	}
	now := g.now()
	if !cur.ExpiresWithin(now, g.skew) {
		return cur, nil
	}
	if cur.RefreshToken == "" {
		if cur.Expired(now) {
			_ = g.OnChange(ctx, EventSignedOut, nil)
			return nil, apperr.Auth("Session expired. Please sign in again.", ErrNoSession)
		}
		return cur, nil
	}

	tok, err := g.backend.RefreshSession(ctx, cur.RefreshToken)
	if err != nil {
		return nil, err
	}
	next := FromToken(tok, now)
	if next.Email == "" {
		next.Email = cur.Email
	}
	if err := g.OnChange(ctx, EventTokenRefreshed, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}
