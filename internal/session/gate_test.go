package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"swipedesk/internal/apperr"
	"swipedesk/internal/backendtest"
	"swipedesk/internal/record"
	"swipedesk/internal/remote"
)

type harness struct {
	fake   *backendtest.Server
	client *remote.Client
	store  *Store
}

func newHarness(t *testing.T, opts ...backendtest.Option) *harness {
	t.Helper()
	fake := backendtest.New(opts...)
	fake.AddUser("root@example.com", "hunter2")
	fake.AddUser("eve@example.com", "hunter2")
	fake.Seed("admins", record.Row{"id": "a1", "email": "root@example.com"})
	srv := fake.Start()
	t.Cleanup(srv.Close)
	return &harness{
		fake:   fake,
		client: remote.New(srv.URL, backendtest.AnonKey),
		store:  openTestStore(t),
	}
}

func (h *harness) gate(opts ...GateOption) *Gate {
	return NewGate(h.store, Remote(h.client), opts...)
}

func TestSignInAdmin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	g := h.gate()

	s, err := g.SignIn(ctx, "  Root@Example.com ", " hunter2 ")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if s.Email != "root@example.com" || s.AccessToken == "" || s.ExpiresAt.IsZero() {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !g.Authorized() {
		t.Fatalf("expected authorized")
	}
	if _, ok, _ := h.store.Get(ctx, StateKey); !ok {
		t.Fatalf("expected persisted session")
	}
}

func TestSignInNotAdminPersistsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	g := h.gate()

	_, err := g.SignIn(ctx, "eve@example.com", "hunter2")
	var authErr *apperr.AuthError
	if !errors.As(err, &authErr) || authErr.Message != "Access denied! You are not an admin." {
		t.Fatalf("expected access denied, got %v", err)
	}
	if g.Authorized() || g.Session() != nil {
		t.Fatalf("expected no session")
	}
	if _, ok, _ := h.store.Get(ctx, StateKey); ok {
		t.Fatalf("nothing should be persisted")
	}
	if n := h.fake.CallCount(http.MethodPost, "logout"); n != 1 {
		t.Fatalf("expected one remote sign out, got %d", n)
	}
}

func TestSignInAllowListFailureDenies(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fake.FailNext(http.MethodGet, "admins", http.StatusInternalServerError, "boom")
	g := h.gate()

	_, err := g.SignIn(ctx, "root@example.com", "hunter2")
	if !apperr.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if g.Authorized() {
		t.Fatalf("lookup failure must not authorize")
	}
}

func TestSignInBlankInputMakesNoCall(t *testing.T) {
	h := newHarness(t)
	g := h.gate()
	for _, c := range [][2]string{{"", "pw"}, {"   ", "pw"}, {"root@example.com", "  "}} {
		if _, err := g.SignIn(context.Background(), c[0], c[1]); !apperr.IsValidation(err) {
			t.Fatalf("%q/%q: expected validation error, got %v", c[0], c[1], err)
		}
	}
	if n := len(h.fake.Calls()); n != 0 {
		t.Fatalf("expected no remote calls, got %d", n)
	}
}

func TestSignInBadPassword(t *testing.T) {
	h := newHarness(t)
	g := h.gate()
	_, err := g.SignIn(context.Background(), "root@example.com", "nope")
	if !apperr.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if h.fake.CallCount(http.MethodGet, "admins") != 0 {
		t.Fatalf("allow-list should not be consulted after a failed sign in")
	}
}

func TestRestoreReconfirmsAllowList(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if _, err := h.gate().SignIn(ctx, "root@example.com", "hunter2"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	g := h.gate()
	if g.Authorized() {
		t.Fatalf("fresh gate should not be authorized before restore")
	}
	s, err := g.Restore(ctx)
	if err != nil || s == nil {
		t.Fatalf("restore: %v %v", s, err)
	}
	if !g.Authorized() {
		t.Fatalf("expected authorized after restore")
	}

	if err := h.client.Collection("admins").DeleteByID(ctx, "a1"); err != nil {
		t.Fatalf("remove admin: %v", err)
	}
	g = h.gate()
	if _, err := g.Restore(ctx); !apperr.IsAuth(err) {
		t.Fatalf("expected access denied on restore, got %v", err)
	}
	if _, ok, _ := h.store.Get(ctx, StateKey); ok {
		t.Fatalf("revoked admin session should be cleared")
	}
}

func TestRestoreEmptyAndCorrupt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	g := h.gate()

	if s, err := g.Restore(ctx); s != nil || err != nil {
		t.Fatalf("empty restore: %v %v", s, err)
	}

	if _, err := h.store.Put(ctx, StateKey, "{not json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if s, err := g.Restore(ctx); s != nil || err != nil {
		t.Fatalf("corrupt restore: %v %v", s, err)
	}
	if _, ok, _ := h.store.Get(ctx, StateKey); ok {
		t.Fatalf("corrupt value should be cleared")
	}
}

func TestRestoreExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first, err := h.gate().SignIn(ctx, "root@example.com", "hunter2")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	later := func() time.Time { return time.Now().Add(2 * time.Hour) }
	g := h.gate(WithClock(later))
	s, err := g.Restore(ctx)
	if err != nil || s == nil {
		t.Fatalf("restore with refresh: %v %v", s, err)
	}
	if s.RefreshToken == first.RefreshToken {
		t.Fatalf("expected a refreshed session")
	}

	stale := `{"access_token":"old","expires_at":"2020-01-01T00:00:00Z","email":"root@example.com"}`
	if _, err := h.store.Put(ctx, StateKey, stale); err != nil {
		t.Fatalf("put: %v", err)
	}
	g = h.gate()
	if s, err := g.Restore(ctx); s != nil || err != nil {
		t.Fatalf("expired session without refresh token: %v %v", s, err)
	}
}

func TestOnChangeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	g := h.gate()

	var events []Event
	g.Subscribe(func(e Event, _ *Session) { events = append(events, e) })

	s := &Session{AccessToken: "tok", Email: "root@example.com"}
	for i := 0; i < 2; i++ {
		if err := g.OnChange(ctx, EventSignedIn, s); err != nil {
			t.Fatalf("on change: %v", err)
		}
	}
	if len(events) != 1 {
		t.Fatalf("duplicate callback should not re-notify, got %v", events)
	}
	if g.Session().AccessToken != "tok" {
		t.Fatalf("unexpected session %+v", g.Session())
	}
	if g.Authorized() {
		t.Fatalf("a session that skipped the allow-list grants nothing")
	}

	for i := 0; i < 2; i++ {
		if err := g.OnChange(ctx, EventSignedOut, nil); err != nil {
			t.Fatalf("clear: %v", err)
		}
	}
	if len(events) != 2 || events[1] != EventSignedOut {
		t.Fatalf("unexpected events %v", events)
	}
}

func TestSignOutClearsEverything(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	g := h.gate()
	s, err := g.SignIn(ctx, "root@example.com", "hunter2")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := g.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if g.Authorized() || g.Session() != nil {
		t.Fatalf("expected signed out")
	}
	if !h.fake.Revoked(s.AccessToken) {
		t.Fatalf("expected remote revoke")
	}
	if _, ok, _ := h.store.Get(ctx, StateKey); ok {
		t.Fatalf("expected cleared store")
	}
}

func TestSignOutRemoteFailureStillClears(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	g := h.gate()
	if _, err := g.SignIn(ctx, "root@example.com", "hunter2"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	h.fake.FailNext(http.MethodPost, "logout", http.StatusBadGateway, "down")
	if err := g.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if g.Session() != nil {
		t.Fatalf("local state must clear even when remote sign out fails")
	}
}

func TestRefreshNearExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, backendtest.WithTokenTTL(30*time.Second))
	g := h.gate(WithRefreshSkew(time.Minute))

	if _, err := g.Refresh(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	first, err := g.SignIn(ctx, "root@example.com", "hunter2")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	next, err := g.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == first.RefreshToken {
		t.Fatalf("expected new tokens")
	}
	if !g.Authorized() {
		t.Fatalf("refresh for the same admin keeps authorization")
	}
}

func TestRefreshNotDue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	g := h.gate()
	first, err := g.SignIn(ctx, "root@example.com", "hunter2")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	got, err := g.Refresh(ctx)
	if err != nil || got.AccessToken != first.AccessToken {
		t.Fatalf("refresh should be a no-op far from expiry: %v", err)
	}
}
