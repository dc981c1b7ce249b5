package listview

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"swipedesk/internal/apperr"
	"swipedesk/internal/catalog"
	"swipedesk/internal/record"
	"swipedesk/internal/remote"
)

type fakeSource struct {
	mu      sync.Mutex
	rows    []record.Row
	listErr error
	mutErr  error
	block   chan struct{}
	calls   map[string]int
	lastOrd remote.Order
	nextID  int
}

func newFakeSource(rows ...record.Row) *fakeSource {
	return &fakeSource{rows: rows, calls: make(map[string]int), nextID: 100}
}

func (f *fakeSource) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeSource) List(_ context.Context, order remote.Order) ([]record.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	f.lastOrd = order
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]record.Row, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (f *fakeSource) Insert(_ context.Context, fields map[string]any) (record.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["insert"]++
	if f.mutErr != nil {
		return nil, f.mutErr
	}
	f.nextID++
	row := record.Row(fields).Merge(map[string]any{"id": fmt.Sprint(f.nextID), "created_at": "2024-06-01T00:00:00Z"})
	f.rows = append(f.rows, row)
	return row.Clone(), nil
}

func (f *fakeSource) UpdateByID(_ context.Context, id string, patch map[string]any) (record.Row, error) {
	f.mu.Lock()
	f.calls["update"]++
	block := f.block
	err := f.mutErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := record.IndexOf(f.rows, id)
	if i < 0 {
		return nil, &apperr.RemoteError{Op: "update", Status: 404, Message: "no matching row"}
	}
	f.rows[i] = f.rows[i].Merge(patch)
	return f.rows[i].Clone(), nil
}

func (f *fakeSource) DeleteByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	if f.mutErr != nil {
		return f.mutErr
	}
	if i := record.IndexOf(f.rows, id); i >= 0 {
		f.rows = append(f.rows[:i], f.rows[i+1:]...)
	}
	return nil
}

func mustRoute(t *testing.T, path string) catalog.Collection {
	t.Helper()
	r, ok := catalog.Lookup(path)
	if !ok {
		t.Fatalf("no route %s", path)
	}
	return r.Collection
}

func users() []record.Row {
	return []record.Row{
		{"id": "1", "created_at": "2024-05-03T10:00:00Z", "username": "Ava", "email": "ava@example.com", "city": "Lisbon", "age": "27"},
		{"id": "2", "created_at": "2024-05-01T10:00:00Z", "username": "bruno", "email": "bruno@example.com", "city": "Porto", "age": "31"},
		{"id": "3", "created_at": "2024-05-02T10:00:00Z", "username": "chloe", "email": "chloe@example.com", "city": "Lyon", "age": "9"},
		{"id": "4", "username": "dana", "email": "dana@example.com", "city": "lisbon"},
	}
}

func ids(rows []record.Row) string {
	out := ""
	for i, r := range rows {
		if i > 0 {
			out += ","
		}
		out += r.ID()
	}
	return out
}

func loaded(t *testing.T, path string, rows ...record.Row) (*Controller, *fakeSource) {
	t.Helper()
	src := newFakeSource(rows...)
	c := New(mustRoute(t, path), src)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return c, src
}

func TestLoadUsesDefaultOrder(t *testing.T) {
	c, src := loaded(t, "/users", users()...)
	if src.lastOrd.Column != "created_at" || src.lastOrd.Ascending {
		t.Fatalf("unexpected order %+v", src.lastOrd)
	}
	if c.State() != Loaded || c.Phase() != PhaseReady {
		t.Fatalf("unexpected state %v phase %v", c.State(), c.Phase())
	}
}

func TestPhases(t *testing.T) {
	src := newFakeSource()
	c := New(mustRoute(t, "/chats"), src)
	if c.Phase() != PhaseLoading {
		t.Fatalf("idle view should render loading")
	}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Phase() != PhaseEmpty {
		t.Fatalf("expected empty, got %v", c.Phase())
	}

	src.listErr = &apperr.RemoteError{Op: "list messages", Status: 500, Message: "boom"}
	if err := c.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if c.Phase() != PhaseErrored || !apperr.IsRemote(c.Err()) {
		t.Fatalf("expected errored phase, got %v (%v)", c.Phase(), c.Err())
	}

	src.listErr = nil
	src.rows = []record.Row{{"id": "m1", "text": "hi"}}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c.Phase() != PhaseReady || c.Err() != nil {
		t.Fatalf("retry should recover, got %v", c.Phase())
	}
}

func TestRefreshFailureKeepsRows(t *testing.T) {
	c, src := loaded(t, "/users", users()...)
	src.listErr = errors.New("offline")
	_ = c.Load(context.Background())
	if c.Len() != 4 {
		t.Fatalf("rows should survive a failed refresh, got %d", c.Len())
	}
}

func TestFilterCaseInsensitiveOverSearchFields(t *testing.T) {
	c, _ := loaded(t, "/users", users()...)

	if got := len(c.Visible()); got != c.Len() {
		t.Fatalf("empty query should keep all rows, got %d", got)
	}
	c.SetQuery("LISBON")
	if got := ids(c.Visible()); got != "1,4" {
		t.Fatalf("expected rows 1,4, got %s", got)
	}
	c.SetQuery("example.com")
	if len(c.Visible()) > c.Len() {
		t.Fatalf("visible cannot exceed rows")
	}
	// age is not a search field
	c.SetQuery("31")
	if got := len(c.Visible()); got != 0 {
		t.Fatalf("non-search field matched: %d", got)
	}
	c.SetQuery("nobody")
	if c.Phase() != PhaseEmpty {
		t.Fatalf("no matches should render empty")
	}
}

func TestSortStableWithMissingLast(t *testing.T) {
	c, _ := loaded(t, "/users", users()...)
	if got := ids(c.Visible()); got != "1,3,2,4" {
		t.Fatalf("default created_at desc: got %s", got)
	}
	c.ToggleSort()
	if got := ids(c.Visible()); got != "2,3,1,4" {
		t.Fatalf("created_at asc: got %s", got)
	}

	c.SortBy("age")
	if got := ids(c.Visible()); got != "3,1,2,4" {
		t.Fatalf("age asc numeric: got %s", got)
	}
	c.SortBy("age")
	if got := ids(c.Visible()); got != "2,1,3,4" {
		t.Fatalf("age desc: got %s", got)
	}
}

func TestSortTiesKeepFetchOrder(t *testing.T) {
	rows := []record.Row{
		{"id": "a", "created_at": "2024-05-01T10:00:00Z"},
		{"id": "b", "created_at": "2024-05-01T10:00:00Z"},
		{"id": "c", "created_at": "2024-04-01T10:00:00Z"},
		{"id": "d", "created_at": "2024-05-01T10:00:00Z"},
	}
	SortRows(rows, "created_at", true)
	if got := ids(rows); got != "c,a,b,d" {
		t.Fatalf("expected stable order, got %s", got)
	}
}

func TestSortTextIgnoresCase(t *testing.T) {
	rows := []record.Row{{"id": "1", "username": "bob"}, {"id": "2", "username": "Alice"}, {"id": "3", "username": "carl"}}
	SortRows(rows, "username", true)
	if got := ids(rows); got != "2,1,3" {
		t.Fatalf("got %s", got)
	}
}

func TestSortMixedColumnIgnoresFetchOrder(t *testing.T) {
	orders := [][]string{
		{"10", "9", "1a"},
		{"1a", "10", "9"},
		{"9", "1a", "10"},
	}
	for _, order := range orders {
		rows := make([]record.Row, 0, len(order))
		for _, v := range order {
			rows = append(rows, record.Row{"id": v, "number": v})
		}
		SortRows(rows, "number", true)
		if got := ids(rows); got != "9,10,1a" {
			t.Fatalf("fetched %v: asc got %s", order, got)
		}
		SortRows(rows, "number", false)
		if got := ids(rows); got != "1a,10,9" {
			t.Fatalf("fetched %v: desc got %s", order, got)
		}
	}
}

func TestFilterKeepsQuerySpaces(t *testing.T) {
	rows := []record.Row{
		{"id": "1", "username": "bob"},
		{"id": "2", "username": "big bob"},
	}
	if got := ids(Filter(rows, " bob", []string{"username"})); got != "2" {
		t.Fatalf("expected only the padded match, got %s", got)
	}
	if got := ids(Filter(rows, "BOB", []string{"username"})); got != "1,2" {
		t.Fatalf("expected both rows, got %s", got)
	}
}

func TestDeleteSuccess(t *testing.T) {
	c, src := loaded(t, "/users", users()...)
	var asked string
	removed, err := c.RequestDelete(context.Background(), "2", func(id string) bool { asked = id; return true })
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	if asked != "2" {
		t.Fatalf("confirm not consulted")
	}
	if c.Len() != 3 {
		t.Fatalf("expected exactly one row removed, got %d", c.Len())
	}
	if _, ok := c.Row("2"); ok {
		t.Fatalf("row still present")
	}
	if c.Notice() != "User deleted." {
		t.Fatalf("unexpected notice %q", c.Notice())
	}
	if src.count("delete") != 1 {
		t.Fatalf("expected one remote delete")
	}
}

func TestDeleteDeclined(t *testing.T) {
	c, src := loaded(t, "/users", users()...)
	removed, err := c.RequestDelete(context.Background(), "2", func(string) bool { return false })
	if err != nil || removed || c.Len() != 4 || src.count("delete") != 0 {
		t.Fatalf("declined delete must not touch anything")
	}
}

func TestDeleteFailureLeavesRows(t *testing.T) {
	c, src := loaded(t, "/users", users()...)
	src.mutErr = &apperr.RemoteError{Op: "delete users", Status: 403, Message: "permission denied"}
	removed, err := c.RequestDelete(context.Background(), "2", nil)
	if err == nil || removed {
		t.Fatalf("expected failure")
	}
	if c.Len() != 4 {
		t.Fatalf("failed delete removed rows")
	}
	if !apperr.IsRemote(c.LastError()) {
		t.Fatalf("error should be retained, got %v", c.LastError())
	}
	if c.Pending("2") {
		t.Fatalf("pending flag should clear")
	}
}

func TestDeleteAbsentID(t *testing.T) {
	c, _ := loaded(t, "/users", users()...)
	removed, err := c.RequestDelete(context.Background(), "404", nil)
	if err != nil || removed {
		t.Fatalf("absent id: removed=%v err=%v", removed, err)
	}
	if c.Len() != 4 {
		t.Fatalf("rows changed")
	}
}

func TestDeleteReadOnlyCollection(t *testing.T) {
	c, src := loaded(t, "/comments", record.Row{"id": "c1", "comment_text": "hi"})
	if _, err := c.RequestDelete(context.Background(), "c1", nil); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if src.count("delete") != 0 {
		t.Fatalf("no remote call expected")
	}
}

func comments() []record.Row {
	return []record.Row{
		{"id": "c1", "created_at": "2024-05-01T10:00:00Z", "comment_text": "nice reel", "user_id": "u1"},
		{"id": "c2", "created_at": "2024-05-02T10:00:00Z", "comment_text": "spam spam", "user_id": "u2"},
	}
}

func TestEditFlow(t *testing.T) {
	c, src := loaded(t, "/reels", comments()...)
	if err := c.BeginEdit("c2"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if id, ok := c.Editing(); !ok || id != "c2" {
		t.Fatalf("expected edit mode on c2")
	}

	_, err := c.RequestUpdate(context.Background(), "c2", map[string]any{"comment_text": "   "})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Message != "Comment cannot be empty!" {
		t.Fatalf("expected blank rejection, got %v", err)
	}
	if _, ok := c.Editing(); !ok {
		t.Fatalf("blank edit should stay in edit mode")
	}
	if src.count("update") != 0 {
		t.Fatalf("blank edit reached the backend")
	}

	row, err := c.RequestUpdate(context.Background(), "c2", map[string]any{"comment_text": "  removed by moderator "})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if row.String("comment_text") != "removed by moderator" {
		t.Fatalf("expected trimmed text, got %q", row.String("comment_text"))
	}
	local, _ := c.Row("c2")
	if local.String("comment_text") != "removed by moderator" || local.String("user_id") != "u2" {
		t.Fatalf("patch not merged: %+v", local)
	}
	if _, ok := c.Editing(); ok {
		t.Fatalf("success should exit edit mode")
	}
}

func TestEditFailureStaysInEditMode(t *testing.T) {
	c, src := loaded(t, "/reels", comments()...)
	_ = c.BeginEdit("c1")
	src.mutErr = errors.New("timeout")
	if _, err := c.RequestUpdate(context.Background(), "c1", map[string]any{"comment_text": "x"}); err == nil {
		t.Fatalf("expected failure")
	}
	if _, ok := c.Editing(); !ok {
		t.Fatalf("failure should stay in edit mode")
	}
	if r, _ := c.Row("c1"); r.String("comment_text") != "nice reel" {
		t.Fatalf("row changed on failure")
	}
	c.CancelEdit()
	if _, ok := c.Editing(); ok {
		t.Fatalf("cancel should exit edit mode")
	}
}

func TestEditNotAllowed(t *testing.T) {
	c, _ := loaded(t, "/comments", comments()...)
	if err := c.BeginEdit("c1"); !apperr.IsValidation(err) {
		t.Fatalf("expected read-only rejection, got %v", err)
	}
}

func TestPendingGuard(t *testing.T) {
	c, src := loaded(t, "/reels", comments()...)
	src.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := c.RequestUpdate(context.Background(), "c1", map[string]any{"comment_text": "first"})
		done <- err
	}()
	for !c.Pending("c1") {
		runtime.Gosched()
	}

	_, err := c.RequestUpdate(context.Background(), "c1", map[string]any{"comment_text": "second"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}
	if _, err := c.RequestDelete(context.Background(), "c1", nil); !apperr.IsValidation(err) {
		t.Fatalf("expected in-flight rejection for delete, got %v", err)
	}

	close(src.block)
	if err := <-done; err != nil {
		t.Fatalf("first update: %v", err)
	}
	if c.Pending("c1") {
		t.Fatalf("pending should clear")
	}
}

func TestInsertValidatesBeforeRemote(t *testing.T) {
	c, src := loaded(t, "/users", users()...)
	form := map[string]string{"username": "  ", "email": "new@example.com"}
	_, err := c.RequestInsert(context.Background(), form)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "username" {
		t.Fatalf("expected username validation error, got %v", err)
	}
	if src.count("insert") != 0 {
		t.Fatalf("no remote call expected")
	}
	if form["username"] != "  " {
		t.Fatalf("form must not be modified")
	}

	if _, err := c.RequestInsert(context.Background(), map[string]string{"username": "x", "email": "y@z", "age": "old"}); !apperr.IsValidation(err) {
		t.Fatalf("expected age validation error, got %v", err)
	}
}

func TestInsertPrependsRow(t *testing.T) {
	c, src := loaded(t, "/users", users()...)
	row, err := c.RequestInsert(context.Background(), map[string]string{
		"username": " nia ",
		"email":    " Nia@Example.com ",
		"age":      "29",
		"city":     "",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	rows := c.Rows()
	if len(rows) != 5 || rows[0].ID() != row.ID() {
		t.Fatalf("expected new row first, got %s", ids(rows))
	}
	sent := src.rows[len(src.rows)-1]
	if sent["age"] != 29 {
		t.Fatalf("age should be coerced to int, got %#v", sent["age"])
	}
	if v, ok := sent["city"]; !ok || v != nil {
		t.Fatalf("blank optional should be null, got %#v", v)
	}
	// Email is trimmed but otherwise sent as typed.
	if sent["email"] != "Nia@Example.com" || sent["username"] != "nia" {
		t.Fatalf("unexpected payload %+v", sent)
	}
}

func TestInsertFailureKeepsRows(t *testing.T) {
	c, src := loaded(t, "/users", users()...)
	src.mutErr = errors.New("duplicate key")
	if _, err := c.RequestInsert(context.Background(), map[string]string{"username": "a", "email": "a@b"}); err == nil {
		t.Fatalf("expected failure")
	}
	if c.Len() != 4 || c.Inserting() {
		t.Fatalf("state changed on failure")
	}
}

func TestInsertNotAllowed(t *testing.T) {
	c, _ := loaded(t, "/chats")
	if _, err := c.RequestInsert(context.Background(), map[string]string{"text": "x"}); !apperr.IsValidation(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
}
