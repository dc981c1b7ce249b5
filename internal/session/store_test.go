package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "state.sqlite"), false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, ok, err := s.Get(ctx, StateKey); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	changed, err := s.Put(ctx, StateKey, `{"access_token":"a"}`)
	if err != nil || !changed {
		t.Fatalf("first put: changed=%v err=%v", changed, err)
	}
	changed, err = s.Put(ctx, StateKey, `{"access_token":"a"}`)
	if err != nil || changed {
		t.Fatalf("repeat put should be a no-op: changed=%v err=%v", changed, err)
	}
	changed, err = s.Put(ctx, StateKey, `{"access_token":"b"}`)
	if err != nil || !changed {
		t.Fatalf("overwrite: changed=%v err=%v", changed, err)
	}
	got, ok, err := s.Get(ctx, StateKey)
	if err != nil || !ok || got != `{"access_token":"b"}` {
		t.Fatalf("get: %q %v %v", got, ok, err)
	}
	if _, ok, _ := s.UpdatedAt(ctx, StateKey); !ok {
		t.Fatalf("expected updated_at")
	}

	removed, err := s.Delete(ctx, StateKey)
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	removed, err = s.Delete(ctx, StateKey)
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sqlite")
	s, err := OpenStore(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Put(ctx, StateKey, "v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = s.Close()

	s, err = OpenStore(path, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got, ok, _ := s.Get(ctx, StateKey); !ok || got != "v1" {
		t.Fatalf("expected persisted value, got %q", got)
	}
	_ = s.Close()

	s, err = OpenStore(path, true)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	defer s.Close()
	if _, ok, _ := s.Get(ctx, StateKey); ok {
		t.Fatalf("expected reset store to be empty")
	}
}

func TestStoreSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec("PRAGMA journal_mode").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS state").WillReturnError(errors.New("disk I/O error"))

	if _, err := newStore(db); err == nil || !strings.Contains(err.Error(), "init schema") {
		t.Fatalf("expected init schema error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreQueryErrorsAreWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec("PRAGMA journal_mode").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS state").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := newStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	mock.ExpectQuery("SELECT value FROM state").WithArgs(StateKey).WillReturnError(errors.New("database is locked"))
	if _, _, err := s.Get(ctx, StateKey); err == nil || !strings.Contains(err.Error(), "read state") {
		t.Fatalf("expected wrapped read error, got %v", err)
	}

	mock.ExpectExec("INSERT INTO state").WillReturnError(errors.New("readonly database"))
	if _, err := s.Put(ctx, StateKey, "v"); err == nil || !strings.Contains(err.Error(), "write state") {
		t.Fatalf("expected wrapped write error, got %v", err)
	}

	mock.ExpectExec("DELETE FROM state").WithArgs(StateKey).WillReturnError(errors.New("readonly database"))
	if _, err := s.Delete(ctx, StateKey); err == nil || !strings.Contains(err.Error(), "clear state") {
		t.Fatalf("expected wrapped delete error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
