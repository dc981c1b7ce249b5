// Package backendtest is an in-memory stand-in for the hosted backend. It
// speaks the subset of the PostgREST and GoTrue HTTP APIs the console uses,
// and backs both the package tests and the --demo mode.
package backendtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"swipedesk/internal/record"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const AnonKey = "anon-test-key"

var signingKey = []byte("backendtest-signing-key")

// Call is one request the server received.
type Call struct {
	Method string
	Table  string
	Query  string
	Header http.Header
}

type failure struct {
	status  int
	code    string
	message string
}

type Server struct {
	mu        sync.Mutex
	tables    map[string][]record.Row
	passwords map[string]string
	userIDs   map[string]string
	refresh   map[string]string
	revoked   map[string]bool
	failNext  map[string]failure
	calls     []Call
	nextID    int
	tokenTTL  time.Duration
	logTo     io.Writer

	Now func() time.Time
}

type Option func(*Server)

// WithRequestLog writes an access log line per request to w.
func WithRequestLog(w io.Writer) Option {
	return func(s *Server) { s.logTo = w }
}

// WithTokenTTL sets how long issued access tokens live.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

func New(opts ...Option) *Server {
	s := &Server{
		tables:    make(map[string][]record.Row),
		passwords: make(map[string]string),
		userIDs:   make(map[string]string),
		refresh:   make(map[string]string),
		revoked:   make(map[string]bool),
		failNext:  make(map[string]failure),
		nextID:    1000,
		tokenTTL:  time.Hour,
		Now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves the fake on a loopback listener.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.Handler())
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/auth/v1/token", s.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/auth/v1/logout", s.handleLogout).Methods(http.MethodPost)
	rest := r.PathPrefix("/rest/v1").Subrouter()
	rest.HandleFunc("/{table}", s.handleSelect).Methods(http.MethodGet, http.MethodHead)
	rest.HandleFunc("/{table}", s.handleInsert).Methods(http.MethodPost)
	rest.HandleFunc("/{table}", s.handleUpdate).Methods(http.MethodPatch)
	rest.HandleFunc("/{table}", s.handleDelete).Methods(http.MethodDelete)

	var h http.Handler = s.requireAPIKey(r)
	if s.logTo != nil {
		h = handlers.LoggingHandler(s.logTo, h)
	}
	return h
}

// Seed appends rows to table, creating the table if needed.
func (s *Server) Seed(table string, rows ...record.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = []record.Row{}
	}
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], r.Clone())
	}
}

func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	s.passwords[email] = password
	s.userIDs[email] = fmt.Sprintf("user-%d", len(s.userIDs)+1)
}

// FailNext makes the next request of method against table fail with status.
// Table "auth" targets the token endpoint.
func (s *Server) FailNext(method, table string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[method+" "+table] = failure{status: status, message: message, code: "XX000"}
}

func (s *Server) Rows(table string) []record.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount counts recorded requests matching method and table.
func (s *Server) CallCount(method, table string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Table == table {
			n++
		}
	}
	return n
}

// Revoked reports whether accessToken was signed out.
func (s *Server) Revoked(accessToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[accessToken]
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != AnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) record(r *http.Request, table string) (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Table: table, Query: r.URL.RawQuery, Header: r.Header.Clone()})
	key := r.Method + " " + table
	f, ok := s.failNext[key]
	if ok {
		delete(s.failNext, key)
	}
	return f, ok
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.record(r, "auth"); ok {
		writeJSON(w, f.status, map[string]string{"error": "server_error", "error_description": f.message})
		return
	}
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "error_description": "bad json"})
		return
	}

	s.mu.Lock()
	var email string
	switch r.URL.Query().Get("grant_type") {
	case "password":
		email = strings.ToLower(body["email"])
		pw, ok := s.passwords[email]
		if !ok || pw != body["password"] {
			s.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
			return
		}
	case "refresh_token":
		var ok bool
		email, ok = s.refresh[body["refresh_token"]]
		if !ok {
			s.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid Refresh Token"})
			return
		}
		delete(s.refresh, body["refresh_token"])
	default:
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type", "error_description": "unsupported grant type"})
		return
	}
	s.nextID++
	refresh := "refresh-" + strconv.Itoa(s.nextID)
	s.refresh[refresh] = email
	userID := s.userIDs[email]
	now := s.Now()
	ttl := s.tokenTTL
	s.mu.Unlock()

	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  "authenticated",
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
		"jti":   refresh,
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error", "error_description": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    int64(ttl / time.Second),
		"expires_at":    exp.Unix(),
		"user":          map[string]string{"id": userID, "email": email},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.record(r, "logout"); ok {
		writeJSON(w, f.status, map[string]string{"msg": f.message})
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	s.revoked[token] = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) tableFor(w http.ResponseWriter, r *http.Request) (string, bool) {
	table := mux.Vars(r)["table"]
	if f, ok := s.record(r, table); ok {
		writeJSON(w, f.status, map[string]string{"code": f.code, "message": f.message})
		return "", false
	}
	s.mu.Lock()
	_, exists := s.tables[table]
	s.mu.Unlock()
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"code":    "PGRST205",
			"message": fmt.Sprintf("Could not find the table 'public.%s' in the schema cache", table),
		})
		return "", false
	}
	return table, true
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	s.mu.Lock()
	matched := filterRows(s.tables[table], q)
	s.mu.Unlock()

	if order := q.Get("order"); order != "" {
		col, dir, _ := strings.Cut(order, ".")
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i].String(col), matched[j].String(col)
			if dir == "desc" {
				return a > b
			}
			return a < b
		})
	}
	total := len(matched)
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit >= 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	if r.Method == http.MethodHead {
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			if total == 0 {
				w.Header().Set("Content-Range", "*/0")
			} else {
				w.Header().Set("Content-Range", fmt.Sprintf("0-%d/%d", total-1, total))
			}
		} else {
			w.Header().Set("Content-Range", "0-0/*")
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, project(matched, q.Get("select")))
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "read body"})
		return
	}
	var rows []record.Row
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		rows, err = record.DecodeRows(trimmed)
	} else {
		var row record.Row
		row, err = record.DecodeRow(trimmed)
		rows = []record.Row{row}
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST102", "message": "Empty or invalid json"})
		return
	}

	s.mu.Lock()
	out := make([]record.Row, 0, len(rows))
	for _, row := range rows {
		row = row.Clone()
		if !row.Has(record.FieldID) {
			s.nextID++
			row[record.FieldID] = json.Number(strconv.Itoa(s.nextID))
		}
		if !row.Has(record.FieldCreatedAt) {
			row[record.FieldCreatedAt] = s.Now().UTC().Format(time.RFC3339Nano)
		}
		s.tables[table] = append(s.tables[table], row)
		out = append(out, row.Clone())
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}
	patch, err := record.DecodeRow(mustRead(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST102", "message": "Empty or invalid json"})
		return
	}
	q := r.URL.Query()
	s.mu.Lock()
	var out []record.Row
	rows := s.tables[table]
	for i, row := range rows {
		if !matches(row, q) {
			continue
		}
		rows[i] = row.Merge(patch)
		out = append(out, rows[i].Clone())
	}
	s.mu.Unlock()
	if out == nil {
		out = []record.Row{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	table, ok := s.tableFor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	s.mu.Lock()
	kept := s.tables[table][:0]
	for _, row := range s.tables[table] {
		if !matches(row, q) {
			kept = append(kept, row)
		}
	}
	s.tables[table] = kept
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

var reserved = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

func matches(row record.Row, q map[string][]string) bool {
	for col, vals := range q {
		if reserved[col] {
			continue
		}
		for _, v := range vals {
			want, ok := strings.CutPrefix(v, "eq.")
			if !ok {
				continue
			}
			if row.String(col) != want {
				return false
			}
		}
	}
	return true
}

func filterRows(rows []record.Row, q map[string][]string) []record.Row {
	out := make([]record.Row, 0, len(rows))
	for _, r := range rows {
		if matches(r, q) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func project(rows []record.Row, sel string) []record.Row {
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == "*" {
		return rows
	}
	cols := strings.Split(sel, ",")
	out := make([]record.Row, 0, len(rows))
	for _, r := range rows {
		p := make(record.Row, len(cols))
		for _, c := range cols {
			c = strings.TrimSpace(c)
			if v, ok := r[c]; ok {
				p[c] = v
			}
		}
		out = append(out, p)
	}
	return out
}

func mustRead(r *http.Request) []byte {
	data, _ := io.ReadAll(r.Body)
	return data
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
