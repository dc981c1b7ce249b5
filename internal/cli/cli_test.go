package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"swipedesk/internal/backendtest"

	"gopkg.in/yaml.v3"
)

const demoLogin = backendtest.DemoAdminEmail + "\n" + backendtest.DemoAdminPassword + "\n"

func runCLI(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))

	var out, errOut bytes.Buffer
	app := NewApp(strings.NewReader(stdin), &out, &errOut)
	cmd := NewRootCmd(app)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{
		"--demo",
		"--state-db", filepath.Join(dir, "state.sqlite"),
		"--log-file", filepath.Join(dir, "swipedesk.log"),
		"--export-dir", filepath.Join(dir, "exports"),
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	if cerr := app.Close(); cerr != nil {
		t.Fatalf("close: %v", cerr)
	}
	return out.String(), err
}

func mustRun(t *testing.T, dir, stdin string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, stdin, args...)
	if err != nil {
		t.Fatalf("swipedesk %v: %v\n%s", args, err, out)
	}
	return out
}

func loggedIn(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out := mustRun(t, dir, demoLogin, "login")
	if !strings.Contains(out, "Signed in as "+backendtest.DemoAdminEmail) {
		t.Fatalf("unexpected login output %q", out)
	}
	return dir
}

func TestCommandsRequireLogin(t *testing.T) {
	dir := t.TempDir()
	for _, args := range [][]string{{"whoami"}, {"list", "users"}, {"count"}, {"stats"}} {
		_, err := runCLI(t, dir, "", args...)
		if !errors.Is(err, errNotSignedIn) {
			t.Fatalf("%v: expected not signed in, got %v", args, err)
		}
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	dir := loggedIn(t)

	out := mustRun(t, dir, "", "whoami")
	if !strings.Contains(out, "Email:   "+backendtest.DemoAdminEmail) || !strings.Contains(out, "Backend: demo") {
		t.Fatalf("unexpected whoami output %q", out)
	}

	if out := mustRun(t, dir, "", "logout"); strings.TrimSpace(out) != "Signed out." {
		t.Fatalf("unexpected logout output %q", out)
	}
	if _, err := runCLI(t, dir, "", "whoami"); !errors.Is(err, errNotSignedIn) {
		t.Fatalf("expected signed out, got %v", err)
	}
	if out := mustRun(t, dir, "", "logout"); strings.TrimSpace(out) != "Not signed in." {
		t.Fatalf("unexpected second logout output %q", out)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "wrong\n", "login", "--email", backendtest.DemoAdminEmail)
	if err == nil {
		t.Fatalf("expected bad password to fail")
	}
	if _, err := runCLI(t, dir, "", "whoami"); !errors.Is(err, errNotSignedIn) {
		t.Fatalf("nothing should be stored, got %v", err)
	}
}

func TestListFormats(t *testing.T) {
	dir := loggedIn(t)

	out := mustRun(t, dir, "", "list", "users", "--query", "lisbon")
	if !strings.Contains(out, "ava_m") || !strings.Contains(out, "1 user\n") {
		t.Fatalf("unexpected table output:\n%s", out)
	}

	out = mustRun(t, dir, "", "list", "users", "-o", "json", "--sort", "username", "--asc")
	var users []map[string]any
	if err := json.Unmarshal([]byte(out), &users); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(users) != 12 || users[0]["username"] != "ava_m" || users[11]["username"] != "lena" {
		t.Fatalf("unexpected users %v", users)
	}

	out = mustRun(t, dir, "", "list", "/chats", "--format", "yaml")
	var chats []map[string]any
	if err := yaml.Unmarshal([]byte(out), &chats); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(chats) != 18 {
		t.Fatalf("expected 18 messages, got %d", len(chats))
	}

	if _, err := runCLI(t, dir, "", "list", "nope"); err == nil || !strings.Contains(err.Error(), "unknown view") {
		t.Fatalf("expected unknown view error, got %v", err)
	}
}

func TestCountAndStats(t *testing.T) {
	dir := loggedIn(t)

	out := mustRun(t, dir, "", "count", "users", "likes")
	if !strings.Contains(out, "users") || !strings.Contains(out, "12") || !strings.Contains(out, "15") || !strings.Contains(out, "27") {
		t.Fatalf("unexpected count output:\n%s", out)
	}

	out = mustRun(t, dir, "", "stats")
	for _, want := range []string{"Engagement", "Likes by weekday", "active days", "Recent users"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestDelete(t *testing.T) {
	dir := loggedIn(t)

	if out := mustRun(t, dir, "n\n", "delete", "users", "u01"); !strings.Contains(out, "Cancelled.") {
		t.Fatalf("expected cancel, got %q", out)
	}
	if out := mustRun(t, dir, "", "delete", "users", "u01", "--yes"); strings.TrimSpace(out) != "User deleted." {
		t.Fatalf("unexpected delete output %q", out)
	}
	if _, err := runCLI(t, dir, "", "delete", "matches", "l1", "--yes"); err == nil || !strings.Contains(err.Error(), "read-only") {
		t.Fatalf("expected read-only error, got %v", err)
	}
}

func TestExport(t *testing.T) {
	dir := loggedIn(t)
	outDir := filepath.Join(dir, "out")

	out := mustRun(t, dir, "", "export", "users", "--format", "yaml", "--dir", outDir, "-q", "porto")
	path := strings.TrimSpace(out)
	if filepath.Dir(path) != outDir || !strings.HasSuffix(path, ".yaml") {
		t.Fatalf("unexpected export path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "bruno.k") || strings.Contains(string(data), "ava_m") {
		t.Fatalf("export should hold only the filtered rows:\n%s", data)
	}
}
