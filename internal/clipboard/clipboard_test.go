package clipboard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"swipedesk/internal/record"
)

func only(names map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if p, ok := names[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
}

func TestSelectCommandDarwin(t *testing.T) {
	cmd, err := SelectCommand("darwin", only(map[string]string{"pbcopy": "/usr/bin/pbcopy"}))
	if err != nil {
		t.Fatalf("expected command, got error: %v", err)
	}
	if cmd.Path != "/usr/bin/pbcopy" || len(cmd.Args) != 0 {
		t.Fatalf("unexpected command: %#v", cmd)
	}
}

func TestSelectCommandLinuxOrder(t *testing.T) {
	cases := []struct {
		installed map[string]string
		want      string
		args      string
	}{
		{map[string]string{"wl-copy": "/bin/wl-copy", "xclip": "/bin/xclip"}, "/bin/wl-copy", ""},
		{map[string]string{"xclip": "/bin/xclip", "xsel": "/bin/xsel"}, "/bin/xclip", "-selection clipboard"},
		{map[string]string{"xsel": "/bin/xsel"}, "/bin/xsel", "--clipboard --input"},
	}
	for _, tc := range cases {
		cmd, err := SelectCommand("linux", only(tc.installed))
		if err != nil {
			t.Fatalf("expected command, got %v", err)
		}
		if cmd.Path != tc.want || strings.Join(cmd.Args, " ") != tc.args {
			t.Fatalf("want %s %q, got %#v", tc.want, tc.args, cmd)
		}
	}
}

func TestSelectCommandUnavailable(t *testing.T) {
	for _, goos := range []string{"linux", "plan9"} {
		if _, err := SelectCommand(goos, only(nil)); !errors.Is(err, ErrToolNotFound) {
			t.Fatalf("%s: expected ErrToolNotFound, got %v", goos, err)
		}
	}
}

func TestCopyRowPipesJSON(t *testing.T) {
	var got Command
	var input []byte
	c := NewWith("darwin", only(map[string]string{"pbcopy": "/usr/bin/pbcopy"}), func(_ context.Context, cmd Command, stdin []byte) error {
		got, input = cmd, stdin
		return nil
	})
	if !c.Available() {
		t.Fatalf("expected clipboard available")
	}

	row := record.Row{"id": json.Number("12"), "comment_text": "<b>hi</b>"}
	if err := c.CopyRow(context.Background(), row); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if got.Path != "/usr/bin/pbcopy" {
		t.Fatalf("unexpected command %#v", got)
	}
	text := string(input)
	if !strings.Contains(text, `"id": 12`) || !strings.Contains(text, "<b>hi</b>") {
		t.Fatalf("unexpected clipboard text %q", text)
	}
}

func TestCopyWithoutToolDoesNotRun(t *testing.T) {
	ran := false
	c := NewWith("linux", only(nil), func(context.Context, Command, []byte) error {
		ran = true
		return nil
	})
	if err := c.Copy(context.Background(), "x"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
	if ran || c.Available() {
		t.Fatalf("runner should not be invoked")
	}
}
