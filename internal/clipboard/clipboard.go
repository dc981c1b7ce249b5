// Package clipboard copies text to the system clipboard by piping it into
// whichever platform tool is installed.
package clipboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"swipedesk/internal/export"
	"swipedesk/internal/record"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

type Command struct {
	Path string
	Args []string
}

type tool struct {
	name string
	args []string
}

var tools = map[string][]tool{
	"darwin":  {{name: "pbcopy"}},
	"windows": {{name: "clip.exe"}},
	"linux": {
		{name: "wl-copy"},
		{name: "xclip", args: []string{"-selection", "clipboard"}},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
	},
	"freebsd": {
		{name: "xclip", args: []string{"-selection", "clipboard"}},
		{name: "xsel", args: []string{"--clipboard", "--input"}},
	},
}

// SelectCommand picks the first installed tool for goos.
func SelectCommand(goos string, lookPath func(string) (string, error)) (Command, error) {
	for _, t := range tools[goos] {
		if path, err := lookPath(t.name); err == nil {
			return Command{Path: path, Args: t.args}, nil
		}
	}
	return Command{}, ErrToolNotFound
}

// Runner executes cmd with stdin as its input.
type Runner func(ctx context.Context, cmd Command, stdin []byte) error

type Clipboard struct {
	goos     string
	lookPath func(string) (string, error)
	run      Runner
}

func New() *Clipboard {
	return &Clipboard{goos: runtime.GOOS, lookPath: exec.LookPath, run: execRun}
}

// NewWith builds a clipboard with a custom platform, lookup and runner.
func NewWith(goos string, lookPath func(string) (string, error), run Runner) *Clipboard {
	return &Clipboard{goos: goos, lookPath: lookPath, run: run}
}

// Available reports whether a clipboard tool is installed.
func (c *Clipboard) Available() bool {
	_, err := SelectCommand(c.goos, c.lookPath)
	return err == nil
}

func (c *Clipboard) Copy(ctx context.Context, text string) error {
	cmd, err := SelectCommand(c.goos, c.lookPath)
	if err != nil {
		return err
	}
	return c.run(ctx, cmd, []byte(text))
}

// CopyRow copies row as indented JSON.
func (c *Clipboard) CopyRow(ctx context.Context, row record.Row) error {
	text, err := RowJSON(row)
	if err != nil {
		return err
	}
	return c.Copy(ctx, text)
}

// RowJSON renders row as indented JSON with numbers kept as sent.
func RowJSON(row record.Row) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(export.PlainRow(row)); err != nil {
		return "", fmt.Errorf("encode row: %w", err)
	}
	return buf.String(), nil
}

func Copy(ctx context.Context, text string) error {
	return New().Copy(ctx, text)
}

func execRun(ctx context.Context, def Command, stdin []byte) error {
	cmd := exec.CommandContext(ctx, def.Path, def.Args...)
	pipe, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("clipboard stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = pipe.Close()
		return fmt.Errorf("start clipboard command: %w", err)
	}

	if _, err := pipe.Write(stdin); err != nil {
		_ = pipe.Close()
		_ = cmd.Wait()
		return fmt.Errorf("write clipboard data: %w", err)
	}
	_ = pipe.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}
