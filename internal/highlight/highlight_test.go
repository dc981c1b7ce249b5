package highlight

import (
	"strings"
	"testing"
)

func brackets(s string) string { return "[[" + s + "]]" }

func TestApplyANSI_CaseInsensitive(t *testing.T) {
	in := "| username | Lisbon |\n| city | lisbon |\n| bio | none |\n"
	res := ApplyANSI(in, "LISBON", brackets)

	if res.Count != 2 {
		t.Fatalf("expected 2 matches, got %d", res.Count)
	}
	if len(res.LineIndex) != 2 || res.LineIndex[0] != 0 || res.LineIndex[1] != 1 {
		t.Fatalf("unexpected line indexes: %#v", res.LineIndex)
	}
	if !strings.Contains(res.Text, "[[Lisbon]]") || !strings.Contains(res.Text, "[[lisbon]]") {
		t.Fatalf("highlight wrapper not applied: %q", res.Text)
	}
}

func TestApplyANSI_PreservesEscapeSequences(t *testing.T) {
	in := "a \x1b[31mchloe\x1b[0m b"
	res := ApplyANSI(in, "chloe", func(s string) string { return "<" + s + ">" })

	if res.Count != 1 {
		t.Fatalf("expected 1 match, got %d", res.Count)
	}
	if !strings.Contains(res.Text, "\x1b[31m<chloe>\x1b[0m") {
		t.Fatalf("expected escaped segment to stay intact, got %q", res.Text)
	}
}

func TestApplyANSI_DoesNotMatchAcrossANSIBoundaries(t *testing.T) {
	in := "ch\x1b[31mlo\x1b[0me"
	res := ApplyANSI(in, "chloe", brackets)
	if res.Count != 0 {
		t.Fatalf("expected 0 matches across ansi boundaries, got %d", res.Count)
	}
}

func TestApplyANSI_EmptyQueryIsIdentity(t *testing.T) {
	res := ApplyANSI("anything", "   ", brackets)
	if res.Text != "anything" || res.Count != 0 {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestCellHandlesFoldedRunes(t *testing.T) {
	got := Cell("Zoë from KÖLN", "köln", brackets)
	if got != "Zoë from [[KÖLN]]" {
		t.Fatalf("unexpected cell %q", got)
	}
	if Cell("plain", "", brackets) != "plain" {
		t.Fatalf("empty query should not change the cell")
	}
}

func TestCountIgnoresStyling(t *testing.T) {
	s := "\x1b[1mhi\x1b[0m there, hi again, HI"
	if got := Count(s, "hi"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if Count(s, "") != 0 {
		t.Fatalf("empty query counts nothing")
	}
}
