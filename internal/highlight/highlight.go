// Package highlight marks occurrences of the filter query inside rendered
// text without disturbing ANSI styling already present.
package highlight

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

var ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

type Result struct {
	Text      string
	Count     int
	LineIndex []int
}

// ApplyANSI wraps every case-insensitive occurrence of query in input.
// Escape sequences are left intact and a match never spans one.
func ApplyANSI(input, query string, wrap func(string) string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Text: input}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}

	lines := strings.SplitAfter(input, "\n")
	var out strings.Builder
	lineMatches := make([]int, 0, 16)
	total := 0

	for lineNo, line := range lines {
		core, hasNewline := strings.CutSuffix(line, "\n")
		rendered, count := applyToANSIText(core, query, wrap)
		out.WriteString(rendered)
		if hasNewline {
			out.WriteByte('\n')
		}
		if count > 0 {
			lineMatches = append(lineMatches, lineNo)
			total += count
		}
	}

	return Result{Text: out.String(), Count: total, LineIndex: lineMatches}
}

// Cell highlights query in a single table cell.
func Cell(text, query string, wrap func(string) string) string {
	if strings.TrimSpace(query) == "" {
		return text
	}
	out, _ := applyToANSIText(text, strings.TrimSpace(query), wrap)
	return out
}

// Count reports how many times query occurs in the visible text of s.
func Count(s, query string) int {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0
	}
	plain := ansi.Strip(s)
	n := 0
	for from := 0; ; {
		start, end := indexFold(plain, query, from)
		if start < 0 {
			return n
		}
		n++
		from = end
	}
}

func applyToANSIText(s, query string, wrap func(string) string) (string, int) {
	indices := ansiCSI.FindAllStringIndex(s, -1)
	if len(indices) == 0 {
		return applyToPlain(s, query, wrap)
	}

	var out strings.Builder
	total := 0
	pos := 0
	for _, idx := range indices {
		if idx[0] > pos {
			plain, count := applyToPlain(s[pos:idx[0]], query, wrap)
			out.WriteString(plain)
			total += count
		}
		out.WriteString(s[idx[0]:idx[1]])
		pos = idx[1]
	}
	if pos < len(s) {
		plain, count := applyToPlain(s[pos:], query, wrap)
		out.WriteString(plain)
		total += count
	}
	return out.String(), total
}

func applyToPlain(s, query string, wrap func(string) string) (string, int) {
	if s == "" || query == "" {
		return s, 0
	}
	var out strings.Builder
	count := 0
	from := 0
	for {
		start, end := indexFold(s, query, from)
		if start < 0 {
			out.WriteString(s[from:])
			break
		}
		out.WriteString(s[from:start])
		out.WriteString(wrap(s[start:end]))
		count++
		from = end
	}
	return out.String(), count
}

// indexFold finds query in s at or after from, ignoring case. It returns the
// byte range of the match in s, which may differ in length from query when
// case folding changes a rune's width.
func indexFold(s, query string, from int) (int, int) {
	for i := from; i < len(s); {
		if end, ok := prefixFold(s[i:], query); ok {
			return i, i + end
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

func prefixFold(s, prefix string) (int, bool) {
	pos := 0
	for _, pr := range prefix {
		if pos >= len(s) {
			return 0, false
		}
		sr, size := utf8.DecodeRuneInString(s[pos:])
		if !strings.EqualFold(string(sr), string(pr)) {
			return 0, false
		}
		pos += size
	}
	return pos, true
}
