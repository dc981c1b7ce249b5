package listview

import (
	"strconv"
	"strings"
	"time"

	"swipedesk/internal/record"
)

type valueKind int

const (
	kindTime valueKind = iota
	kindNumber
	kindText
)

type sortValue struct {
	kind valueKind
	t    time.Time
	f    float64
	s    string
}

func parseSortValue(v string) sortValue {
	if t, ok := record.ParseTime(v); ok {
		return sortValue{kind: kindTime, t: t}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return sortValue{kind: kindNumber, f: f}
	}
	return sortValue{kind: kindText, s: strings.ToLower(v)}
}

// compareSortValues orders two non-empty cell values. Timestamps sort before
// numbers and numbers before text, so mixed columns still order consistently.
func compareSortValues(a, b sortValue) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case kindTime:
		return a.t.Compare(b.t)
	case kindNumber:
		switch {
		case a.f < b.f:
			return -1
		case a.f > b.f:
			return 1
		}
		return 0
	}
	return strings.Compare(a.s, b.s)
}
