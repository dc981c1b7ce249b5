// Package stats derives the dashboard figures: per-collection totals, the
// weekday histogram of likes and the engagement and content series.
package stats

import (
	"context"
	"math"
	"strconv"
	"time"

	"swipedesk/internal/apperr"
	"swipedesk/internal/record"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount renders n with English digit grouping ("12,345").
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

type Counter interface {
	Count(ctx context.Context, table string) (int, error)
}

type CounterFunc func(ctx context.Context, table string) (int, error)

func (f CounterFunc) Count(ctx context.Context, table string) (int, error) {
	return f(ctx, table)
}

type Count struct {
	Table string
	N     int
}

// Counts keeps totals in the order they were requested.
type Counts []Count

func (c Counts) Get(table string) int {
	for _, t := range c {
		if t.Table == table {
			return t.N
		}
	}
	return 0
}

func (c Counts) Sum() int {
	n := 0
	for _, t := range c {
		n += t.N
	}
	return n
}

// Totals counts each table in turn. The first failure stops the run.
func Totals(ctx context.Context, counter Counter, tables []string) (Counts, error) {
	out := make(Counts, 0, len(tables))
	for _, t := range tables {
		n, err := counter.Count(ctx, t)
		if err != nil {
			return nil, apperr.Remote("count "+t, err)
		}
		out = append(out, Count{Table: t, N: n})
	}
	return out, nil
}

// Histogram buckets rows by the weekday of created_at, Sunday first. Total
// is every row fetched; Skipped of them had no readable timestamp and sit in
// no bucket.
type Histogram struct {
	Buckets [7]int
	Total   int
	Skipped int
}

// WeekdayHistogram places each row in the weekday of its created_at in loc.
func WeekdayHistogram(rows []record.Row, loc *time.Location) Histogram {
	if loc == nil {
		loc = time.Local
	}
	h := Histogram{Total: len(rows)}
	for _, r := range rows {
		t, ok := r.CreatedAt()
		if !ok {
			h.Skipped++
			continue
		}
		h.Buckets[t.In(loc).Weekday()]++
	}
	return h
}

// Peak returns the busiest weekday; ties go to the earlier day. ok is false
// when there is nothing to rank.
func (h Histogram) Peak() (day time.Weekday, n int, ok bool) {
	for d, c := range h.Buckets {
		if c > n {
			day, n = time.Weekday(d), c
		}
	}
	return day, n, n > 0
}

// Percent is day's share of the total, 0 when empty.
func (h Histogram) Percent(day time.Weekday) float64 {
	if h.Total == 0 {
		return 0
	}
	return float64(h.Buckets[day]) / float64(h.Total) * 100
}

// PercentLabel is "0%" for an empty histogram, else one decimal.
func (h Histogram) PercentLabel(day time.Weekday) string {
	if h.Total == 0 {
		return "0%"
	}
	return PercentLabel(h.Percent(day))
}

// AveragePerDay is the total spread over a week, rounded.
func (h Histogram) AveragePerDay() int {
	return int(math.Round(float64(h.Total) / 7))
}

func (h Histogram) ActiveDays() int {
	n := 0
	for _, c := range h.Buckets {
		if c > 0 {
			n++
		}
	}
	return n
}

// PercentLabel renders p with one decimal: 66.666 -> "66.7%".
func PercentLabel(p float64) string {
	return strconv.FormatFloat(math.Round(p*10)/10, 'f', 1, 64) + "%"
}

// Today counts rows created on now's calendar day, in now's location.
func Today(rows []record.Row, now time.Time) int {
	y, m, d := now.Date()
	n := 0
	for _, r := range rows {
		t, ok := r.CreatedAt()
		if !ok {
			continue
		}
		ty, tm, td := t.In(now.Location()).Date()
		if ty == y && tm == m && td == d {
			n++
		}
	}
	return n
}

// ThisWeek counts rows created in the seven days up to and including now.
func ThisWeek(rows []record.Row, now time.Time) int {
	from := now.AddDate(0, 0, -7)
	n := 0
	for _, r := range rows {
		t, ok := r.CreatedAt()
		if !ok {
			continue
		}
		if !t.Before(from) && !t.After(now) {
			n++
		}
	}
	return n
}
