package stats

import (
	"context"
	"time"

	"swipedesk/internal/apperr"
	"swipedesk/internal/catalog"
	"swipedesk/internal/record"
	"swipedesk/internal/remote"
)

const RecentUsers = 5

// Source is what the dashboard reads from the backend.
type Source interface {
	Counter
	List(ctx context.Context, table string, order remote.Order, limit int) ([]record.Row, error)
}

type remoteSource struct {
	c *remote.Client
}

func RemoteSource(c *remote.Client) Source {
	return remoteSource{c: c}
}

func (s remoteSource) Count(ctx context.Context, table string) (int, error) {
	return s.c.Collection(table).Count(ctx)
}

func (s remoteSource) List(ctx context.Context, table string, order remote.Order, limit int) ([]record.Row, error) {
	coll := s.c.Collection(table)
	if limit > 0 {
		return coll.Recent(ctx, order, limit)
	}
	return coll.List(ctx, order)
}

// LikesSummary is the headline figures above the weekday chart.
type LikesSummary struct {
	Total      int
	Average    int
	PeakDay    time.Weekday
	PeakCount  int
	HasPeak    bool
	ActiveDays int
	Today      int
	ThisWeek   int
}

type Dashboard struct {
	Totals      Counts
	Recent      []record.Row
	Likes       Histogram
	Summary     LikesSummary
	Engagement  []Slice
	Content     []Slice
	GeneratedAt time.Time
}

// BuildDashboard gathers every dashboard figure: totals first, then the
// latest users, then the likes used for the weekday chart.
func BuildDashboard(ctx context.Context, src Source, now time.Time) (*Dashboard, error) {
	totals, err := Totals(ctx, src, catalog.DashboardTables)
	if err != nil {
		return nil, err
	}
	recent, err := src.List(ctx, catalog.Users, remote.Order{Column: record.FieldCreatedAt}, RecentUsers)
	if err != nil {
		return nil, apperr.Remote("recent users", err)
	}
	likes, err := src.List(ctx, catalog.Likes, remote.Order{Column: record.FieldCreatedAt, Ascending: true}, 0)
	if err != nil {
		return nil, apperr.Remote("list likes", err)
	}
	return Summarize(totals, recent, likes, now), nil
}

// Summarize computes the dashboard from already fetched data.
func Summarize(totals Counts, recent, likes []record.Row, now time.Time) *Dashboard {
	h := WeekdayHistogram(likes, now.Location())
	day, n, ok := h.Peak()
	return &Dashboard{
		Totals: totals,
		Recent: recent,
		Likes:  h,
		Summary: LikesSummary{
			Total:      h.Total,
			Average:    h.AveragePerDay(),
			PeakDay:    day,
			PeakCount:  n,
			HasPeak:    ok,
			ActiveDays: h.ActiveDays(),
			Today:      Today(likes, now),
			ThisWeek:   ThisWeek(likes, now),
		},
		Engagement:  Engagement(totals),
		Content:     ContentDistribution(totals),
		GeneratedAt: now,
	}
}
