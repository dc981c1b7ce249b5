package stats

import "swipedesk/internal/catalog"

// Slice is one labelled value of a distribution.
type Slice struct {
	Label   string
	Table   string
	Value   int
	Percent float64
}

type seriesDef struct {
	label string
	table string
}

var engagementSeries = []seriesDef{
	{"Messages", catalog.Messages},
	{"Likes", catalog.Likes},
	{"Comments", catalog.Comments},
	{"Favorites", catalog.UserFavs},
}

var contentSeries = []seriesDef{
	{"Profiles", catalog.Profiles},
	{"Reels", catalog.Reels},
	{"Searches", catalog.SearchProfiles},
}

// Engagement is how activity splits across messages, likes, comments and
// favorites.
func Engagement(totals Counts) []Slice {
	return distribution(totals, engagementSeries)
}

// ContentDistribution splits content across profiles, reels and search
// profiles.
func ContentDistribution(totals Counts) []Slice {
	return distribution(totals, contentSeries)
}

func distribution(totals Counts, defs []seriesDef) []Slice {
	out := make([]Slice, len(defs))
	sum := 0
	for i, d := range defs {
		v := totals.Get(d.table)
		out[i] = Slice{Label: d.label, Table: d.table, Value: v}
		sum += v
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i].Percent = float64(out[i].Value) / float64(sum) * 100
	}
	return out
}

// Max is the largest value in the series, for scaling bars.
func Max(series []Slice) int {
	m := 0
	for _, s := range series {
		if s.Value > m {
			m = s.Value
		}
	}
	return m
}
