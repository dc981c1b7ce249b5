package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swipedesk/internal/apperr"
	"swipedesk/internal/catalog"
	"swipedesk/internal/stats"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var cardLabels = map[string]string{
	catalog.Users:          "Total Users",
	catalog.Messages:       "Messages",
	catalog.Likes:          "Likes",
	catalog.Comments:       "Comments",
	catalog.Reels:          "Reels",
	catalog.Profiles:       "Profiles",
	catalog.SearchProfiles: "Search Profiles",
	catalog.UserFavs:       "Favorites",
}

// dashboardCmd fetches the figures; seq ties the result to the reload that
// asked for it.
func (m Model) dashboardCmd(seq int) tea.Cmd {
	src := stats.RemoteSource(m.client)
	now := m.now()
	return func() tea.Msg {
		d, err := stats.BuildDashboard(context.Background(), src, now)
		return dashboardMsg{seq: seq, dash: d, err: err}
	}
}

func failureMessage(err error) string {
	if err == nil {
		return "Something went wrong."
	}
	return apperr.Message(err)
}

func (m Model) dashboardView() string {
	width := m.mainWidth()
	if m.dash == nil {
		if m.dashErr != nil {
			return titleStyle.Render("Dashboard") + "\n\n" +
				errorStyle.Render(failureMessage(m.dashErr)) + "\n\n" +
				mutedStyle.Render("Press r to try again.")
		}
		return titleStyle.Render("Dashboard") + "\n\n" + m.spinner.View() + " Loading dashboard..."
	}
	d := m.dash

	sections := []string{
		titleStyle.Render("Dashboard") + " " + mutedStyle.Render("as of "+d.GeneratedAt.Format("Jan 2 15:04")),
		renderCards(d.Totals, width),
	}

	charts := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle(false).Render(renderSlices("Engagement", d.Engagement, 16)),
		" ",
		panelStyle(false).Render(renderSlices("Content", d.Content, 16)),
	)
	sections = append(sections, charts)

	likes := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle(false).Render(renderHistogram(d.Likes, 24)),
		" ",
		panelStyle(false).Render(renderSummary(d.Summary)),
	)
	sections = append(sections, likes)
	sections = append(sections, panelStyle(false).Render(m.renderRecent(d)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderCards(totals stats.Counts, width int) string {
	perRow := max((width)/20, 1)
	var rows []string
	var row []string
	for _, c := range totals {
		label := cardLabels[c.Table]
		if label == "" {
			label = c.Table
		}
		card := cardStyle.Render(mutedStyle.Render(label) + "\n" + cardValueStyle.Render(stats.FormatCount(c.N)))
		row = append(row, card)
		if len(row) == perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func bar(n, maxN, width int) string {
	if maxN <= 0 || n <= 0 {
		return ""
	}
	w := n * width / maxN
	if w == 0 {
		w = 1
	}
	return strings.Repeat("█", w)
}

func renderSlices(title string, series []stats.Slice, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n")
	top := stats.Max(series)
	for _, s := range series {
		fmt.Fprintf(&b, "%-10s %s %s %s\n",
			s.Label,
			barStyle.Render(fmt.Sprintf("%-*s", width, bar(s.Value, top, width))),
			fmt.Sprintf("%6s", stats.FormatCount(s.Value)),
			mutedStyle.Render(stats.PercentLabel(s.Percent)),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHistogram(h stats.Histogram, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Likes by weekday") + "\n")
	peak, _, hasPeak := h.Peak()
	top := 0
	for _, n := range h.Buckets {
		top = max(top, n)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		n := h.Buckets[d]
		style := barStyle
		if hasPeak && d == peak {
			style = peakBarStyle
		}
		fmt.Fprintf(&b, "%s %s %4d %s\n",
			d.String()[:3],
			style.Render(fmt.Sprintf("%-*s", width, bar(n, top, width))),
			n,
			mutedStyle.Render(h.PercentLabel(d)),
		)
	}
	if h.Skipped > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d without a timestamp", h.Skipped)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSummary(s stats.LikesSummary) string {
	peak := "n/a"
	if s.HasPeak {
		peak = fmt.Sprintf("%s (%s)", s.PeakDay, stats.FormatCount(s.PeakCount))
	}
	lines := []string{
		titleStyle.Render("Likes summary"),
		fmt.Sprintf("Total       %s", stats.FormatCount(s.Total)),
		fmt.Sprintf("Avg / day   %s", stats.FormatCount(s.Average)),
		fmt.Sprintf("Peak day    %s", peak),
		fmt.Sprintf("Active days %d/7", s.ActiveDays),
		fmt.Sprintf("Today       %s", stats.FormatCount(s.Today)),
		fmt.Sprintf("This week   %s", stats.FormatCount(s.ThisWeek)),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRecent(d *stats.Dashboard) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Recent users") + "\n")
	if len(d.Recent) == 0 {
		b.WriteString(mutedStyle.Render("No users yet."))
		return b.String()
	}
	for _, u := range d.Recent {
		joined := ""
		if t, ok := u.CreatedAt(); ok {
			joined = t.In(m.now().Location()).Format("Jan 2 15:04")
		}
		fmt.Fprintf(&b, "%-18s %-26s %s\n",
			shorten(u.String("username"), 18),
			shorten(u.String("email"), 26),
			mutedStyle.Render(joined),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}
