package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"swipedesk/internal/catalog"
	"swipedesk/internal/export"
	"swipedesk/internal/record"
	"swipedesk/internal/stats"

	"gopkg.in/yaml.v3"
)

func plainRows(rows []record.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, export.PlainRow(r))
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// printRowTable prints the id and the view's columns, one row per line.
func printRowTable(w io.Writer, coll catalog.Collection, rows []record.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	head := []string{"ID"}
	for _, c := range coll.Columns {
		head = append(head, strings.ToUpper(c.Title))
	}
	fmt.Fprintln(tw, strings.Join(head, "\t"))
	for _, r := range rows {
		cells := []string{r.ID()}
		for _, c := range coll.Columns {
			cells = append(cells, clip(r.String(c.Field), c.Width*2))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	noun := coll.Noun
	if len(rows) != 1 {
		noun += "s"
	}
	_, err := fmt.Fprintf(w, "\n%s %s\n", stats.FormatCount(len(rows)), noun)
	return err
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printCounts(w io.Writer, totals stats.Counts) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, c := range totals {
		fmt.Fprintf(tw, "%s\t%s\t\n", c.Table, stats.FormatCount(c.N))
	}
	fmt.Fprintf(tw, "total\t%s\t\n", stats.FormatCount(totals.Sum()))
	return tw.Flush()
}

func printDashboard(w io.Writer, d *stats.Dashboard) error {
	fmt.Fprintf(w, "Dashboard (%s)\n\n", d.GeneratedAt.Format(time.RFC1123))
	if err := printCounts(w, d.Totals); err != nil {
		return err
	}

	printSlices := func(title string, series []stats.Slice) {
		fmt.Fprintf(w, "\n%s\n", title)
		for _, s := range series {
			fmt.Fprintf(w, "  %-10s %8s  %s\n", s.Label, stats.FormatCount(s.Value), stats.PercentLabel(s.Percent))
		}
	}
	printSlices("Engagement", d.Engagement)
	printSlices("Content", d.Content)

	fmt.Fprintf(w, "\nLikes by weekday\n")
	for day := time.Sunday; day <= time.Saturday; day++ {
		fmt.Fprintf(w, "  %s %6d  %s\n", day.String()[:3], d.Likes.Buckets[day], d.Likes.PercentLabel(day))
	}
	s := d.Summary
	peak := "n/a"
	if s.HasPeak {
		peak = fmt.Sprintf("%s (%d)", s.PeakDay, s.PeakCount)
	}
	fmt.Fprintf(w, "  total %s, avg/day %s, peak %s, active days %d/7, today %d, this week %d\n",
		stats.FormatCount(s.Total), stats.FormatCount(s.Average), peak, s.ActiveDays, s.Today, s.ThisWeek)

	fmt.Fprintf(w, "\nRecent users\n")
	for _, u := range d.Recent {
		joined := ""
		if t, ok := u.CreatedAt(); ok {
			joined = t.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "  %-18s %-28s %s\n", u.String("username"), u.String("email"), joined)
	}
	return nil
}
