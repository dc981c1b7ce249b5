package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swipedesk/internal/catalog"
	"swipedesk/internal/export"
	"swipedesk/internal/listview"
	"swipedesk/internal/record"
	"swipedesk/internal/stats"

	"github.com/spf13/cobra"
)

func lookupRoute(name string) (catalog.Route, error) {
	r, ok := catalog.Lookup(name)
	if !ok {
		paths := make([]string, 0, len(catalog.Routes()))
		for _, r := range catalog.Routes() {
			paths = append(paths, strings.TrimPrefix(r.Path, "/"))
		}
		return catalog.Route{}, fmt.Errorf("unknown view %q (want one of %s)", name, strings.Join(paths, ", "))
	}
	return r, nil
}

// loadView signs in from the stored session and fetches route's rows through
// the same controller the console uses.
func (a *App) loadView(ctx context.Context, r catalog.Route) (*listview.Controller, error) {
	if _, err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	src := a.client.Collection(r.Collection.Name).Select(r.Collection.SelectColumns())
	ctrl := listview.New(r.Collection, src, listview.WithLogger(a.log), listview.WithClock(a.now))
	if err := ctrl.Load(ctx); err != nil {
		return nil, err
	}
	return ctrl, nil
}

type viewFlags struct {
	query string
	sort  string
	asc   bool
	desc  bool
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "only rows whose searchable fields contain this text")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort field (default: the view's order column)")
	cmd.Flags().BoolVar(&f.asc, "asc", false, "sort ascending")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.MarkFlagsMutuallyExclusive("asc", "desc")
}

// apply narrows and orders ctrl's rows and returns them with the sort used.
func (f viewFlags) apply(ctrl *listview.Controller) ([]record.Row, string, bool) {
	ctrl.SetQuery(f.query)
	key, asc := ctrl.Sort()
	if f.sort != "" {
		key = f.sort
	}
	switch {
	case f.asc:
		asc = true
	case f.desc:
		asc = false
	}
	rows := ctrl.Visible()
	listview.SortRows(rows, key, asc)
	return rows, key, asc
}

func newListCmd(app *App) *cobra.Command {
	var vf viewFlags
	var format string
	cmd := &cobra.Command{
		Use:   "list <view>",
		Short: "Print the rows of a view (users, chats, matches, comments, reels, ...)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := lookupRoute(args[0])
			if err != nil {
				return err
			}
			ctrl, err := app.loadView(cmd.Context(), r)
			if err != nil {
				return err
			}
			rows, _, _ := vf.apply(ctrl)
			switch strings.ToLower(format) {
			case "", "table":
				return printRowTable(app.out, r.Collection, rows)
			case "json":
				return printJSON(app.out, plainRows(rows))
			case "yaml", "yml":
				return printYAML(app.out, plainRows(rows))
			default:
				return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
			}
		},
	}
	vf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format (table|json|yaml)")
	return cmd
}

func newCountCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "count [collection...]",
		Short: "Print exact row counts (default: every dashboard collection)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireSession(ctx); err != nil {
				return err
			}
			tables := catalog.DashboardTables
			if len(args) > 0 {
				tables = args
			}
			totals, err := stats.Totals(ctx, stats.RemoteSource(app.client), tables)
			if err != nil {
				return err
			}
			return printCounts(app.out, totals)
		},
	}
}

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := app.requireSession(ctx); err != nil {
				return err
			}
			d, err := stats.BuildDashboard(ctx, stats.RemoteSource(app.client), app.now())
			if err != nil {
				return err
			}
			return printDashboard(app.out, d)
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <view> <id>",
		Short: "Delete one row from a view that allows it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := lookupRoute(args[0])
			if err != nil {
				return err
			}
			if !r.Collection.Deletable {
				return fmt.Errorf("%s are read-only", r.Label)
			}
			if _, err := app.requireSession(ctx); err != nil {
				return err
			}
			src := app.client.Collection(r.Collection.Name)
			ctrl := listview.New(r.Collection, src, listview.WithLogger(app.log))

			approved := false
			confirm := func(id string) bool {
				approved = yes || app.confirm(fmt.Sprintf("Delete %s %s? [y/N] ", r.Collection.Noun, id))
				return approved
			}
			if _, err := ctrl.RequestDelete(ctx, args[1], confirm); err != nil {
				return err
			}
			if !approved {
				fmt.Fprintln(app.out, "Cancelled.")
				return nil
			}
			fmt.Fprintln(app.out, ctrl.Notice())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var vf viewFlags
	var format, dir string
	cmd := &cobra.Command{
		Use:   "export <view>",
		Short: "Write a view's rows to a Markdown or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			r, err := lookupRoute(args[0])
			if err != nil {
				return err
			}
			ctrl, err := app.loadView(cmd.Context(), r)
			if err != nil {
				return err
			}
			rows, key, asc := vf.apply(ctrl)

			if dir == "" {
				dir = app.cfg.ExportDir
			}
			exp, err := export.New(dir)
			if err != nil {
				return err
			}
			path, err := exp.Export(export.Snapshot{
				Route:      r,
				Rows:       rows,
				Query:      vf.query,
				SortKey:    key,
				Ascending:  asc,
				ExportedAt: app.now().In(time.UTC),
			}, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.out, path)
			return nil
		},
	}
	vf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "md", "export format (md|yaml)")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default ./exports)")
	return cmd
}
