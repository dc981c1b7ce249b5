package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"swipedesk/internal/catalog"
	"swipedesk/internal/clipboard"
	"swipedesk/internal/config"
	"swipedesk/internal/export"
	"swipedesk/internal/highlight"
	"swipedesk/internal/listview"
	"swipedesk/internal/record"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type renderMsg struct {
	cacheKey string
	rowID    string
	rendered string
	nonce    int
	err      error
}

type mutationKind int

const (
	mutDelete mutationKind = iota
	mutUpdate
	mutInsert
)

type mutationMsg struct {
	ctrl    *listview.Controller
	kind    mutationKind
	id      string
	row     record.Row
	removed bool
	err     error
}

func newTable() table.Model {
	t := table.New(table.WithFocused(true), table.WithHeight(10))
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("16")).
		Background(lipgloss.Color("39")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// mountRoute replaces the active controller. Results still in flight for the
// old one are dropped when they arrive.
func (m *Model) mountRoute(r catalog.Route) tea.Cmd {
	src := m.client.Collection(r.Collection.Name).Select(r.Collection.SelectColumns())
	m.route = r
	m.ctrl = listview.New(r.Collection, src, listview.WithLogger(m.log), listview.WithClock(m.now))
	m.selectedID = ""
	m.focusDetail = false
	m.search.SetValue("")
	m.matchCount = 0

	cols := make([]table.Column, 0, len(r.Collection.Columns))
	for _, c := range r.Collection.Columns {
		cols = append(cols, table.Column{Title: c.Title, Width: c.Width})
	}
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	// Parks the cursor at -1 until syncTable has rows for it.
	m.table.SetCursor(0)
	m.table.Focus()
	m.detail.SetContent("")
	m.log.Debug("view mounted", "path", r.Path, "collection", r.Collection.Name)
	return tea.Batch(m.startBusy(), m.loadCmd(m.ctrl))
}

func (m Model) loadCmd(ctrl *listview.Controller) tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{ctrl: ctrl, err: ctrl.Load(context.Background())}
	}
}

// syncTable copies the controller's visible rows into the table, keeping the
// cursor on the same row id where it survives.
func (m *Model) syncTable() {
	if m.ctrl == nil {
		return
	}
	visible := m.ctrl.Visible()
	rows := make([]table.Row, 0, len(visible))
	cursor := -1
	for i, r := range visible {
		cells := make(table.Row, 0, len(m.route.Collection.Columns))
		for j, c := range m.route.Collection.Columns {
			v := r.String(c.Field)
			if j == 0 && m.ctrl.Pending(r.ID()) {
				v = "… " + v
			}
			cells = append(cells, v)
		}
		rows = append(rows, cells)
		if r.ID() == m.selectedID {
			cursor = i
		}
	}
	m.table.SetRows(rows)
	switch {
	case cursor >= 0:
		m.table.SetCursor(cursor)
	case len(rows) == 0:
	case m.table.Cursor() < 0:
		// Fresh or emptied table.
		m.table.SetCursor(0)
	case m.table.Cursor() >= len(rows):
		m.table.SetCursor(len(rows) - 1)
	}

	q := m.query()
	m.matchCount = 0
	if q != "" {
		fields := m.route.Collection.SearchFields
		for _, r := range visible {
			fs := fields
			if len(fs) == 0 {
				fs = r.Fields()
			}
			for _, f := range fs {
				m.matchCount += highlight.Count(r.String(f), q)
			}
		}
	}
}

func (m Model) selectedRow() (record.Row, bool) {
	if m.ctrl == nil {
		return nil, false
	}
	visible := m.ctrl.Visible()
	i := m.table.Cursor()
	if i < 0 || i >= len(visible) {
		return nil, false
	}
	return visible[i], true
}

// renderSelected renders the detail pane for the row under the cursor. With
// force false it does nothing while the selection is unchanged.
func (m *Model) renderSelected(force bool) tea.Cmd {
	if m.screen != screenCollection {
		return nil
	}
	row, ok := m.selectedRow()
	if !ok {
		m.selectedID = ""
		m.detail.SetContent(mutedStyle.Render("Nothing selected."))
		return nil
	}
	if !force && row.ID() == m.selectedID {
		return nil
	}
	m.selectedID = row.ID()

	md := export.RowMarkdown(m.route.Label+" · "+row.ID(), row)
	wrap := max(m.detail.Width-2, 20)
	cacheKey := fmt.Sprintf("%d\x00%s", wrap, md)
	if rendered, ok := m.rendered[cacheKey]; ok {
		m.setDetail(rendered)
		return nil
	}
	m.renderNonce++
	m.rendering = true
	return renderRowCmd(cacheKey, row.ID(), md, wrap, m.renderNonce)
}

func renderRowCmd(cacheKey, rowID, md string, wrap, nonce int) tea.Cmd {
	return func() tea.Msg {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return renderMsg{cacheKey: cacheKey, rowID: rowID, nonce: nonce, err: err}
		}
		out, err := r.Render(md)
		return renderMsg{cacheKey: cacheKey, rowID: rowID, rendered: out, nonce: nonce, err: err}
	}
}

// setDetail shows rendered with the current query highlighted and scrolls to
// the first hit.
func (m *Model) setDetail(rendered string) {
	res := highlight.ApplyANSI(rendered, m.query(), func(s string) string {
		return searchMatchStyle.Render(s)
	})
	m.detail.SetContent(res.Text)
	if len(res.LineIndex) > 0 {
		m.detail.SetYOffset(res.LineIndex[0])
		return
	}
	m.detail.GotoTop()
}

func (m Model) updateCollection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ctrl == nil {
		return m, nil
	}
	coll := m.route.Collection

	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.search.SetValue(m.ctrl.Query())
		m.search.CursorEnd()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Esc):
		if m.ctrl.Query() != "" {
			m.ctrl.SetQuery("")
			m.search.SetValue("")
			m.syncTable()
			m.setStatus("Search cleared")
			return m, m.renderSelected(true)
		}
		return m, nil

	case key.Matches(msg, m.keys.Sort):
		m.ctrl.ToggleSort()
		m.syncTable()
		return m, m.renderSelected(false)

	case key.Matches(msg, m.keys.SortField):
		m.ctrl.SortBy(nextSortField(coll, m.ctrl))
		m.syncTable()
		return m, m.renderSelected(false)

	case key.Matches(msg, m.keys.Focus):
		m.focusDetail = !m.focusDetail
		if m.focusDetail {
			m.table.Blur()
		} else {
			m.table.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		row, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		if !coll.Deletable {
			m.setStatus(fmt.Sprintf("%s are read-only here", plural(coll.Noun, 2)))
			return m, nil
		}
		m.openConfirmDelete(row)
		return m, nil

	case key.Matches(msg, m.keys.Edit):
		row, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		if err := m.ctrl.BeginEdit(row.ID()); err != nil {
			m.setErr(err)
			return m, nil
		}
		return m, m.openEdit(row)

	case key.Matches(msg, m.keys.Add):
		if !coll.Insertable() {
			m.setStatus(fmt.Sprintf("%s cannot be added here", plural(coll.Noun, 2)))
			return m, nil
		}
		return m, m.openInsert()

	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd(export.Markdown)

	case key.Matches(msg, m.keys.ExportYML):
		return m, m.exportCmd(export.YAML)

	case key.Matches(msg, m.keys.Copy):
		row, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		return m, m.copyCmd(row)
	}

	if m.focusDetail {
		var cmd tea.Cmd
		switch {
		case key.Matches(msg, m.keys.Up):
			m.detail.LineUp(1)
		case key.Matches(msg, m.keys.Down):
			m.detail.LineDown(1)
		case key.Matches(msg, m.keys.PageUp):
			m.detail.HalfViewUp()
		case key.Matches(msg, m.keys.PageDown):
			m.detail.HalfViewDown()
		default:
			m.detail, cmd = m.detail.Update(msg)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, tea.Batch(cmd, m.renderSelected(false))
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.search.Blur()
		if q := m.query(); q != "" {
			m.setStatus(fmt.Sprintf("%d rows match %q", len(m.ctrl.Visible()), q))
		}
		return m, nil
	case "esc":
		m.searchMode = false
		m.search.Blur()
		m.search.SetValue("")
		if m.ctrl != nil {
			m.ctrl.SetQuery("")
			m.syncTable()
		}
		return m, m.renderSelected(true)
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.ctrl != nil && m.search.Value() != m.ctrl.Query() {
		m.ctrl.SetQuery(m.search.Value())
		m.syncTable()
		return m, tea.Batch(cmd, m.renderSelected(true))
	}
	return m, cmd
}

// nextSortField cycles through the displayed columns.
func nextSortField(coll catalog.Collection, ctrl *listview.Controller) string {
	if len(coll.Columns) == 0 {
		return coll.OrderBy
	}
	current, _ := ctrl.Sort()
	for i, c := range coll.Columns {
		if c.Field == current {
			return coll.Columns[(i+1)%len(coll.Columns)].Field
		}
	}
	return coll.Columns[0].Field
}

func (m Model) exportCmd(format export.Format) tea.Cmd {
	if m.exporter == nil || m.ctrl == nil {
		return nil
	}
	key, asc := m.ctrl.Sort()
	snap := export.Snapshot{
		Route:      m.route,
		Rows:       m.ctrl.Visible(),
		Query:      m.ctrl.Query(),
		SortKey:    key,
		Ascending:  asc,
		ExportedAt: m.now(),
	}
	exp := m.exporter
	return func() tea.Msg {
		path, err := exp.Export(snap, format)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copyCmd(row record.Row) tea.Cmd {
	clip := m.clip
	if clip == nil {
		clip = clipboard.New()
	}
	return func() tea.Msg {
		return copyMsg{err: clip.CopyRow(context.Background(), row)}
	}
}

func isToolNotFound(err error) bool {
	return errors.Is(err, clipboard.ErrToolNotFound)
}

func (m *Model) applyMutation(msg mutationMsg) tea.Cmd {
	m.busy = false
	m.modal.busy = false
	if msg.err != nil {
		m.log.Info("mutation failed", "collection", m.route.Collection.Name, "id", msg.id, "err", msg.err)
		if m.modal.kind != modalNone {
			m.modal.err = msg.err
		} else {
			m.setErr(msg.err)
		}
		m.syncTable()
		return nil
	}
	m.modal = modalState{}
	switch msg.kind {
	case mutInsert:
		m.selectedID = msg.row.ID()
	case mutDelete:
		if msg.id == m.selectedID {
			m.selectedID = ""
		}
	}
	m.setStatus(m.ctrl.Notice())
	m.syncTable()
	return m.renderSelected(true)
}

func (m Model) collectionView() string {
	if m.ctrl == nil {
		return ""
	}
	coll := m.route.Collection
	title := titleStyle.Render(m.route.Label)
	if m.ctrl.Refreshing() {
		title += " " + mutedStyle.Render("refreshing...")
	}

	var body string
	switch m.ctrl.Phase() {
	case listview.PhaseLoading:
		body = m.spinner.View() + " Loading " + plural(coll.Noun, 2) + "..."
	case listview.PhaseErrored:
		body = errorStyle.Render(failureMessage(m.ctrl.Err())) + "\n\n" +
			mutedStyle.Render("Press r to try again.")
	case listview.PhaseEmpty:
		if q := m.query(); q != "" {
			body = mutedStyle.Render(fmt.Sprintf("No %s match %q.", plural(coll.Noun, 2), q))
		} else {
			body = mutedStyle.Render(fmt.Sprintf("No %s found.", plural(coll.Noun, 2)))
		}
	default:
		left := panelStyle(!m.focusDetail).Render(m.table.View())
		right := panelStyle(m.focusDetail).Render(m.detail.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}
	return strings.Join([]string{title, body}, "\n")
}
