package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"swipedesk/internal/apperr"
	"swipedesk/internal/catalog"
	"swipedesk/internal/clipboard"
	"swipedesk/internal/config"
	"swipedesk/internal/export"
	"swipedesk/internal/listview"
	"swipedesk/internal/logging"
	"swipedesk/internal/remote"
	"swipedesk/internal/session"
	"swipedesk/internal/stats"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const sessionCheckInterval = time.Minute

type screen int

const (
	screenRestoring screen = iota
	screenLogin
	screenDashboard
	screenCollection
)

// Deps are the services the console drives.
type Deps struct {
	Config    config.AppConfig
	Gate      *session.Gate
	Client    *remote.Client
	Exporter  *export.Exporter
	Clipboard *clipboard.Clipboard
	Logger    *slog.Logger
	Now       func() time.Time
	// LoginHint is shown under the sign in prompt.
	LoginHint string
}

type Model struct {
	cfg      config.AppConfig
	gate     *session.Gate
	client   *remote.Client
	exporter *export.Exporter
	clip     *clipboard.Clipboard
	log      *slog.Logger
	now      func() time.Time

	help    help.Model
	spinner spinner.Model
	keys    keyMap

	width  int
	height int

	screen screen
	nav    int
	routes []catalog.Route
	busy   bool

	login loginForm

	dash    *stats.Dashboard
	dashErr error
	dashSeq int

	route       catalog.Route
	ctrl        *listview.Controller
	table       table.Model
	detail      viewport.Model
	search      textinput.Model
	searchMode  bool
	focusDetail bool
	rendered    map[string]string
	renderNonce int
	rendering   bool
	matchCount  int
	selectedID  string

	modal modalState

	status string
	err    error
}

type restoreMsg struct {
	session *session.Session
	err     error
}
type signInMsg struct {
	session *session.Session
	err     error
}
type signOutMsg struct{ err error }
type sessionTickMsg struct{}
type sessionRefreshMsg struct{ err error }
type dashboardMsg struct {
	seq  int
	dash *stats.Dashboard
	err  error
}
type loadedMsg struct {
	ctrl *listview.Controller
	err  error
}
type exportMsg struct {
	path string
	err  error
}
type copyMsg struct{ err error }

func NewModel(d Deps) Model {
	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	ti := textinput.New()
	ti.Placeholder = "Filter rows..."
	ti.Prompt = "/ "
	ti.CharLimit = 256

	now := d.Now
	if now == nil {
		now = time.Now
	}

	return Model{
		cfg:      d.Config,
		gate:     d.Gate,
		client:   d.Client,
		exporter: d.Exporter,
		clip:     d.Clipboard,
		log:      logging.OrDiscard(d.Logger),
		now:      now,
		help:     h,
		spinner:  sp,
		keys:     defaultKeys(),
		screen:   screenRestoring,
		routes:   catalog.Routes(),
		login:    newLoginForm(d.LoginHint),
		table:    newTable(),
		detail:   viewport.New(40, 10),
		search:   ti,
		rendered: make(map[string]string),
		busy:     true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.restoreCmd())
}

func (m Model) restoreCmd() tea.Cmd {
	return func() tea.Msg {
		s, err := m.gate.Restore(context.Background())
		return restoreMsg{session: s, err: err}
	}
}

func (m Model) signOutCmd() tea.Cmd {
	return func() tea.Msg {
		return signOutMsg{err: m.gate.SignOut(context.Background())}
	}
}

func sessionTick() tea.Cmd {
	return tea.Tick(sessionCheckInterval, func(time.Time) tea.Msg { return sessionTickMsg{} })
}

func (m Model) sessionRefreshCmd() tea.Cmd {
	return func() tea.Msg {
		_, err := m.gate.Refresh(context.Background())
		return sessionRefreshMsg{err: err}
	}
}

func (m *Model) startBusy() tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	return m.spinner.Tick
}

func (m *Model) setErr(err error) {
	m.err = err
	if err != nil {
		m.status = ""
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.err = nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		cmds = append(cmds, m.renderSelected(true))

	case restoreMsg:
		m.busy = false
		if msg.session != nil && m.gate.Authorized() {
			m.setStatus("Signed in as " + msg.session.Email)
			cmds = append(cmds, m.navigate(0), sessionTick())
			break
		}
		cmds = append(cmds, m.enterLogin(msg.err))

	case signInMsg:
		m.busy = false
		if msg.err != nil {
			m.login.err = msg.err
			m.log.Info("sign in rejected", "err", msg.err)
			break
		}
		m.login.reset()
		m.setStatus("Signed in as " + msg.session.Email)
		cmds = append(cmds, m.navigate(0), sessionTick())

	case signOutMsg:
		m.busy = false
		m.dash = nil
		m.ctrl = nil
		cmds = append(cmds, m.enterLogin(msg.err))
		if msg.err == nil {
			m.login.notice = "Signed out."
		}

	case sessionTickMsg:
		if m.gate.Authorized() {
			cmds = append(cmds, m.sessionRefreshCmd())
		}

	case sessionRefreshMsg:
		if msg.err != nil && (apperr.IsAuth(msg.err) || !m.gate.Authorized()) {
			cmds = append(cmds, m.enterLogin(msg.err))
			break
		}
		if msg.err != nil {
			m.log.Warn("session refresh failed", "err", msg.err)
		}
		cmds = append(cmds, sessionTick())

	case dashboardMsg:
		if m.screen != screenDashboard || msg.seq != m.dashSeq {
			break
		}
		m.busy = false
		m.dashErr = msg.err
		if msg.err != nil {
			m.setErr(msg.err)
			break
		}
		m.dash = msg.dash
		m.setStatus("Dashboard updated " + msg.dash.GeneratedAt.Format("15:04:05"))

	case loadedMsg:
		if msg.ctrl != m.ctrl {
			break
		}
		m.busy = false
		m.syncTable()
		if msg.err != nil {
			m.setErr(msg.err)
		} else {
			m.setStatus(fmt.Sprintf("Loaded %s %s", stats.FormatCount(m.ctrl.Len()), plural(m.route.Collection.Noun, m.ctrl.Len())))
		}
		cmds = append(cmds, m.renderSelected(true))

	case mutationMsg:
		if msg.ctrl != m.ctrl {
			break
		}
		cmds = append(cmds, m.applyMutation(msg))

	case renderMsg:
		if msg.nonce != m.renderNonce {
			break
		}
		m.rendering = false
		if msg.err != nil {
			m.setErr(msg.err)
			break
		}
		m.rendered[msg.cacheKey] = msg.rendered
		if m.selectedID == msg.rowID {
			m.setDetail(msg.rendered)
		}

	case exportMsg:
		if msg.err != nil {
			m.setErr(fmt.Errorf("export failed: %w", msg.err))
		} else {
			m.setStatus("Exported: " + msg.path)
		}

	case copyMsg:
		switch {
		case msg.err == nil:
			m.setStatus("Copied row JSON to clipboard")
		case isToolNotFound(msg.err):
			m.setErr(fmt.Errorf("could not copy: clipboard tool not found"))
		default:
			m.setErr(fmt.Errorf("could not copy: %w", msg.err))
		}

	case tea.KeyMsg:
		next, cmd := m.handleKey(msg)
		return next, cmd
	}

	if m.busy {
		var spin tea.Cmd
		m.spinner, spin = m.spinner.Update(msg)
		cmds = append(cmds, spin)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch {
	case m.modal.kind != modalNone:
		return m.updateModal(msg)
	case m.screen == screenRestoring:
		return m, nil
	case m.screen == screenLogin:
		return m.updateLogin(msg)
	case m.searchMode:
		return m.updateSearch(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	case key.Matches(msg, m.keys.Logout):
		m.log.Info("sign out requested")
		return m, tea.Batch(m.startBusy(), m.signOutCmd())
	case key.Matches(msg, m.keys.NextView):
		return m, m.navigate((m.nav + 1) % (len(m.routes) + 1))
	case key.Matches(msg, m.keys.PrevView):
		return m, m.navigate((m.nav + len(m.routes)) % (len(m.routes) + 1))
	case key.Matches(msg, m.keys.JumpView):
		n := int(msg.String()[0] - '0')
		if n <= len(m.routes) {
			return m, m.navigate(n)
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.reload()
	}

	if m.screen == screenCollection {
		return m.updateCollection(msg)
	}
	return m, nil
}

// navigate switches to nav entry i: 0 is the dashboard, the rest follow the
// route table. Entering a view always reloads it.
func (m *Model) navigate(i int) tea.Cmd {
	m.nav = i
	m.searchMode = false
	m.search.Blur()
	m.modal = modalState{}
	if i == 0 {
		m.screen = screenDashboard
		m.ctrl = nil
		return m.reload()
	}
	m.screen = screenCollection
	return m.mountRoute(m.routes[i-1])
}

func (m *Model) reload() tea.Cmd {
	switch m.screen {
	case screenDashboard:
		m.dashSeq++
		return tea.Batch(m.startBusy(), m.dashboardCmd(m.dashSeq))
	case screenCollection:
		if m.ctrl == nil {
			return nil
		}
		return tea.Batch(m.startBusy(), m.loadCmd(m.ctrl))
	}
	return nil
}

func (m *Model) enterLogin(err error) tea.Cmd {
	m.screen = screenLogin
	m.ctrl = nil
	m.dash = nil
	m.modal = modalState{}
	m.searchMode = false
	m.login.err = err
	m.setStatus("")
	return m.login.focusField(0)
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	main := m.mainWidth()
	body := m.bodyHeight()

	tableWidth := main * 3 / 5
	if tableWidth < 30 {
		tableWidth = main
	}
	m.table.SetWidth(tableWidth - 2)
	m.table.SetHeight(max(body-4, 3))
	m.detail.Width = max(main-tableWidth-4, 20)
	m.detail.Height = max(body-2, 3)
	m.login.setWidth(min(main-8, 48))
}

func (m Model) sidebarWidth() int {
	w := 20
	if m.width < 70 {
		w = 16
	}
	return w
}

func (m Model) mainWidth() int {
	return max(m.width-m.sidebarWidth()-1, 20)
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if m.help.ShowAll {
		h -= 4
	}
	return max(h, 8)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}
	if m.screen == screenRestoring {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Restoring session...")
	}
	if m.screen == screenLogin {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.loginView())
	}

	var main string
	switch m.screen {
	case screenDashboard:
		main = m.dashboardView()
	case screenCollection:
		main = m.collectionView()
	}
	if m.modal.kind != modalNone {
		main = lipgloss.Place(m.mainWidth(), m.bodyHeight(), lipgloss.Center, lipgloss.Center, m.modalView())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(m.sidebarWidth()).Height(m.bodyHeight()).Render(m.sidebarView()),
		" ",
		lipgloss.NewStyle().MaxWidth(m.mainWidth()).Render(main),
	)

	helpView := m.help.View(m.keys)
	if m.searchMode {
		helpView = m.search.View() + "  " + helpView
	} else if q := m.query(); q != "" {
		helpView = "search: " + q + "  " + helpView
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		body,
		helpView,
	)
}

func (m Model) sidebarView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("swipedesk") + "\n\n")
	entries := []string{"Dashboard"}
	for _, r := range m.routes {
		entries = append(entries, r.Label)
	}
	for i, label := range entries {
		line := fmt.Sprintf("%d %s", i, label)
		if i == m.nav {
			b.WriteString(navActiveStyle.Render(line))
		} else {
			b.WriteString(navStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if s := m.gate.Session(); s != nil {
		b.WriteString("\n" + mutedStyle.Render(shorten(s.Email, m.sidebarWidth()-1)))
	}
	return b.String()
}

func (m Model) statusLine() string {
	status := ""
	if m.busy {
		status = m.spinner.View() + " loading..."
	}
	switch m.screen {
	case screenDashboard:
		status += "  view=/"
	case screenCollection:
		status += "  view=" + m.route.Path
		if m.ctrl != nil {
			status += fmt.Sprintf("  rows=%d/%d", len(m.ctrl.Visible()), m.ctrl.Len())
			if k, asc := m.ctrl.Sort(); k != "" {
				dir := "desc"
				if asc {
					dir = "asc"
				}
				status += "  sort=" + k + " " + dir
			}
		}
		if m.query() != "" {
			status += fmt.Sprintf("  [match %d]", m.matchCount)
		}
	}
	if m.rendering {
		status += "  [rendering]"
	}
	if s := strings.TrimSpace(m.status); s != "" {
		status += "  " + shorten(s, 80)
	}
	if m.err != nil {
		status += "  err=" + apperr.Message(m.err)
	}
	return statusStyle.Width(max(m.width, 1)).Render(strings.TrimSpace(status))
}

func (m Model) query() string {
	if m.ctrl == nil {
		return ""
	}
	return m.ctrl.Query()
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func plural(noun string, n int) string {
	if noun == "" {
		noun = "row"
	}
	if n == 1 {
		return noun
	}
	return noun + "s"
}
