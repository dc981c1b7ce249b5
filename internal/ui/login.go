package ui

import (
	"context"
	"strings"

	"swipedesk/internal/apperr"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type loginForm struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	err      error
	notice   string
	hint     string
}

func newLoginForm(hint string) loginForm {
	email := textinput.New()
	email.Placeholder = "admin@example.com"
	email.Prompt = "Email    "
	email.CharLimit = 254
	email.Width = 32

	pw := textinput.New()
	pw.Placeholder = "password"
	pw.Prompt = "Password "
	pw.CharLimit = 128
	pw.Width = 32
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	return loginForm{email: email, password: pw, hint: hint}
}

func (f *loginForm) setWidth(w int) {
	if w < 16 {
		w = 16
	}
	f.email.Width = w - len(f.email.Prompt)
	f.password.Width = w - len(f.password.Prompt)
}

func (f *loginForm) focusField(i int) tea.Cmd {
	f.focus = i % 2
	if f.focus == 0 {
		f.password.Blur()
		return f.email.Focus()
	}
	f.email.Blur()
	return f.password.Focus()
}

// reset clears the password and any message but keeps the email for the
// next sign in.
func (f *loginForm) reset() {
	f.password.SetValue("")
	f.err = nil
	f.notice = ""
	f.focus = 0
	f.email.Blur()
	f.password.Blur()
}

func (m Model) signInCmd(email, password string) tea.Cmd {
	gate := m.gate
	return func() tea.Msg {
		s, err := gate.SignIn(context.Background(), email, password)
		return signInMsg{session: s, err: err}
	}
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		return m, m.login.focusField(m.login.focus + 1)
	case "enter":
		if m.login.focus == 0 && m.login.password.Value() == "" {
			return m, m.login.focusField(1)
		}
		m.login.err = nil
		m.login.notice = ""
		email := strings.TrimSpace(m.login.email.Value())
		m.log.Info("sign in requested", "email", strings.ToLower(email))
		return m, tea.Batch(m.startBusy(), m.signInCmd(email, m.login.password.Value()))
	}

	var cmd tea.Cmd
	if m.login.focus == 0 {
		m.login.email, cmd = m.login.email.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	return m, cmd
}

func (m Model) loginView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("swipedesk admin") + "\n")
	b.WriteString(mutedStyle.Render("Sign in with an admin account.") + "\n")
	if m.login.hint != "" {
		b.WriteString(noticeStyle.Render(m.login.hint) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.login.email.View() + "\n")
	b.WriteString(m.login.password.View() + "\n\n")
	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " Signing in...")
	case m.login.err != nil:
		b.WriteString(errorStyle.Render(apperr.Message(m.login.err)))
	case m.login.notice != "":
		b.WriteString(noticeStyle.Render(m.login.notice))
	default:
		b.WriteString(mutedStyle.Render("enter sign in · tab switch field · esc quit"))
	}
	return modalStyle.Render(b.String())
}
