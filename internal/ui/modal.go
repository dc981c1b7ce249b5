package ui

import (
	"context"
	"strings"

	"swipedesk/internal/apperr"
	"swipedesk/internal/catalog"
	"swipedesk/internal/listview"
	"swipedesk/internal/record"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalConfirmDelete
	modalEdit
	modalInsert
)

type modalState struct {
	kind    modalKind
	id      string
	summary string
	err     error
	busy    bool

	edit   textinput.Model
	fields []textinput.Model
	focus  int
}

func (m *Model) openConfirmDelete(row record.Row) {
	summary := row.ID()
	if cols := m.route.Collection.Columns; len(cols) > 0 {
		if v := row.String(cols[0].Field); v != "" {
			summary = v
		}
	}
	m.modal = modalState{kind: modalConfirmDelete, id: row.ID(), summary: shorten(summary, 40)}
}

func (m *Model) openEdit(row record.Row) tea.Cmd {
	coll := m.route.Collection
	ti := textinput.New()
	ti.Prompt = coll.EditLabel + ": "
	ti.CharLimit = 2000
	ti.Width = min(m.mainWidth()-16, 60)
	ti.SetValue(row.String(coll.EditField))
	ti.CursorEnd()
	m.modal = modalState{kind: modalEdit, id: row.ID(), edit: ti}
	return m.modal.edit.Focus()
}

func (m *Model) openInsert() tea.Cmd {
	coll := m.route.Collection
	fields := make([]textinput.Model, 0, len(coll.InsertFields))
	for _, f := range coll.InsertFields {
		ti := textinput.New()
		ti.Prompt = fieldPrompt(f)
		ti.CharLimit = 256
		ti.Width = 32
		fields = append(fields, ti)
	}
	m.modal = modalState{kind: modalInsert, fields: fields}
	if len(fields) == 0 {
		return nil
	}
	return m.modal.fields[0].Focus()
}

func fieldPrompt(f catalog.Field) string {
	p := f.Label
	if f.Required {
		p += "*"
	}
	return p + ": "
}

func (m Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.modal.busy {
		return m, nil
	}
	switch m.modal.kind {
	case modalConfirmDelete:
		return m.updateConfirmDelete(msg)
	case modalEdit:
		return m.updateEdit(msg)
	case modalInsert:
		return m.updateInsert(msg)
	}
	return m, nil
}

func (m Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		ctrl, id := m.ctrl, m.modal.id
		m.modal.busy = true
		m.modal.err = nil
		m.setStatus("Deleting...")
		return m, tea.Batch(m.startBusy(), func() tea.Msg {
			removed, err := ctrl.RequestDelete(context.Background(), id, nil)
			return mutationMsg{ctrl: ctrl, kind: mutDelete, id: id, removed: removed, err: err}
		})
	case "n", "N", "esc", "q":
		m.modal = modalState{}
		m.setStatus("Delete cancelled")
	}
	return m, nil
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctrl.CancelEdit()
		m.modal = modalState{}
		m.setStatus("Edit cancelled")
		return m, nil
	case "enter":
		ctrl, id := m.ctrl, m.modal.id
		field := m.route.Collection.EditField
		patch := map[string]any{field: m.modal.edit.Value()}
		if strings.TrimSpace(m.modal.edit.Value()) == "" {
			_, err := ctrl.RequestUpdate(context.Background(), id, patch)
			m.modal.err = err
			return m, nil
		}
		m.modal.busy = true
		m.modal.err = nil
		return m, tea.Batch(m.startBusy(), func() tea.Msg {
			row, err := ctrl.RequestUpdate(context.Background(), id, patch)
			return mutationMsg{ctrl: ctrl, kind: mutUpdate, id: id, row: row, err: err}
		})
	}
	var cmd tea.Cmd
	m.modal.edit, cmd = m.modal.edit.Update(msg)
	return m, cmd
}

func (m Model) updateInsert(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.modal = modalState{}
		m.setStatus("Add cancelled")
		return m, nil
	case "tab", "down":
		return m, m.modal.focusField(m.modal.focus + 1)
	case "shift+tab", "up":
		return m, m.modal.focusField(m.modal.focus - 1)
	case "enter":
		if m.modal.focus < len(m.modal.fields)-1 {
			return m, m.modal.focusField(m.modal.focus + 1)
		}
		form := m.modal.form(m.route.Collection)
		if _, err := listview.BuildInsert(m.route.Collection, form); err != nil {
			m.modal.err = err
			return m, nil
		}
		ctrl := m.ctrl
		m.modal.busy = true
		m.modal.err = nil
		return m, tea.Batch(m.startBusy(), func() tea.Msg {
			row, err := ctrl.RequestInsert(context.Background(), form)
			return mutationMsg{ctrl: ctrl, kind: mutInsert, id: row.ID(), row: row, err: err}
		})
	}
	if len(m.modal.fields) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.modal.fields[m.modal.focus], cmd = m.modal.fields[m.modal.focus].Update(msg)
	return m, cmd
}

func (s *modalState) focusField(i int) tea.Cmd {
	n := len(s.fields)
	if n == 0 {
		return nil
	}
	i = (i%n + n) % n
	for j := range s.fields {
		s.fields[j].Blur()
	}
	s.focus = i
	return s.fields[i].Focus()
}

func (s modalState) form(coll catalog.Collection) map[string]string {
	out := make(map[string]string, len(s.fields))
	for i, f := range coll.InsertFields {
		if i < len(s.fields) {
			out[f.Name] = s.fields[i].Value()
		}
	}
	return out
}

func (m Model) modalView() string {
	var b strings.Builder
	switch m.modal.kind {
	case modalConfirmDelete:
		b.WriteString(titleStyle.Render("Delete " + m.route.Collection.Noun + "?"))
		b.WriteString("\n\n" + m.modal.summary + "\n" + mutedStyle.Render("id "+m.modal.id))
		b.WriteString("\n\n" + "Are you sure you want to delete this " + m.route.Collection.Noun + "?")
		b.WriteString("\n" + mutedStyle.Render("y confirm · n cancel"))
	case modalEdit:
		b.WriteString(titleStyle.Render("Edit " + m.route.Collection.Noun))
		b.WriteString("\n\n" + m.modal.edit.View())
		b.WriteString("\n\n" + mutedStyle.Render("enter save · esc cancel"))
	case modalInsert:
		b.WriteString(titleStyle.Render("Add " + m.route.Collection.Noun))
		b.WriteString("\n")
		for _, f := range m.modal.fields {
			b.WriteString("\n" + f.View())
		}
		b.WriteString("\n\n" + mutedStyle.Render("* required · tab next · enter submit · esc cancel"))
	}
	if m.modal.busy {
		b.WriteString("\n\n" + m.spinner.View() + " working...")
	}
	if m.modal.err != nil {
		b.WriteString("\n\n" + errorStyle.Render(apperr.Message(m.modal.err)))
	}
	return modalStyle.Render(b.String())
}
