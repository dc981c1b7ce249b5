package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	NextView  key.Binding
	PrevView  key.Binding
	JumpView  key.Binding
	Focus     key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Search    key.Binding
	Esc       key.Binding
	Sort      key.Binding
	SortField key.Binding
	Refresh   key.Binding
	Delete    key.Binding
	Edit      key.Binding
	Add       key.Binding
	Export    key.Binding
	ExportYML key.Binding
	Copy      key.Binding
	Logout    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		NextView: key.NewBinding(
			key.WithKeys("]", "tab"),
			key.WithHelp("]", "next view"),
		),
		PrevView: key.NewBinding(
			key.WithKeys("[", "shift+tab"),
			key.WithHelp("[", "prev view"),
		),
		JumpView: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8"),
			key.WithHelp("0-8", "jump to view"),
		),
		Focus: key.NewBinding(
			key.WithKeys("right", "left"),
			key.WithHelp("←/→", "table/detail"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "f"),
			key.WithHelp("pgdn", "page down"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Esc: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear search"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "flip sort"),
		),
		SortField: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "sort column"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Export: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "export md"),
		),
		ExportYML: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "export yaml"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy row json"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextView, k.Search, k.Sort, k.Refresh, k.Delete, k.Edit, k.Add, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Focus},
		{k.NextView, k.PrevView, k.JumpView, k.Refresh, k.Logout},
		{k.Search, k.Esc, k.Sort, k.SortField},
		{k.Delete, k.Edit, k.Add, k.Export, k.ExportYML, k.Copy, k.Quit},
	}
}
