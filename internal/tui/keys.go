package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextRelation key.Binding
	ToggleMode   key.Binding
	Up           key.Binding
	Down         key.Binding
	Enter        key.Binding
	Focus        key.Binding
	Edit         key.Binding
	Remove       key.Binding
	Confirm      key.Binding
	Cancel       key.Binding
	Reload       key.Binding
	Copy         key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextRelation: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "relation")),
		ToggleMode:   key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "mode")),
		Up:           key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up")),
		Down:         key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down")),
		Enter:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "show/toggle")),
		Focus:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
		Edit:         key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "edit")),
		Remove:       key.NewBinding(key.WithKeys("delete", "ctrl+x"), key.WithHelp("del", "remove")),
		Confirm:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "confirm")),
		Cancel:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Reload:       key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		Copy:         key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy members")),
		Help:         key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "help")),
		Quit:         key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Edit, k.Confirm, k.Cancel, k.ToggleMode, k.NextRelation, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Focus},
		{k.Edit, k.Remove, k.Confirm, k.Cancel},
		{k.ToggleMode, k.NextRelation, k.Reload, k.Copy, k.Help, k.Quit},
	}
}
