package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run opens the editor full screen and blocks until the operator quits.
// It returns where the operator left off.
func Run(opts Options) (LastView, error) {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference()

	m := NewModel(opts)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(Model); ok {
		return fm.LastView(), err
	}
	return m.LastView(), err
}
