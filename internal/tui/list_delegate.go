package tui

import (
	"fmt"
	"io"
	"strings"

	"emctl/internal/model"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// entityItem is a pivot suggestion or an add candidate.
type entityItem struct {
	ent model.Entity
}

func (i entityItem) FilterValue() string { return i.ent.Name }
func (i entityItem) Title() string       { return i.ent.Name }
func (i entityItem) Description() string { return i.ent.ID }

func entityItems(ents []model.Entity) []list.Item {
	items := make([]list.Item, 0, len(ents))
	for _, e := range ents {
		items = append(items, entityItem{ent: e})
	}
	return items
}

// compactItemDelegate renders one line per entity: name on the left, id muted on the right.
type compactItemDelegate struct {
	normal   lipgloss.Style
	selected lipgloss.Style
	// focused toggles the selection highlight; an unfocused list shows no cursor.
	focused *bool
}

func newCompactItemDelegate(focused *bool) compactItemDelegate {
	return compactItemDelegate{
		normal: lipgloss.NewStyle().Foreground(colorSurfaceFg),
		selected: lipgloss.NewStyle().
			Foreground(colorSelectedFg).
			Background(colorSelectedBg).
			Bold(true),
		focused: focused,
	}
}

func (d compactItemDelegate) Height() int  { return 1 }
func (d compactItemDelegate) Spacing() int { return 0 }
func (d compactItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d compactItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	contentW := m.Width()
	if contentW < 4 {
		fmt.Fprint(w, "")
		return
	}
	it, ok := item.(entityItem)
	if !ok {
		fmt.Fprint(w, xansi.Cut(fmt.Sprint(item), 0, contentW))
		return
	}

	selected := index == m.Index() && (d.focused == nil || *d.focused)
	style := d.normal
	prefix := "  "
	if selected {
		style = d.selected
		prefix = glyphPointer() + " "
	}

	id := it.ent.ID
	name := truncateToWidth(it.ent.Name, contentW-2)
	line := prefix + name
	gap := contentW - xansi.StringWidth(line) - xansi.StringWidth(id) - 1
	if gap > 0 {
		line += strings.Repeat(" ", gap) + " " + styleMuted().Render(id)
	}
	if lineW := xansi.StringWidth(line); lineW < contentW {
		line += strings.Repeat(" ", contentW-lineW)
	}
	fmt.Fprint(w, style.Render(line))
}

// truncateToWidth cuts s to w cells, ending in an ellipsis when it was cut.
func truncateToWidth(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if xansi.StringWidth(s) <= w {
		return s
	}
	if w == 1 {
		return xansi.Cut(s, 0, 1)
	}
	return xansi.Cut(s, 0, w-1) + "…"
}
