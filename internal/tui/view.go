package tui

import (
	"fmt"
	"strings"

	"emctl/internal/allocation"
	"emctl/internal/docs"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

const chipMaxWidth = 28

func (m Model) View() string {
	ctrl := m.ctrl()
	width := m.width
	if width <= 0 {
		width = 100
	}

	var b strings.Builder
	b.WriteString(m.viewTabs(width))
	b.WriteString("\n")
	b.WriteString(m.viewModeLine())
	b.WriteString("\n\n")

	pivotLabel := titleCase(string(ctrl.PivotKind())) + ": "
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(pivotLabel) + m.pivotInput.View())
	if ctrl.State() == allocation.Editing {
		b.WriteString("   " + styleMuted().Render("add "+string(ctrl.MemberKind())+": ") + m.filterInput.View())
	}
	b.WriteString("\n")
	b.WriteString(styleMuted().Render(strings.Repeat(glyphHRule(), max(0, width))))
	b.WriteString("\n")

	if m.showHelp {
		md, _ := docs.Get("editor")
		b.WriteString(RenderMarkdown(md, width))
		b.WriteString("\n")
	} else {
		left := lipgloss.NewStyle().Width(m.picker.Width()).Render(m.viewPicker())
		sep := styleMuted().Render(" " + glyphSep() + " ")
		right := m.viewMembers(max(10, width-m.picker.Width()-3))
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, sep, right))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.viewStatus(width))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewTabs(width int) string {
	tabs := make([]string, 0, len(m.ctrls))
	for i, c := range m.ctrls {
		label := c.Relation().Name
		if i == m.active {
			tabs = append(tabs, styleTabActive().Render(label))
		} else {
			tabs = append(tabs, styleTab().Render(label))
		}
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	company := m.opts.CompanyName
	if company == "" {
		company = m.opts.CompanyID
	}
	if company != "" {
		line += "  " + styleMuted().Render(company)
	}
	return truncateToWidth(line, width)
}

func (m Model) viewModeLine() string {
	ctrl := m.ctrl()
	r := ctrl.Relation()
	cur := r.ModeLabel(ctrl.Mode())
	other := r.ModeLabel(ctrl.Mode().Other())
	return "Mode: " + lipgloss.NewStyle().Bold(true).Render(cur) + styleMuted().Render("  (ctrl+t: "+other+")")
}

func (m Model) viewPicker() string {
	ctrl := m.ctrl()
	title := "Select " + string(ctrl.PivotKind())
	if ctrl.State() == allocation.Editing {
		title = "Add " + string(ctrl.MemberKind())
	}
	head := styleMuted().Render(title)
	if len(m.picker.Items()) == 0 {
		return head + "\n" + styleMuted().Render("  no matches")
	}
	return head + "\n" + m.picker.View()
}

func (m Model) viewMembers(width int) string {
	ctrl := m.ctrl()
	snap, ok := ctrl.Snapshot()
	if !ok {
		if ctrl.State() == allocation.Loading {
			return styleMuted().Render("loading…")
		}
		return styleMuted().Render("Pick a " + string(ctrl.PivotKind()) + " and press enter")
	}

	ed := ctrl.Editor()
	title := titleCase(string(ctrl.MemberKind())) + "s of " + lipgloss.NewStyle().Bold(true).Render(snap.Pivot.Name)
	switch ctrl.State() {
	case allocation.Loading:
		title += styleMuted().Render("  loading…")
	case allocation.Editing:
		title += styleMuted().Render("  editing")
	case allocation.Committing:
		title += styleMuted().Render("  saving…")
	}
	if ed.Dirty() {
		title += " " + styleNotice("error").Render(glyphDirty())
	}

	ents := ed.Entities()
	var body string
	if len(ents) == 0 {
		body = styleMuted().Render("(none)")
	} else {
		chips := make([]string, 0, len(ents))
		for i, e := range ents {
			selected := m.focus == focusMembers && i == m.memberCursor
			chips = append(chips, styleChip(selected).Render(truncateToWidth(e.Name, chipMaxWidth)))
		}
		body = wrapChips(chips, width)
	}
	if unknown := len(ed.IDs()) - len(ents); unknown > 0 {
		body += "\n" + styleMuted().Render(fmt.Sprintf("+%d not in catalog (dropped on confirm)", unknown))
	}
	return title + "\n\n" + body
}

// wrapChips lays chips out left to right, breaking lines at width.
func wrapChips(chips []string, width int) string {
	var lines []string
	line := ""
	lineW := 0
	for _, c := range chips {
		w := xansi.StringWidth(c)
		if lineW > 0 && lineW+1+w > width {
			lines = append(lines, line)
			line, lineW = "", 0
		}
		if lineW > 0 {
			line += " "
			lineW++
		}
		line += c
		lineW += w
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewStatus(width int) string {
	ctrl := m.ctrl()
	state := ctrl.State().String()
	if m.reloading {
		state += ", reloading catalogs"
	}
	line := styleMuted().Render("[" + state + "]")
	if m.notices.shown {
		n := m.notices.last
		line += " " + styleNotice(n.Level.String()).Render(n.Title+": "+n.Message)
	}
	return truncateToWidth(line, width)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
