package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sideo/internal/config"
	"sideo/internal/retention"
	"sideo/internal/storage"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render("Todo"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.tab {
	case tabHome:
		b.WriteString(m.renderHome())
	case tabArchive:
		b.WriteString(m.renderArchive())
	case tabTrash:
		b.WriteString(m.renderTrash())
	}

	b.WriteString("\n---\n")
	if m.mode != modeList {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(m.styles.status.Render(m.status))
	b.WriteString("\n")
	b.WriteString(m.styles.dim.Render(renderHelp(m.cfg.Keys, m.tab)))

	return b.String()
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, tabCount)
	for t := tab(0); t < tabCount; t++ {
		style := m.styles.tab
		if t == m.tab {
			style = m.styles.activeTab
		}
		parts = append(parts, style.Render(t.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderHome() string {
	if len(m.active) == 0 {
		return fmt.Sprintf("No tasks yet. Press '%s' to add one.", m.cfg.Keys.Add)
	}
	var b strings.Builder
	for i, t := range m.active {
		b.WriteString(m.renderRow(i == m.cursors[tabHome], "[ ]", t, ""))
	}
	return b.String()
}

func (m Model) renderArchive() string {
	if len(m.sections) == 0 {
		return "Nothing completed yet."
	}
	var b strings.Builder
	row := 0
	for _, s := range m.sections {
		b.WriteString(m.styles.section.Render(s.Title))
		b.WriteString("\n")
		for _, t := range s.Tasks {
			b.WriteString(m.renderRow(row == m.cursors[tabArchive], "[x]", t, completedLabel(t)))
			row++
		}
	}
	return b.String()
}

func (m Model) renderTrash() string {
	visible := m.visibleTrash()
	if len(visible) == 0 {
		return "Trash is empty."
	}
	now := m.now()
	var b strings.Builder
	for i, t := range visible {
		b.WriteString(m.renderRow(i == m.cursors[tabTrash], "[-]", t, humanLeft(retention.TimeLeft(t, now))))
	}
	return b.String()
}

func (m Model) renderRow(selected bool, box string, t storage.Task, note string) string {
	cursor := " "
	if selected && m.mode == modeList {
		cursor = ">"
	}
	title := t.Title
	if t.Important {
		title = m.styles.important.Render("! " + title)
	}
	line := fmt.Sprintf("%s %s %s", cursor, box, title)
	if selected {
		line = m.styles.selected.Render(line)
	}
	if note != "" {
		line += "  " + m.styles.dim.Render(note)
	}
	return line + "\n"
}

func completedLabel(t storage.Task) string {
	return retention.EffectiveTime(t).Local().Format("Jan 2")
}

func humanLeft(d time.Duration) string {
	switch {
	case d <= 0:
		return "expiring"
	case d < time.Hour:
		return fmt.Sprintf("%dm left", int(d.Minutes())+1)
	case d < retention.Day:
		return fmt.Sprintf("%dh left", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd left", int(d/retention.Day))
	}
}

func renderHelp(k config.Keymap, t tab) string {
	common := fmt.Sprintf("%s/%s move • %s/%s tabs • %s quit", k.Up, k.Down, k.NextTab, k.PrevTab, k.Quit)
	switch t {
	case tabHome:
		return fmt.Sprintf("%s add • %s/%s swipe • %s important • %s/%s reorder • %s rename • %s",
			k.Add, k.SwipeLeft, k.SwipeRight, k.Important, k.MoveUp, k.MoveDown, k.Rename, common)
	case tabArchive:
		return fmt.Sprintf("%s/%s swipe • %s", k.SwipeLeft, k.SwipeRight, common)
	case tabTrash:
		return fmt.Sprintf("%s restore • %s delete forever • %s undo • %s", k.Restore, k.Purge, k.Undo, common)
	}
	return common
}
