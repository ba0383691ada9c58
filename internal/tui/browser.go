// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package tui implements the interactive snapshot browser shown by
// "snapbackupd list --interactive": a read-only, scrollable view of a
// repository's snapshots grouped by interval, with the snapshot under the
// cursor highlighted. There is no separate detail pane.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Row is one snapshot as shown in the browser. It is a flattened, read-only
// projection of a snapshot.Folder; the tui package never imports package
// repository or package snapshot directly so it stays reusable from any
// caller that can produce this slice.
type Row struct {
	FolderName   string
	IntervalName string
	Date         time.Time
	IsSymlink    bool
	LinkTarget   string // non-empty when IsSymlink, the peer folder it resolves to
}

type intervalGroup struct {
	Name string
	Rows []int // indices into BrowserModel.rows
}

// BrowserModel is the bubbletea model for the snapshot browser.
type BrowserModel struct {
	repoName string
	rows     []Row
	groups   []intervalGroup

	cursor    int
	maxCursor int

	width  int
	height int
	quit   bool
}

// NewBrowserModel builds a browser over rows, grouped by interval in the
// order intervals are first seen.
func NewBrowserModel(repoName string, rows []Row) *BrowserModel {
	m := &BrowserModel{repoName: repoName, rows: rows}

	order := []string{}
	byName := map[string][]int{}
	for i, row := range rows {
		if _, ok := byName[row.IntervalName]; !ok {
			order = append(order, row.IntervalName)
		}
		byName[row.IntervalName] = append(byName[row.IntervalName], i)
	}
	for _, name := range order {
		m.groups = append(m.groups, intervalGroup{Name: name, Rows: byName[name]})
	}

	m.maxCursor = len(rows) - 1
	if m.maxCursor < 0 {
		m.maxCursor = 0
	}
	return m
}

// Init implements tea.Model.
func (m *BrowserModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < m.maxCursor {
				m.cursor++
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// View implements tea.Model.
func (m *BrowserModel) View() string {
	if m.quit {
		return ""
	}
	if len(m.rows) == 0 {
		return SubtitleStyle.Render("no snapshots in "+m.repoName) + "\n"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.repoName) + "\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%d snapshots", len(m.rows))) + "\n\n")

	for _, g := range m.groups {
		b.WriteString(CategoryStyle.Render(FormatIntervalTitle(g.Name)) + "\n\n")
		for _, idx := range g.Rows {
			row := m.rows[idx]

			cursor := "  "
			if m.cursor == idx {
				cursor = CursorStyle.Render("> ")
			}

			kind := "real"
			if row.IsSymlink {
				kind = "-> " + row.LinkTarget
			}
			line := fmt.Sprintf("%s%s  %s  %s", cursor, row.FolderName, row.Date.Format(time.RFC3339), kind)

			if m.cursor == idx {
				line = SelectedItemStyle.Render(line)
			} else {
				line = ItemStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *BrowserModel) renderFooter() string {
	keys := []struct{ key, desc string }{
		{"↑↓", "navigate"},
		{"q", "quit"},
	}
	var parts []string
	for _, k := range keys {
		parts = append(parts, HelpKeyStyle.Render(k.key)+" "+HelpStyle.Render(k.desc))
	}
	return FooterStyle.Render(strings.Join(parts, " • "))
}

// Selected returns the row under the cursor when the program exits, or the
// zero Row if there were none.
func (m *BrowserModel) Selected() Row {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return Row{}
	}
	return m.rows[m.cursor]
}

// RunBrowser runs the interactive browser over rows and returns the row the
// cursor rested on when the user quit.
func RunBrowser(repoName string, rows []Row) (Row, error) {
	model := NewBrowserModel(repoName, rows)
	p := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return Row{}, fmt.Errorf("run snapshot browser: %w", err)
	}
	return finalModel.(*BrowserModel).Selected(), nil
}

var _ tea.Model = (*BrowserModel)(nil)
