// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// isTerminal reports whether w is a terminal. Styled output is only
// used on terminals; pipes get plain text.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// table is a simple column table. Rows are rendered with lipgloss
// styles on a terminal and through tabwriter otherwise.
type table struct {
	headers []string
	rows    [][]string

	// faint lists columns rendered dimmed on a terminal.
	faint map[int]bool
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	if !isTerminal(w) {
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		fmt.Fprintln(tw, strings.Join(t.headers, "\t"))
		for _, row := range t.rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		tw.Flush()
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = lipgloss.Width(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var line strings.Builder
	for i, header := range t.headers {
		line.WriteString(headerStyle.Width(widths[i] + 3).Render(header))
	}
	fmt.Fprintln(w, strings.TrimRight(line.String(), " "))

	for _, row := range t.rows {
		line.Reset()
		for i, cell := range row {
			style := lipgloss.NewStyle().Width(widths[i] + 3)
			if t.faint[i] {
				style = style.Inherit(faintStyle)
			}
			line.WriteString(style.Render(cell))
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

// styled renders text with style on a terminal and plain otherwise.
func styled(w io.Writer, style lipgloss.Style, text string) string {
	if !isTerminal(w) {
		return text
	}
	return style.Render(text)
}
