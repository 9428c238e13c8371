package display

import (
	"fmt"
	"strings"
)

// Table is simple columnar output rendered by RenderTable.
type Table struct {
	Header []string
	Rows   [][]string
}

// RenderTable prints a table with column widths sized to content.
func RenderTable(d Display, t *Table) {
	if len(t.Header) == 0 {
		return
	}

	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	for i, h := range t.Header {
		fmt.Fprintf(&sb, "%-*s  ", widths[i], h)
	}
	d.Print(sb.String() + "\n")

	total := 0
	for _, w := range widths {
		total += w + 2
	}
	d.Print(strings.Repeat("-", total) + "\n")

	for _, row := range t.Rows {
		sb.Reset()
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&sb, "%-*s  ", widths[i], cell)
			}
		}
		d.Print(sb.String() + "\n")
	}
}
