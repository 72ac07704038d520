package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table collects rows for aligned output.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Row appends a row. Missing cells render empty.
func (t *Table) Row(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table. On a terminal the columns are aligned under a
// header; otherwise rows are tab-separated without a header so they can
// be fed to cut, grep and awk.
func (t *Table) Render(w io.Writer, tty bool) error {
	if !tty {
		for _, row := range t.rows {
			if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(t.headers, "\t"))
	rule := make([]string, len(t.headers))
	for i, h := range t.headers {
		rule[i] = strings.Repeat("-", len(h))
	}
	_, _ = fmt.Fprintln(tw, strings.Join(rule, "\t"))

	for _, row := range t.rows {
		cells := make([]string, len(t.headers))
		copy(cells, row)
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
