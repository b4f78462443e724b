package cmd

import (
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

func passMark() string { return color.Green.Sprint("PASS") }
func failMark() string { return color.Red.Sprint("FAIL") }
func warnMark() string { return color.Yellow.Sprint("WARN") }

// printTable writes rows as left aligned columns. Widths are measured in
// terminal cells so wide characters in names line up.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}

	writeRow := func(cells []string) {
		var b strings.Builder
		b.WriteString("  ")
		for i, cell := range cells {
			if i == len(cells)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		b.WriteString("\n")
		io.WriteString(w, b.String())
	}

	writeRow(headers)
	rule := make([]string, len(headers))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	writeRow(rule)
	for _, row := range rows {
		writeRow(row)
	}
}

// printHeader prints a formatted header
func printHeader(w io.Writer, title string) {
	width := runewidth.StringWidth(title) + 4
	io.WriteString(w, strings.Repeat("=", width)+"\n")
	io.WriteString(w, "  "+title+"\n")
	io.WriteString(w, strings.Repeat("=", width)+"\n")
}
