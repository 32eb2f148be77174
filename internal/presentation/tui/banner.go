package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the promptasm banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	title := termenv.String(" promptasm ").Foreground(p.Color("#f8fafc")).Background(p.Color("#7c3aed")).Bold()
	sub := termenv.String(" prompt assembler " + version).Foreground(p.Color("#a78bfa"))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%s\n", title, sub)
	fmt.Fprintln(w)
}
