package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/olekukonko/tablewriter"
)

// previewWidth caps the content column of the parts table.
const previewWidth = 48

// PrintParts writes the parts as a table.
func PrintParts(w io.Writer, parts []domain.Part) {
	if len(parts) == 0 {
		fmt.Fprintln(w, "No parts.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "ID", "Name", "Content"})
	for i, p := range parts {
		content := Excerpt(p.Content, previewWidth)
		if p.Collapsed {
			content = color.New(color.Faint).Sprint("(collapsed)")
		}
		table.Append([]string{strconv.Itoa(i + 1), p.ID, p.Name, content})
	}
	table.Render()
}

// PrintSlots writes the slots as a table.
func PrintSlots(w io.Writer, slots []domain.SlotInfo) {
	if len(slots) == 0 {
		fmt.Fprintln(w, "No saved slots.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Name", "Key"})
	for i, s := range slots {
		table.Append([]string{strconv.Itoa(i + 1), s.DisplayName, s.Key})
	}
	table.Render()
}

// PrintOutcome writes a one-line, colored outcome.
func PrintOutcome(w io.Writer, out domain.Outcome) {
	var c *color.Color
	switch out.Kind {
	case domain.OutcomeSuccess:
		c = color.New(color.FgGreen, color.Bold)
	case domain.OutcomeWarning:
		c = color.New(color.FgYellow, color.Bold)
	default:
		c = color.New(color.FgRed, color.Bold)
	}
	fmt.Fprintln(w, c.Sprint(out.String()))
}

// Excerpt flattens s to one line and truncates it to n runes.
func Excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
