// Package loadout reads and writes the plain-text loadout export format.
//
// A loadout starts with a comment header, then one block per part:
//
//	// Prompt Assembler Loadout Export v0.1.0
//	// Export Date: 2024-05-01T10:00:00.000Z
//	// Loadout Name: Review
//
//	### PART NAME: Intro
//	You are a reviewer.
//
//	---
//
//	### PART NAME: Task
//	Review [[FILE]].
package loadout

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/final221/Prompt-Assembler/pkg/domain"
)

const (
	// BlockSeparator separates part blocks.
	BlockSeparator = "\n\n---\n\n"

	headerTitle   = "Loadout Export"
	namePrefix    = "### PART NAME: "
	fallbackName  = "Unknown Loadout"
	exportDateFmt = "2006-01-02T15:04:05.000Z07:00"
)

var (
	nameLine       = regexp.MustCompile(`(?i)^### PART NAME: (.+)$`)
	unsafeFileChar = regexp.MustCompile(`[<>:"/\\|?*]`)
	txtSuffix      = regexp.MustCompile(`(?i)\.txt$`)
)

// Loadout is an exported slot.
type Loadout struct {
	Name       string
	Version    string
	ExportedAt time.Time
	Parts      []domain.SnapshotEntry
}

// Encode renders l in the loadout text format.
func Encode(l Loadout) string {
	name := l.Name
	if strings.TrimSpace(name) == "" {
		name = fallbackName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Prompt Assembler %s v%s\n", headerTitle, l.Version)
	fmt.Fprintf(&b, "// Export Date: %s\n", l.ExportedAt.UTC().Format(exportDateFmt))
	fmt.Fprintf(&b, "// Loadout Name: %s\n\n", name)

	blocks := make([]string, len(l.Parts))
	for i, p := range l.Parts {
		partName := p.Name
		if partName == "" {
			partName = domain.DefaultPartName(i + 1)
		}
		blocks[i] = namePrefix + partName + "\n" + strings.TrimSpace(p.Content)
	}
	b.WriteString(strings.Join(blocks, BlockSeparator))
	return b.String()
}

// Decode parses loadout text into snapshot entries.
func Decode(text string) ([]domain.SnapshotEntry, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = stripHeader(text)

	var entries []domain.SnapshotEntry
	for _, block := range strings.Split(text, BlockSeparator) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		name := domain.DefaultPartName(len(entries) + 1)
		content := block
		first, rest, _ := strings.Cut(block, "\n")
		if m := nameLine.FindStringSubmatch(strings.TrimRight(first, " \t")); m != nil {
			name = strings.TrimSpace(m[1])
			content = strings.TrimSpace(rest)
		}
		entries = append(entries, domain.SnapshotEntry{Name: name, Content: content})
	}

	if len(entries) == 0 {
		return nil, domain.ErrNoPartsFound
	}
	return entries, nil
}

// stripHeader drops the leading comment block written by Encode.
func stripHeader(text string) string {
	trimmed := strings.TrimLeft(text, "\n")
	first, _, _ := strings.Cut(trimmed, "\n")
	if !strings.HasPrefix(first, "//") || !strings.Contains(first, headerTitle) {
		return text
	}
	lines := strings.Split(trimmed, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "//") {
		i++
	}
	return strings.Join(lines[i:], "\n")
}

// FileName returns a safe export file name for a loadout called name.
func FileName(name string) string {
	if strings.TrimSpace(name) == "" {
		name = fallbackName
	}
	return unsafeFileChar.ReplaceAllString(name, "-") + ".txt"
}

// NameFromFile derives a slot name from an import file path.
func NameFromFile(path string) string {
	return strings.TrimSpace(txtSuffix.ReplaceAllString(filepath.Base(path), ""))
}
