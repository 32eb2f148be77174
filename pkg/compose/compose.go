// Package compose assembles parts into one text and resolves [[NAME]] template variables.
package compose

import (
	"regexp"
	"strings"

	"github.com/final221/Prompt-Assembler/pkg/domain"
)

// Separator joins the contents of consecutive parts.
const Separator = "\n\n"

// variablePattern matches [[NAME]] where NAME is upper-case letters, digits or underscores.
// Regexp values are safe for concurrent use and carry no match cursor.
var variablePattern = regexp.MustCompile(`\[\[([A-Z0-9_]+)\]\]`)

// Assemble joins the non-empty part contents in order and trims the result.
func Assemble(parts []domain.Part) string {
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Content == "" {
			continue
		}
		chunks = append(chunks, p.Content)
	}
	return strings.TrimSpace(strings.Join(chunks, Separator))
}

// ExtractVariables returns the distinct variable names in text, in first-seen order.
func ExtractVariables(text string) []string {
	matches := variablePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Substitute replaces every [[NAME]] with values[NAME], or the empty string when absent.
// Inserted values are not scanned again.
func Substitute(text string, values map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-2]
		return values[name]
	})
}

// Source provides the ordered parts to assemble.
type Source interface {
	Parts() []domain.Part
}

// Composition is the assembled text before substitution.
type Composition struct {
	Raw       string   `json:"raw"`
	Variables []string `json:"variables,omitempty"`
}

// HasVariables reports whether the text needs values before delivery.
func (c Composition) HasVariables() bool {
	return len(c.Variables) > 0
}

// Render substitutes values into the raw text.
func (c Composition) Render(values map[string]string) string {
	if !c.HasVariables() {
		return c.Raw
	}
	return Substitute(c.Raw, values)
}

// Engine composes the parts of a Source.
type Engine struct {
	src Source
}

// NewEngine creates an Engine reading from src.
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// Assemble returns the assembled text of the current parts.
func (e *Engine) Assemble() string {
	return Assemble(e.src.Parts())
}

// Compose assembles the current parts and lists their variables.
func (e *Engine) Compose() Composition {
	raw := e.Assemble()
	return Composition{Raw: raw, Variables: ExtractVariables(raw)}
}
