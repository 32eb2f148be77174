package domain

import (
	"fmt"
	"regexp"
)

// Part is one editable unit of prompt text.
type Part struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Name      string `json:"name"`
	Collapsed bool   `json:"collapsed"`
}

var autoNamePattern = regexp.MustCompile(`^Part \d+$`)

// DefaultPartName returns the generated name for a part at the 1-based position.
func DefaultPartName(pos int) string {
	return fmt.Sprintf("Part %d", pos)
}

// IsAutoName reports whether name was generated (or left blank) rather than typed by a user.
func IsAutoName(name string) bool {
	return name == "" || autoNamePattern.MatchString(name)
}

// IsUntouched reports whether the part still holds only defaults for the given position.
func (p Part) IsUntouched(pos int) bool {
	return p.Content == "" && (p.Name == "" || p.Name == DefaultPartName(pos))
}

// Entry converts the part to its persisted snapshot form.
func (p Part) Entry() SnapshotEntry {
	return SnapshotEntry{Name: p.Name, Content: p.Content}
}

// WorkingSet is the ordered collection of parts owned by a session.
// Order defines display and assembly order.
type WorkingSet struct {
	Order []string
	Parts map[string]Part
}

// Ordered returns the parts following Order.
func (ws WorkingSet) Ordered() []Part {
	out := make([]Part, 0, len(ws.Order))
	for _, id := range ws.Order {
		if p, ok := ws.Parts[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that Order and Parts describe the same set of IDs without duplicates.
func (ws WorkingSet) Validate() error {
	seen := make(map[string]struct{}, len(ws.Order))
	for _, id := range ws.Order {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidWorkingSet, id)
		}
		seen[id] = struct{}{}
		if _, ok := ws.Parts[id]; !ok {
			return fmt.Errorf("%w: id %q has no part", ErrInvalidWorkingSet, id)
		}
	}
	if len(seen) != len(ws.Parts) {
		return fmt.Errorf("%w: %d parts are not ordered", ErrInvalidWorkingSet, len(ws.Parts)-len(seen))
	}
	return nil
}
