package domain

// SnapshotEntry is the persisted form of a part inside a slot or loadout.
// It uses "mapstructure" tags so loosely typed store values decode into it.
type SnapshotEntry struct {
	Name    string `json:"name" mapstructure:"name"`
	Content string `json:"content" mapstructure:"content"`
}

// SlotInfo describes a saved slot without reading its snapshot.
type SlotInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

// Position is the persisted panel position. Values are opaque to the core.
type Position struct {
	Top  string `json:"top"`
	Left string `json:"left"`
}

// IsZero reports whether the position cannot be restored.
// Both coordinates are needed; a half-saved position counts as unset.
func (p Position) IsZero() bool {
	return p.Top == "" || p.Left == ""
}
