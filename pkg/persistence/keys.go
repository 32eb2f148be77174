package persistence

import (
	"strconv"
	"strings"
)

// SchemaVersion prefixes every working-set key.
const SchemaVersion = "v1"

// Working-set and UI keys.
const (
	KeyOrder    = SchemaVersion + ":order"
	KeyVisible  = SchemaVersion + ":ui:visible"
	KeyMode     = SchemaVersion + ":ui:mode"
	KeyPosition = SchemaVersion + ":ui:position"

	partPrefix = SchemaVersion + ":part:"
)

// Slot keys are not versioned so saved slots outlive a schema bump.
const (
	SlotPrefix   = "slot:"
	KeySlotNames = "slots:names"
)

// ContentKey is the key holding the content of part id.
func ContentKey(id string) string { return partPrefix + "content:" + id }

// NameKey is the key holding the name of part id.
func NameKey(id string) string { return partPrefix + "name:" + id }

// CollapsedKey is the key holding the collapse flag of part id.
func CollapsedKey(id string) string { return partPrefix + "collapsed:" + id }

// PartKeys lists every key owned by part id.
func PartKeys(id string) []string {
	return []string{ContentKey(id), NameKey(id), CollapsedKey(id)}
}

// SlotKey builds the key of a slot saved at the given unix milliseconds.
func SlotKey(unixMilli int64) string {
	return SlotPrefix + strconv.FormatInt(unixMilli, 10)
}

// IsSlotKey reports whether key names a slot snapshot.
func IsSlotKey(key string) bool {
	rest, ok := strings.CutPrefix(key, SlotPrefix)
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.ParseInt(rest, 10, 64)
	return err == nil
}
