/*
Package persistence maps the working set, the UI scalars and saved slots onto a
ports.KeyValueStore.

The Gateway owns the key scheme (see keys.go), JSON encoding of every value, default
filling on reads, and the trailing-edge flush scheduler used for keystroke edits.
Reads never fail: a missing or unreadable value falls back to its default and the
problem is logged. Writes return errors so callers can decide whether to surface them.
*/
package persistence
