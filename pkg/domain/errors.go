package domain

import "errors"

// ErrKeyNotFound is returned by a key/value store when a key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrPartNotFound is returned when a part ID is not in the working set.
var ErrPartNotFound = errors.New("part not found")

// ErrSlotNotFound is returned when a slot is missing, malformed or empty.
var ErrSlotNotFound = errors.New("slot not found")

// ErrEmptySnapshot is returned when saving a snapshot without entries.
var ErrEmptySnapshot = errors.New("snapshot is empty")

// ErrEmptyName is returned when a slot display name is blank.
var ErrEmptyName = errors.New("display name is empty")

// ErrNoPartsFound is returned when a loadout text decodes to zero parts.
var ErrNoPartsFound = errors.New("no valid prompt parts found")

// ErrInvalidOrder is returned when a reorder request is not a permutation of the current IDs.
var ErrInvalidOrder = errors.New("order is not a permutation of the current parts")

// ErrInvalidWorkingSet is returned when the order list and the parts map disagree.
var ErrInvalidWorkingSet = errors.New("invalid working set")

// ErrBusy is returned when a composition run is already in flight.
var ErrBusy = errors.New("composition already in progress")

// ErrRequestPending is returned when a value collection request is already outstanding.
var ErrRequestPending = errors.New("value collection already pending")
