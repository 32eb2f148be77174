/*
Package domain contains the core domain models of the prompt assembler.

It defines the editable prompt parts, the ordered working set that holds them, the
snapshots persisted as named slots, the execution modes and the outcome of a
composition run. This package is kept pure and free of external dependencies like
I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Part: One editable unit of prompt text with a name and a collapse state.
  - WorkingSet: The ordered collection of parts being edited.
  - SnapshotEntry: The persisted form of a part inside a slot or a loadout.
  - ExecutionMode: Where the assembled text goes (clipboard, transfer, execute).
  - Outcome: The discrete result of an action (Success, Warning, Failure).
*/
package domain
