/*
Package ports defines the driven ports (interfaces) of the prompt assembler.

These interfaces decouple the core logic from external implementations, allowing the
assembler to work with various storage backends and host environments.

# Key Interfaces

  - KeyValueStore: Namespaced get/set/delete/list over opaque keys.
  - ValueCollector: Asks the user for template variable values.
  - Notifier: Confirms destructive actions and shows alerts.
  - TextSink: Delivers the assembled text to the target application or clipboard.
*/
package ports
