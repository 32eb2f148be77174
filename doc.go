/*
Package assembler is a prompt-composition engine.

It keeps an ordered collection of editable text parts, reassembles them into a single
prompt, fills [[NAME]] template variables and hands the result to a text sink. The
working set, UI scalars and named slots are persisted to any key/value store.

# Architecture

The Assembler is a session facade over the packages under pkg/:

  - pkg/parts: the live working set and its reconciliation rules.
  - pkg/persistence: key scheme, JSON encoding and the debounced flush.
  - pkg/compose: assembly, variable extraction and substitution.
  - pkg/slots and pkg/loadout: saved configurations and their text export format.
  - pkg/workflow: the single-flight composition run.

Collaborators (store, value collector, notifier, text sink) are interfaces in pkg/ports
with adapters under pkg/adapters.

# Usage

	store := file.New(".promptasm/store")
	asm, err := assembler.Open(ctx, store,
		assembler.WithCollector(terminal.NewCollector()),
		assembler.WithSink(clipboard.NewSink()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer asm.Close(ctx)

	p, _ := asm.AddPart(ctx)
	asm.SetContent(p.ID, "Summarise [[TOPIC]] in three bullets.")
	fmt.Println(asm.Run(ctx))
*/
package assembler
