package orchestrator

import (
	"tether/internal/services"
)

// Batch collects definitions that are registered together: either all of
// them are installed or none is, and the scheduler runs once for the whole
// batch.
type Batch struct {
	o         *Orchestrator
	defs      []services.Definition
	listeners []services.Listener
}

// NewBatch starts an empty batch.
func (o *Orchestrator) NewBatch() *Batch {
	return &Batch{o: o}
}

// Add queues a definition.
func (b *Batch) Add(def services.Definition) *Batch {
	b.defs = append(b.defs, def)
	return b
}

// AddListener attaches l to every definition in the batch, including ones
// added later.
func (b *Batch) AddListener(l services.Listener) *Batch {
	b.listeners = append(b.listeners, l)
	return b
}

// Len returns the number of queued definitions.
func (b *Batch) Len() int {
	return len(b.defs)
}

// Install registers every queued definition. On error nothing is registered.
// Controllers are returned in the order the definitions were added.
func (b *Batch) Install() ([]*Controller, error) {
	defs := make([]services.Definition, len(b.defs))
	for i, def := range b.defs {
		def = def.Clone()
		def.Listeners = append(def.Listeners, b.listeners...)
		defs[i] = def
	}
	if len(defs) == 0 {
		return nil, nil
	}
	return b.o.install(defs)
}
