package graph

// IDAllocator hands out globally unique tensor/operation ids across every
// model in a simulation run. The Scheduler's finish_tile(core_id,
// layer_id) (spec.md §4.6) identifies an operation by layer id alone,
// with no accompanying model id, so operation ids (and, sharing the same
// space, tensor ids) must never repeat across models — an explicit
// counter threaded through NewModel, rather than a package-level
// global, per spec.md §9's "Global mutable state" design note.
type IDAllocator struct {
	next uint32
}

// NewIDAllocator creates an allocator starting at 1; 0 is reserved as
// the root/non-operation producer sentinel (see rootProducerID).
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Next returns the next unused id.
func (a *IDAllocator) Next() uint32 {
	id := a.next
	a.next++

	return id
}
