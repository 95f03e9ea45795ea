package graph

// Tensor is one edge of the operator graph (spec.md §3, "Tensor").
type Tensor struct {
	ID          uint32
	Name        string
	Shape       []int
	ElementBits uint32

	// ProducerID is the id of the Operation that produces this tensor, or
	// 0 (the model's synthetic root id) for a model input or initializer,
	// matching original_source's Model::initialize_model use of
	// _root_node_id as the producer of input/initializer tensors.
	ProducerID uint32
	Produced   bool
}
