package crossing

// Handoff moves a value across domains together with its toggle. The value
// is captured in the consumer domain on the tick the edge fires; by then the
// producer has held it stable for at least the synchroniser latency.
type Handoff[T any] struct {
	pub   *Publisher
	value T
}

func NewHandoff[T any](cfg Config) (*Handoff[T], error) {
	pub, err := NewPublisher(cfg)
	if err != nil {
		return nil, err
	}
	return &Handoff[T]{pub: pub}, nil
}

// Step samples the producer pair and returns the consumer-side value and
// whether it was refreshed on this tick.
func (h *Handoff[T]) Step(toggle bool, v T) (T, bool) {
	edge := h.pub.Step(toggle)
	if edge {
		h.value = v
	}
	return h.value, edge
}

// Value is the last value captured on an edge.
func (h *Handoff[T]) Value() T {
	return h.value
}
