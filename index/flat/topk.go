package flat

import (
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/internal/queue"
)

// topK is a thin wrapper around the bounded max-heap that speaks
// index.SearchResult.
type topK struct {
	heap *queue.MaxHeap
	k    int
}

func newTopK(k int) *topK {
	return &topK{heap: queue.NewMax(k), k: k}
}

func (t *topK) push(slot uint64, dist float32) {
	t.heap.PushBounded(queue.Item{Slot: slot, Distance: dist}, t.k)
}

func (t *topK) ascending() []index.SearchResult {
	items := t.heap.ExtractAscending()
	if len(items) == 0 {
		return nil
	}
	out := make([]index.SearchResult, len(items))
	for i, it := range items {
		out[i] = index.SearchResult{Slot: it.Slot, Distance: it.Distance}
	}
	return out
}
