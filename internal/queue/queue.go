// Package queue provides a value-based max-heap for top-k selection.
package queue

// Item represents an entry in the priority queue.
type Item struct {
	Slot     uint64  // Slot is the storage slot index of the candidate.
	Distance float32 // Distance is the priority of the item in the queue.
}

// MaxHeap is a binary max-heap ordered on Distance. Value-based storage,
// no pointer indirection.
type MaxHeap struct {
	items []Item
}

// NewMax initializes a max-heap with the given capacity hint.
func NewMax(capacity int) *MaxHeap {
	if capacity < 0 {
		capacity = 0
	}
	return &MaxHeap{items: make([]Item, 0, capacity)}
}

// Len returns the number of elements in the heap.
func (h *MaxHeap) Len() int { return len(h.items) }

// Top returns the largest-distance element without removing it.
func (h *MaxHeap) Top() (Item, bool) {
	if len(h.items) == 0 {
		return Item{}, false
	}
	return h.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (h *MaxHeap) Push(item Item) {
	h.items = append(h.items, item)
	h.siftUp(len(h.items) - 1)
}

// Pop removes and returns the largest-distance element.
func (h *MaxHeap) Pop() (Item, bool) {
	n := len(h.items)
	if n == 0 {
		return Item{}, false
	}
	root := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return root, true
}

// PushBounded inserts an item into a heap capped at k elements: below the
// cap it pushes, at the cap it replaces the current maximum only when the
// new distance is strictly smaller.
func (h *MaxHeap) PushBounded(item Item, k int) {
	if len(h.items) < k {
		h.Push(item)
		return
	}
	if k > 0 && item.Distance < h.items[0].Distance {
		h.items[0] = item
		h.siftDown(0)
	}
}

// ExtractAscending empties the heap into a slice ordered by ascending
// distance.
func (h *MaxHeap) ExtractAscending() []Item {
	out := make([]Item, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		out[i], _ = h.Pop()
	}
	return out
}

// Reset clears the heap for reuse.
func (h *MaxHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MaxHeap) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if h.items[i].Distance <= h.items[p].Distance {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *MaxHeap) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		largest := l
		if r := l + 1; r < n && h.items[r].Distance > h.items[l].Distance {
			largest = r
		}
		if h.items[largest].Distance <= h.items[i].Distance {
			return
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}
