package catalog

import (
	"sync"
	"sync/atomic"
)

// Holder publishes the current reference snapshot. Reads are lock-free; writers are
// serialized and replace the whole snapshot, so in-flight matches and quotes keep
// the snapshot they started with.
type Holder struct {
	mu      sync.Mutex
	current atomic.Pointer[Reference]
}

func NewHolder(ref *Reference) *Holder {
	h := &Holder{}
	h.current.Store(ref)
	return h
}

func (h *Holder) Current() *Reference { return h.current.Load() }

func (h *Holder) Store(ref *Reference) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current.Store(ref)
}

// Update derives a new snapshot from the current one and publishes it when fn succeeds.
func (h *Holder) Update(fn func(cur *Reference) (*Reference, error)) (*Reference, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := fn(h.current.Load())
	if err != nil {
		return nil, err
	}
	h.current.Store(next)
	return next, nil
}
