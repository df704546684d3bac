package client

import (
	"sync"

	"pairlink/internal/core/domain"
)

// CandidateBuffer holds remote ICE candidates that arrive before the
// remote description is applied. Candidates added while the gate is
// closed queue in arrival order; opening the gate drains the queue
// through the apply function once, after which candidates pass straight
// through.
type CandidateBuffer struct {
	mu      sync.Mutex
	pending []domain.ICECandidate
	open    bool
	apply   func(domain.ICECandidate) error
}

func NewCandidateBuffer(apply func(domain.ICECandidate) error) *CandidateBuffer {
	return &CandidateBuffer{apply: apply}
}

// Add queues or applies a candidate depending on the gate.
func (b *CandidateBuffer) Add(candidate domain.ICECandidate) error {
	b.mu.Lock()
	if !b.open {
		b.pending = append(b.pending, candidate)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	return b.apply(candidate)
}

// Open drains the queue in arrival order and lets future candidates
// pass through. A candidate that fails to apply is dropped; the rest of
// the queue still drains. Opening an open buffer is a no-op.
func (b *CandidateBuffer) Open() []error {
	b.mu.Lock()
	if b.open {
		b.mu.Unlock()
		return nil
	}
	b.open = true
	queued := b.pending
	b.pending = nil
	b.mu.Unlock()

	var errs []error
	for _, candidate := range queued {
		if err := b.apply(candidate); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Reset closes the gate and discards anything queued. Used when the
// peer connection is torn down or replaced.
func (b *CandidateBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.pending = nil
}

// Len reports how many candidates are queued.
func (b *CandidateBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
