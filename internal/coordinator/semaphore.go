package coordinator

import "context"

// semaphore bounds the number of evaluations running at once.
// A nil semaphore is unlimited.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(n int) *semaphore {
	if n <= 0 {
		return nil
	}
	return &semaphore{ch: make(chan struct{}, n)}
}

// TryAcquire takes a slot without blocking.
func (s *semaphore) TryAcquire() bool {
	if s == nil {
		return true
	}
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Acquire blocks until a slot is available or ctx is done.
func (s *semaphore) Acquire(ctx context.Context) bool {
	if s == nil {
		return true
	}
	select {
	case s.ch <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Release frees a slot.
func (s *semaphore) Release() {
	if s == nil {
		return
	}
	<-s.ch
}

// InUse returns the number of held slots.
func (s *semaphore) InUse() int {
	if s == nil {
		return 0
	}
	return len(s.ch)
}
