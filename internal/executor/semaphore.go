package executor

import "context"

// Semaphore is a counting semaphore built on a buffered channel.
type Semaphore struct {
	sem chan struct{}
}

// NewSemaphore creates a semaphore admitting capacity concurrent holders.
func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{sem: make(chan struct{}, capacity)}
}

// Acquire takes a permit, blocking until one is free or ctx is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit.
func (s *Semaphore) Release() {
	<-s.sem
}
