package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Scope owns the background tasks of one screen. Close cancels every task
// and waits for them to return.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewScope creates a scope derived from parent
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Go runs fn in a new goroutine. It is a no-op after Close.
func (s *Scope) Go(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Screen task panicked")
			}
		}()
		fn(s.ctx)
	}()
	return true
}

// Wait blocks until all running tasks have returned
func (s *Scope) Wait() {
	s.wg.Wait()
}

// Context returns the scope's context
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Close cancels all tasks and waits for them
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
