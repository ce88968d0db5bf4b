package core

// session_limiter.go serializes access to the backend's single WhatsApp session.
//
// The backend drives one browser session, so only one batch or single send
// may run at a time. Callers wait up to maxWait for the slot and then fail
// with ErrBackendBusy. WaitForDrain lets shutdown finish the active send.

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionSlots is one: the backend has a single session.
const DefaultSessionSlots = 1

// DefaultSessionWait is how long to wait for the session before rejecting.
const DefaultSessionWait = 5 * time.Second

// SessionLimiter is a semaphore guarding the backend session.
type SessionLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewSessionLimiter creates a limiter with slots concurrent holders.
func NewSessionLimiter(slots int, maxWait time.Duration) *SessionLimiter {
	if slots <= 0 {
		slots = DefaultSessionSlots
	}
	if maxWait <= 0 {
		maxWait = DefaultSessionWait
	}
	return &SessionLimiter{
		semaphore: make(chan struct{}, slots),
		maxWait:   maxWait,
	}
}

// Acquire waits for a slot. Returns ErrBackendBusy if none frees up within
// maxWait, or ctx's error if ctx ends first. Call Release when done.
func (l *SessionLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBackendBusy
	}
}

// TryAcquire takes a slot without waiting.
func (l *SessionLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *SessionLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// ActiveCount returns the number of sends holding the session.
func (l *SessionLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no send holds the session or ctx ends.
func (l *SessionLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SessionLimiterStatus is a snapshot for the health endpoint.
type SessionLimiterStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Slots     int `json:"slots"`
}

// Status returns the current limiter state.
func (l *SessionLimiter) Status() SessionLimiterStatus {
	active := l.ActiveCount()
	return SessionLimiterStatus{
		Active:    active,
		Available: cap(l.semaphore) - len(l.semaphore),
		Slots:     cap(l.semaphore),
	}
}
