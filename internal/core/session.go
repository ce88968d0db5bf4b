package core

import (
	"context"
	"sync"
)

// Backend is the delivery capability the dispatcher needs. keepSession
// tells the backend whether to leave the WhatsApp session open after the
// call; callers go through BatchSession or SendOnce instead of setting it.
type Backend interface {
	SendText(ctx context.Context, to, message string, keepSession bool) error
	SendMedia(ctx context.Context, to string, media MediaPayload, keepSession bool) error
	Logout(ctx context.Context) error
}

// MediaPayload is media already encoded for the wire.
type MediaPayload struct {
	Filename string
	Caption  string
	DataURL  string
}

// BatchSession keeps the backend session open across a run of sends and
// closes it once with EndBatch.
type BatchSession struct {
	backend Backend

	mu    sync.Mutex
	ended bool
	sent  int
}

// BeginBatch opens a batch on backend.
func BeginBatch(backend Backend) *BatchSession {
	return &BatchSession{backend: backend}
}

// SendText sends text leaving the session open.
func (s *BatchSession) SendText(ctx context.Context, to, message string) error {
	if err := s.backend.SendText(ctx, to, message, true); err != nil {
		return err
	}
	s.count()
	return nil
}

// SendMedia sends media leaving the session open.
func (s *BatchSession) SendMedia(ctx context.Context, to string, media MediaPayload) error {
	if err := s.backend.SendMedia(ctx, to, media, true); err != nil {
		return err
	}
	s.count()
	return nil
}

func (s *BatchSession) count() {
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
}

// Sent returns the number of successful sends.
func (s *BatchSession) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// EndBatch logs the session out. Only the first call reaches the backend.
func (s *BatchSession) EndBatch(ctx context.Context) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.mu.Unlock()

	return s.backend.Logout(ctx)
}

// SendOnce performs a single send that lets the backend close the session
// itself. media may be nil for text-only sends.
func SendOnce(ctx context.Context, backend Backend, to, message string, media *MediaPayload) error {
	if media != nil {
		return backend.SendMedia(ctx, to, *media, false)
	}
	return backend.SendText(ctx, to, message, false)
}
