package core

// scheduler.go runs background maintenance for the contacts store.
//
// Contact files can be removed outside the application (by an operator
// clearing the uploads folder, for example), which leaves metadata entries
// pointing at nothing. The reconciler prunes those on a fixed interval. It
// logs failures and keeps running.

import (
	"context"
	"log/slog"
	"time"
)

// StartMetadataReconciler prunes stale contact metadata immediately and then
// every interval until ctx is cancelled. Run it in its own goroutine.
func (s *Service) StartMetadataReconciler(ctx context.Context, interval time.Duration) {
	slog.Info("metadata reconciler started", "interval", interval)

	s.reconcileMetadata(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("metadata reconciler stopped")
			return
		case <-ticker.C:
			s.reconcileMetadata(ctx)
		}
	}
}

func (s *Service) reconcileMetadata(ctx context.Context) {
	start := time.Now()
	pruned, err := s.store.PruneMetadata(ctx)
	if err != nil {
		slog.Error("metadata reconcile failed", "error", err)
		return
	}
	if pruned > 0 {
		slog.Info("pruned stale contact metadata",
			"entries", pruned,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
