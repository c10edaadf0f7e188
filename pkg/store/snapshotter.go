package store

import (
	"context"
	"sync"
	"time"

	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/observability/metrics"
)

// Source is the engine surface the snapshotter needs.
type Source interface {
	Version() uint64
	Snapshot() forge.State
}

// Snapshotter saves the engine state whenever it has changed since the
// last save.
type Snapshotter struct {
	source   Source
	store    Store
	interval time.Duration

	mu    sync.Mutex
	saved uint64
}

// NewSnapshotter treats the current version as already persisted.
func NewSnapshotter(source Source, store Store, interval time.Duration) *Snapshotter {
	return &Snapshotter{
		source:   source,
		store:    store,
		interval: interval,
		saved:    source.Version(),
	}
}

// Run saves on every tick until ctx is done.
func (s *Snapshotter) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Flush(ctx); err != nil {
				logger.Log.WithError(err).Error("snapshot save failed")
			}
		}
	}
}

// Flush saves the state if it changed and reports whether it wrote.
func (s *Snapshotter) Flush(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source.Version() == s.saved {
		return false, nil
	}
	st := s.source.Snapshot()
	err := s.store.Save(ctx, st)
	metrics.ObserveSnapshot(err)
	if err != nil {
		return false, err
	}
	s.saved = st.Seq
	logger.WithField("seq", st.Seq).Debug("snapshot saved")
	return true, nil
}
