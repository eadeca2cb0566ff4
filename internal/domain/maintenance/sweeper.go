package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bookaudio-server-go/internal/domain/audiocache"
	"bookaudio-server-go/internal/domain/events"
	"bookaudio-server-go/internal/platform/blob"
	"bookaudio-server-go/internal/platform/config"
	"bookaudio-server-go/internal/platform/storage"
)

// Sweeper removes expired artifacts and stale temp files on a schedule.
// File deletion is best-effort: a missing file never blocks removing the
// record, and a failed delete leaves the record for the next round.
type Sweeper struct {
	cfg       config.MaintenanceConfig
	logger    *slog.Logger
	artifacts storage.ArtifactRepository
	blobs     *blob.Store
	audio     *audiocache.AudioCache
	meta      *audiocache.MetadataCache
	bus       *events.Bus

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSweeper(cfg config.MaintenanceConfig, logger *slog.Logger,
	artifacts storage.ArtifactRepository, blobs *blob.Store,
	audio *audiocache.AudioCache, meta *audiocache.MetadataCache, bus *events.Bus) *Sweeper {
	return &Sweeper{
		cfg:       cfg,
		logger:    logger,
		artifacts: artifacts,
		blobs:     blobs,
		audio:     audio,
		meta:      meta,
		bus:       bus,
		stop:      make(chan struct{}),
	}
}

// Start launches the periodic sweeps.
func (s *Sweeper) Start() {
	s.wg.Add(2)
	go s.loop(s.cfg.SweepInterval.Std(), func() {
		if _, err := s.SweepExpired(context.Background()); err != nil {
			s.logger.Error("artifact sweep failed", "error", err)
		}
	})
	go s.loop(s.cfg.TempSweepInterval.Std(), func() {
		removed, err := s.blobs.SweepTemp(s.cfg.TempMaxAge.Std())
		if err != nil {
			s.logger.Error("temp sweep failed", "error", err)
			return
		}
		if removed > 0 {
			s.logger.Info("temp files swept", "removed", removed)
		}
	})
}

func (s *Sweeper) loop(interval time.Duration, sweep func()) {
	defer s.wg.Done()
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sweep()
		case <-s.stop:
			return
		}
	}
}

// SweepExpired removes artifacts whose cache window has passed: the file,
// the cache entries, then the record.
func (s *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.artifacts.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	removed := 0
	failed := 0
	for _, artifact := range expired {
		if err := s.blobs.Remove(artifact.FilePath); err != nil {
			s.logger.Warn("failed to remove audio file",
				"artifact_id", artifact.ID, "path", artifact.FilePath, "error", err)
			failed++
			continue
		}
		s.audio.Delete(artifact.ID)
		s.meta.Delete(audiocache.ArtifactKey(artifact.ID))
		s.meta.Delete(audiocache.SyncKey(artifact.ID))

		if err := s.artifacts.Delete(ctx, artifact.ID); err != nil {
			s.logger.Warn("failed to delete artifact record",
				"artifact_id", artifact.ID, "error", err)
			failed++
			continue
		}
		removed++
	}

	if removed > 0 || failed > 0 {
		s.bus.PublishSweep(events.SweepEvent{Removed: removed, Failed: failed})
		s.logger.Info("expired artifacts swept", "removed", removed, "failed", failed)
	}
	return removed, nil
}

// Stop halts the periodic sweeps and waits for any in-flight round.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}
