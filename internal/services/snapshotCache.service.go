package services

import (
	"context"
	"sync"
	"time"

	"statushub/internal/database"
	"statushub/internal/status"
	"statushub/pkg/logger"
)

const (
	SNAPSHOT_CACHE_PREFIX = "status"
	SNAPSHOT_CACHE_KEY    = "snapshot"
	SNAPSHOT_CACHE_EXPIRY = 24 * time.Hour
)

// SnapshotSource is satisfied by the status aggregator
type SnapshotSource interface {
	Subscribe(ctx context.Context) (*status.SnapshotSubscription, error)
}

// SnapshotCacheService mirrors every debounced snapshot into valkey so other
// processes can read the latest state without a websocket.
type SnapshotCacheService struct {
	cache  database.CacheClient
	source SnapshotSource
	log    logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSnapshotCacheService(cache database.CacheClient, source SnapshotSource) *SnapshotCacheService {
	return &SnapshotCacheService{
		cache:  cache,
		source: source,
		log:    logger.New("snapshotCacheService"),
	}
}

// Start subscribes and writes snapshots until Stop. A nil cache makes it a no-op.
func (s *SnapshotCacheService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Start")

	if s.cache == nil {
		log.Info("No cache configured, snapshot cache disabled")
		return nil
	}
	if s.done != nil {
		return nil
	}

	sub, err := s.source.Subscribe(ctx)
	if err != nil {
		return log.Err("failed to subscribe to snapshots", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, sub, s.done)

	log.Info("Snapshot cache started", "key", SNAPSHOT_CACHE_PREFIX+":"+SNAPSHOT_CACHE_KEY)
	return nil
}

func (s *SnapshotCacheService) run(ctx context.Context, sub *status.SnapshotSubscription, done chan struct{}) {
	defer close(done)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.C():
			if !ok {
				return
			}
			if err := s.Write(ctx, snapshot); err != nil {
				s.log.Function("run").Warn("Failed to cache snapshot", "version", snapshot.Version, "error", err)
			}
		}
	}
}

func (s *SnapshotCacheService) Write(ctx context.Context, snapshot status.Snapshot) error {
	return database.NewCacheBuilder(s.cache, SNAPSHOT_CACHE_KEY).
		WithContext(ctx).
		WithHash(SNAPSHOT_CACHE_PREFIX).
		WithStruct(snapshot).
		WithTTL(SNAPSHOT_CACHE_EXPIRY).
		Set()
}

// Latest reads the cached snapshot back
func (s *SnapshotCacheService) Latest(ctx context.Context) (status.Snapshot, bool, error) {
	var snapshot status.Snapshot
	if s.cache == nil {
		return snapshot, false, nil
	}

	found, err := database.NewCacheBuilder(s.cache, SNAPSHOT_CACHE_KEY).
		WithContext(ctx).
		WithHash(SNAPSHOT_CACHE_PREFIX).
		Get(&snapshot)
	return snapshot, found, err
}

func (s *SnapshotCacheService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
