package repositories

import (
	"context"
	"time"

	"statushub/internal/database"
	. "statushub/internal/models"
	"statushub/pkg/logger"

	"gorm.io/gorm"
)

const (
	RECOVERY_SESSIONS_CACHE_PREFIX = "recovery_sessions"
	RECOVERY_SESSIONS_CACHE_KEY    = "recent"
	RECOVERY_SESSIONS_CACHE_EXPIRY = 10 * time.Minute
	DEFAULT_RECENT_SESSIONS_LIMIT  = 20
)

type RecoverySessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *RecoverySession) error
	GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*RecoverySession, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*RecoverySession, error)
	ClearRecentCache(ctx context.Context) error
}

type recoverySessionRepository struct {
	cache database.CacheClient
}

// NewRecoverySessionRepository caches recent history when cache is non-nil
func NewRecoverySessionRepository(cache database.CacheClient) RecoverySessionRepository {
	return &recoverySessionRepository{cache: cache}
}

func (r *recoverySessionRepository) Create(
	ctx context.Context,
	tx *gorm.DB,
	session *RecoverySession,
) error {
	log := logger.NewWithContext(ctx, "recoverySessionRepository").Function("Create")

	if err := gorm.G[RecoverySession](tx).Create(ctx, session); err != nil {
		return log.Err("failed to create recovery session", err, "sessionID", session.SessionID)
	}

	if err := r.ClearRecentCache(ctx); err != nil {
		log.Warn("failed to clear recent sessions cache", "error", err)
	}

	return nil
}

func (r *recoverySessionRepository) GetRecent(
	ctx context.Context,
	tx *gorm.DB,
	limit int,
) ([]*RecoverySession, error) {
	log := logger.NewWithContext(ctx, "recoverySessionRepository").Function("GetRecent")

	if limit <= 0 {
		limit = DEFAULT_RECENT_SESSIONS_LIMIT
	}

	// Only the default page is cached
	cacheable := r.cache != nil && limit == DEFAULT_RECENT_SESSIONS_LIMIT
	if cacheable {
		var cached []*RecoverySession
		found, err := database.NewCacheBuilder(r.cache, RECOVERY_SESSIONS_CACHE_KEY).
			WithContext(ctx).
			WithHash(RECOVERY_SESSIONS_CACHE_PREFIX).
			Get(&cached)
		if err != nil {
			log.Warn("failed to get recent sessions from cache", "error", err)
		}
		if found {
			return cached, nil
		}
	}

	sessions, err := gorm.G[*RecoverySession](tx).
		Order("ended_at DESC").
		Limit(limit).
		Find(ctx)
	if err != nil {
		return nil, log.Err("failed to get recent recovery sessions", err, "limit", limit)
	}

	if cacheable {
		err = database.NewCacheBuilder(r.cache, RECOVERY_SESSIONS_CACHE_KEY).
			WithContext(ctx).
			WithHash(RECOVERY_SESSIONS_CACHE_PREFIX).
			WithStruct(sessions).
			WithTTL(RECOVERY_SESSIONS_CACHE_EXPIRY).
			Set()
		if err != nil {
			log.Warn("failed to cache recent sessions", "error", err)
		}
	}

	return sessions, nil
}

func (r *recoverySessionRepository) GetBySessionID(
	ctx context.Context,
	tx *gorm.DB,
	sessionID string,
) (*RecoverySession, error) {
	log := logger.NewWithContext(ctx, "recoverySessionRepository").Function("GetBySessionID")

	session, err := gorm.G[*RecoverySession](tx).
		Where(RecoverySession{SessionID: sessionID}).
		First(ctx)
	if err != nil {
		return nil, log.Err("failed to get recovery session", err, "sessionID", sessionID)
	}

	return session, nil
}

func (r *recoverySessionRepository) ClearRecentCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}

	return database.NewCacheBuilder(r.cache, RECOVERY_SESSIONS_CACHE_KEY).
		WithContext(ctx).
		WithHash(RECOVERY_SESSIONS_CACHE_PREFIX).
		Delete()
}
