package services

import (
	"context"
	"errors"

	"statushub/internal/database"
	"statushub/internal/models"
	"statushub/internal/repositories"
	"statushub/internal/types"
	"statushub/pkg/logger"

	"gorm.io/gorm"
)

var ErrHistoryDisabled = errors.New("session history is not configured")

// SessionHistoryService persists terminal recovery sessions. Without a
// database it accepts and drops them.
type SessionHistoryService struct {
	db          database.DB
	repo        repositories.RecoverySessionRepository
	transaction *TransactionService
	log         logger.Logger
}

func NewSessionHistoryService(
	db database.DB,
	repo repositories.RecoverySessionRepository,
	transaction *TransactionService,
) *SessionHistoryService {
	return &SessionHistoryService{
		db:          db,
		repo:        repo,
		transaction: transaction,
		log:         logger.New("sessionHistoryService"),
	}
}

func (s *SessionHistoryService) RecordSession(ctx context.Context, state types.RecoverySessionState) error {
	log := s.log.Function("RecordSession")

	if !s.db.HistoryEnabled() {
		log.Debug("History disabled, dropping session", "sessionID", state.SessionID)
		return nil
	}

	if !state.State.Terminal() {
		return log.Error("refusing to record unfinished session", "sessionID", state.SessionID, "state", state.State)
	}

	err := s.transaction.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return s.repo.Create(ctx, tx, models.NewRecoverySession(state))
	})
	if err != nil {
		return log.Err("failed to record recovery session", err, "sessionID", state.SessionID)
	}

	log.Info("Recovery session recorded", "sessionID", state.SessionID, "state", state.State)
	return nil
}

// Recent returns the newest finished sessions first
func (s *SessionHistoryService) Recent(ctx context.Context, limit int) ([]types.RecoverySessionState, error) {
	log := s.log.Function("Recent")

	if !s.db.HistoryEnabled() {
		return nil, ErrHistoryDisabled
	}

	rows, err := s.repo.GetRecent(ctx, s.db.SQL, limit)
	if err != nil {
		return nil, log.Err("failed to load recent sessions", err, "limit", limit)
	}

	sessions := make([]types.RecoverySessionState, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.SessionState())
	}
	return sessions, nil
}
