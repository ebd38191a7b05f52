package services

import (
	"statushub/config"
	"statushub/internal/database"
	"statushub/internal/events"
	"statushub/internal/repositories"
)

// Service holds the collaborators around the status aggregator. RecoveryScan
// and SnapshotCache need the aggregator and are bound by the app once it exists.
type Service struct {
	Transaction    *TransactionService
	Scheduler      *SchedulerService
	Recoverer      *PlaceholderRecoverer
	TempCleanup    *TempCleanupService
	SessionHistory *SessionHistoryService
	RecoveryScan   *RecoveryScanService
	SnapshotCache  *SnapshotCacheService
}

func New(
	db database.DB,
	config config.Config,
	channel *events.Channel,
	repos repositories.Repository,
) Service {
	transactionService := NewTransactionService(db)

	return Service{
		Transaction:    transactionService,
		Scheduler:      NewSchedulerService(config),
		Recoverer:      NewPlaceholderRecoverer(config, channel),
		TempCleanup:    NewTempCleanupService(config, channel),
		SessionHistory: NewSessionHistoryService(db, repos.RecoverySession, transactionService),
	}
}
