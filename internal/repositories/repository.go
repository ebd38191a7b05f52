package repositories

import (
	"statushub/internal/database"
)

type Repository struct {
	RecoverySession RecoverySessionRepository
}

func New(db database.DB) Repository {
	return Repository{
		RecoverySession: NewRecoverySessionRepository(db.Cache.General),
	}
}
