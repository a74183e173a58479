package handlers

import (
	"time"

	"media-catalog/internal/approval"
	"media-catalog/internal/database"
	"media-catalog/internal/policy"
	"media-catalog/internal/storage"
)

// Dispatcher schedules background processing runs.
type Dispatcher interface {
	Dispatch(recordID string)
}

type Handlers struct {
	db         *database.Database
	store      *storage.Store
	guard      *policy.Guard
	dispatcher Dispatcher
	approvals  *approval.Propagator
	startTime  time.Time
}

func New(db *database.Database, store *storage.Store, guard *policy.Guard, dispatcher Dispatcher, approvals *approval.Propagator) *Handlers {
	return &Handlers{
		db:         db,
		store:      store,
		guard:      guard,
		dispatcher: dispatcher,
		approvals:  approvals,
		startTime:  time.Now(),
	}
}
