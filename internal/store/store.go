// Package store persists the local side of the reconciliation: the
// numbers we own, the messaging services we intend to exist, and a
// log of past check runs.
package store

import (
	"context"

	"github.com/maskline/numsync/internal/model"
)

// Store defines the persistence interface for the sync checkers.
type Store interface {
	// Numbers
	ListNumbers(ctx context.Context) ([]model.Number, error)
	CreateNumber(ctx context.Context, n model.Number) (*model.Number, error)
	BulkInsertNumbers(ctx context.Context, numbers []model.Number) (int64, error)

	// Messaging services
	ListServices(ctx context.Context) ([]model.Service, error)
	CreateService(ctx context.Context, s model.Service) error

	// Check run log
	RecordCheckRun(ctx context.Context, run model.CheckRun) (*model.CheckRun, error)
	ListCheckRuns(ctx context.Context, limit int) ([]model.CheckRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
