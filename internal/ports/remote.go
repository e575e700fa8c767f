package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen/quoteboard/internal/domain"
)

// SyncNotice summarizes a completed merge for the remote service.
type SyncNotice struct {
	// Count is the number of quotes inserted or overwritten by the merge.
	Count int

	// Timestamp is the sync time.
	Timestamp time.Time
}

// RemoteQuoteSource is the remote service the board reconciles with.
//
// Implementations should:
//   - Respect context deadlines and cancellation
//   - Return domain.ErrUnavailable when the service cannot be reached
//   - Translate wire records to domain.RemoteRecord before returning
type RemoteQuoteSource interface {
	// FetchSnapshot returns up to limit records from the remote service.
	FetchSnapshot(ctx context.Context, limit int) ([]domain.RemoteRecord, error)

	// Notify posts a summary of a sync. Callers treat failures as best-effort.
	Notify(ctx context.Context, notice SyncNotice) error
}
