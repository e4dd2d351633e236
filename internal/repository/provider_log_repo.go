package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/epeers/vnmarket/internal/database"
)

// ProviderLogRepository records upstream calls. The lazy-fetch workers read
// the recent call rate from here to pace themselves.
type ProviderLogRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewProviderLogRepository creates a new ProviderLogRepository.
func NewProviderLogRepository(db *database.DB) *ProviderLogRepository {
	return &ProviderLogRepository{db: db, now: time.Now}
}

// Log records one provider invocation.
func (r *ProviderLogRepository) Log(ctx context.Context, endpoint, symbol, status, detail string) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO provider_logs (endpoint, symbol, status, detail, called_at)
		VALUES (?, ?, ?, ?, ?)
	`, endpoint, symbol, status, detail, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log provider call: %w", err)
	}
	return nil
}

// CallsSince counts provider calls made after t.
func (r *ProviderLogRepository) CallsSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM provider_logs WHERE called_at >= ?
	`, t.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count provider calls: %w", err)
	}
	return n, nil
}

// Prune drops log rows older than the retention horizon.
func (r *ProviderLogRepository) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := r.db.Conn().ExecContext(ctx, `
		DELETE FROM provider_logs WHERE called_at < ?
	`, r.now().Add(-retention).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune provider logs: %w", err)
	}
	return res.RowsAffected()
}
