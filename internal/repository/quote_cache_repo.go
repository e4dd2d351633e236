package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/epeers/vnmarket/internal/database"
	"github.com/epeers/vnmarket/internal/models"
)

// QuoteCacheRepository is the persistent L2 tier for quotes and search
// results. Rows carry their write time; freshness is judged by the reader
// against the asset's TTL.
type QuoteCacheRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewQuoteCacheRepository creates a new QuoteCacheRepository.
func NewQuoteCacheRepository(db *database.DB) *QuoteCacheRepository {
	return &QuoteCacheRepository{db: db, now: time.Now}
}

// SetQuote stores a quote row, replacing any previous one.
func (r *QuoteCacheRepository) SetQuote(ctx context.Context, q *models.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO quotes (symbol, asset_type, data_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (symbol, asset_type) DO UPDATE SET
			data_json = excluded.data_json, updated_at = excluded.updated_at
	`, q.Symbol, string(q.AssetType), string(data), r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store quote: %w", err)
	}
	return nil
}

// GetQuote returns the stored quote when its age is within maxAge, (nil, nil)
// when absent or stale.
func (r *QuoteCacheRepository) GetQuote(ctx context.Context, symbol string, at models.AssetType, maxAge time.Duration) (*models.Quote, error) {
	var data string
	var updatedAt time.Time
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT data_json, updated_at FROM quotes WHERE symbol = ? AND asset_type = ?
	`, symbol, string(at)).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	if r.now().Sub(updatedAt) > maxAge {
		return nil, nil
	}

	var q models.Quote
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &q, nil
}

// SetSearchResults stores the ranked results for a normalized query.
func (r *QuoteCacheRepository) SetSearchResults(ctx context.Context, query string, results []models.SearchResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}
	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO search_results (query, data_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (query) DO UPDATE SET
			data_json = excluded.data_json, updated_at = excluded.updated_at
	`, query, string(data), r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store search results: %w", err)
	}
	return nil
}

// GetSearchResults returns stored results when fresh, (nil, nil) otherwise.
func (r *QuoteCacheRepository) GetSearchResults(ctx context.Context, query string, maxAge time.Duration) ([]models.SearchResult, error) {
	var data string
	var updatedAt time.Time
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT data_json, updated_at FROM search_results WHERE query = ?
	`, query).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search results: %w", err)
	}
	if r.now().Sub(updatedAt) > maxAge {
		return nil, nil
	}

	var results []models.SearchResult
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search results: %w", err)
	}
	return results, nil
}

// CleanupExpired removes quote rows older than quoteMaxAge and search rows
// older than searchMaxAge; returns rows removed.
func (r *QuoteCacheRepository) CleanupExpired(ctx context.Context, quoteMaxAge, searchMaxAge time.Duration) (int64, error) {
	now := r.now()
	res, err := r.db.Conn().ExecContext(ctx,
		`DELETE FROM quotes WHERE updated_at < ?`, now.Add(-quoteMaxAge).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep quotes: %w", err)
	}
	quotes, _ := res.RowsAffected()

	res, err = r.db.Conn().ExecContext(ctx,
		`DELETE FROM search_results WHERE updated_at < ?`, now.Add(-searchMaxAge).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep search results: %w", err)
	}
	searches, _ := res.RowsAffected()
	return quotes + searches, nil
}
