package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/epeers/vnmarket/internal/database"
	"github.com/epeers/vnmarket/internal/models"
)

// placeholderJSON marks a date as already-attempted without real data.
const placeholderJSON = "{}"

// HistoricalRepository handles database operations for daily historical
// records. Writes are serialized through a single mutex; sqlite allows one
// writer at a time and contention shows up as SQLITE_BUSY otherwise.
type HistoricalRepository struct {
	db      *database.DB
	writeMu sync.Mutex
	now     func() time.Time
}

// NewHistoricalRepository creates a new HistoricalRepository.
func NewHistoricalRepository(db *database.DB) *HistoricalRepository {
	return &HistoricalRepository{db: db, now: time.Now}
}

const histColumns = `symbol, asset_type, date, open, high, low, close, adjclose, volume, nav, buy_price, sell_price, data_json, updated_at`

// Store upserts records. Real records replace whatever is there; placeholder
// records (all prices nil) only insert where no row exists, so a placeholder
// can never clobber real data. Returns the number of rows written.
func (r *HistoricalRepository) Store(ctx context.Context, records []models.HistoricalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO historical_records (`+histColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, asset_type, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, adjclose = excluded.adjclose,
			volume = excluded.volume, nav = excluded.nav,
			buy_price = excluded.buy_price, sell_price = excluded.sell_price,
			data_json = excluded.data_json, updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsert.Close()

	insertIgnore, err := tx.PrepareContext(ctx, `
		INSERT INTO historical_records (`+histColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, asset_type, date) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert-or-ignore: %w", err)
	}
	defer insertIgnore.Close()

	written := 0
	now := r.now().UTC()
	for _, rec := range records {
		dataJSON := rec.DataJSON
		if dataJSON == "" {
			dataJSON = placeholderJSON
		}
		stmt := upsert
		if rec.IsPlaceholder() {
			stmt = insertIgnore
		}
		res, err := stmt.ExecContext(ctx,
			rec.Symbol, string(rec.AssetType), rec.Date,
			rec.Open, rec.High, rec.Low, rec.Close, rec.AdjClose,
			rec.Volume, rec.NAV, rec.BuyPrice, rec.SellPrice,
			dataJSON, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to store record %s/%s: %w", rec.Symbol, rec.Date, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", err)
	}
	return written, nil
}

// CachedDates returns the set of dates already present (placeholders
// included: an attempted date is a covered date) for a symbol in [start, end].
func (r *HistoricalRepository) CachedDates(ctx context.Context, symbol string, at models.AssetType, start, end string) (map[string]bool, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT date FROM historical_records
		WHERE symbol = ? AND asset_type = ? AND date >= ? AND date <= ?
	`, symbol, string(at), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

// CachedRecords returns real records (placeholders filtered out) for the
// range, ordered by date ascending.
func (r *HistoricalRepository) CachedRecords(ctx context.Context, symbol string, at models.AssetType, start, end string) ([]models.HistoricalRecord, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT `+histColumns+` FROM historical_records
		WHERE symbol = ? AND asset_type = ? AND date >= ? AND date <= ?
		  AND data_json != ?
		ORDER BY date ASC
	`, symbol, string(at), start, end, placeholderJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached records: %w", err)
	}
	defer rows.Close()

	var records []models.HistoricalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// MostRecentRecord returns the latest real record within lookbackDays of
// today, or nil when nothing qualifies.
func (r *HistoricalRepository) MostRecentRecord(ctx context.Context, symbol string, at models.AssetType, lookbackDays int) (*models.HistoricalRecord, error) {
	cutoff := r.now().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT `+histColumns+` FROM historical_records
		WHERE symbol = ? AND asset_type = ? AND date >= ? AND data_json != ?
		ORDER BY date DESC
		LIMIT 1
	`, symbol, string(at), cutoff, placeholderJSON)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// LatestDate returns the max stored date for the symbol, "" when none.
func (r *HistoricalRepository) LatestDate(ctx context.Context, symbol string, at models.AssetType) (string, error) {
	var d sql.NullString
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT MAX(date) FROM historical_records WHERE symbol = ? AND asset_type = ?
	`, symbol, string(at)).Scan(&d)
	if err != nil {
		return "", fmt.Errorf("failed to query latest date: %w", err)
	}
	return d.String, nil
}

// MarkFetched records that [start, end] was attempted for a symbol, using the
// asset type's marker policy. Returns the number of marker rows written.
func (r *HistoricalRepository) MarkFetched(ctx context.Context, symbol string, at models.AssetType, start, end string) (int, error) {
	return markerFor(at).MarkFetched(ctx, r, symbol, at, start, end)
}

// Stats returns real and placeholder row counts for one symbol.
func (r *HistoricalRepository) Stats(ctx context.Context, symbol string, at models.AssetType) (real, placeholders int64, err error) {
	err = r.db.Conn().QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN data_json != ? THEN 1 END),
			COUNT(CASE WHEN data_json = ? THEN 1 END)
		FROM historical_records WHERE symbol = ? AND asset_type = ?
	`, placeholderJSON, placeholderJSON, symbol, string(at)).Scan(&real, &placeholders)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query record stats: %w", err)
	}
	return real, placeholders, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*models.HistoricalRecord, error) {
	var rec models.HistoricalRecord
	var assetType string
	var open, high, low, closeP, adjclose, nav, buy, sell sql.NullFloat64
	if err := s.Scan(
		&rec.Symbol, &assetType, &rec.Date,
		&open, &high, &low, &closeP, &adjclose,
		&rec.Volume, &nav, &buy, &sell,
		&rec.DataJSON, &rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan historical record: %w", err)
	}
	rec.AssetType = models.AssetType(assetType)
	rec.Open = nullableFloat(open)
	rec.High = nullableFloat(high)
	rec.Low = nullableFloat(low)
	rec.Close = nullableFloat(closeP)
	rec.AdjClose = nullableFloat(adjclose)
	rec.NAV = nullableFloat(nav)
	rec.BuyPrice = nullableFloat(buy)
	rec.SellPrice = nullableFloat(sell)
	return &rec, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
