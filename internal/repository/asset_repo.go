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

// ErrAssetNotFound is returned when the catalog has no matching row.
var ErrAssetNotFound = errors.New("asset not found")

// AssetRepository handles database operations for the asset catalog.
type AssetRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(db *database.DB) *AssetRepository {
	return &AssetRepository{db: db, now: time.Now}
}

const assetColumns = `symbol, name, asset_type, asset_class, asset_sub_class, exchange, currency, data_source, metadata_json, updated_at`

// UpsertBatch writes assets in a single transaction, chunked by the caller.
func (r *AssetRepository) UpsertBatch(ctx context.Context, assets []models.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, asset_type) DO UPDATE SET
			name = excluded.name, asset_class = excluded.asset_class,
			asset_sub_class = excluded.asset_sub_class, exchange = excluded.exchange,
			currency = excluded.currency, data_source = excluded.data_source,
			metadata_json = excluded.metadata_json, updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare asset upsert: %w", err)
	}
	defer stmt.Close()

	now := r.now().UTC()
	for _, a := range assets {
		meta := "{}"
		if len(a.Metadata) > 0 {
			if b, err := json.Marshal(a.Metadata); err == nil {
				meta = string(b)
			}
		}
		if _, err := stmt.ExecContext(ctx,
			a.Symbol, a.Name, string(a.AssetType), a.AssetClass, a.AssetSubClass,
			a.Exchange, a.Currency, a.DataSource, meta, now,
		); err != nil {
			return fmt.Errorf("failed to upsert asset %s: %w", a.Symbol, err)
		}
	}
	return tx.Commit()
}

// Get fetches one asset by symbol and type.
func (r *AssetRepository) Get(ctx context.Context, symbol string, at models.AssetType) (*models.Asset, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE symbol = ? AND asset_type = ?
	`, symbol, string(at))
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	return a, err
}

// ListByType returns the catalog slice for one asset type, ordered by symbol.
func (r *AssetRepository) ListByType(ctx context.Context, at models.AssetType) ([]models.Asset, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE asset_type = ? ORDER BY symbol ASC
	`, string(at))
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()
	return collectAssets(rows)
}

// SearchLike matches symbol or name against the query (case-insensitive
// containment), capped at limit.
func (r *AssetRepository) SearchLike(ctx context.Context, query string, limit int) ([]models.Asset, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT `+assetColumns+` FROM assets
		WHERE symbol LIKE ? COLLATE NOCASE OR name LIKE ? COLLATE NOCASE
		ORDER BY symbol ASC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	defer rows.Close()
	return collectAssets(rows)
}

// Count returns the catalog size.
func (r *AssetRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return n, nil
}

func collectAssets(rows *sql.Rows) ([]models.Asset, error) {
	var assets []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

func scanAsset(s scanner) (*models.Asset, error) {
	var a models.Asset
	var assetType, meta string
	if err := s.Scan(
		&a.Symbol, &a.Name, &assetType, &a.AssetClass, &a.AssetSubClass,
		&a.Exchange, &a.Currency, &a.DataSource, &meta, &a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}
	a.AssetType = models.AssetType(assetType)
	if meta != "" && meta != "{}" {
		_ = json.Unmarshal([]byte(meta), &a.Metadata)
	}
	return &a, nil
}
