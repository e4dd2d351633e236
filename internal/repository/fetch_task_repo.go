package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/epeers/vnmarket/internal/database"
	"github.com/epeers/vnmarket/internal/models"
)

// Fetch task states.
const (
	TaskQueued    = "queued"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// FetchTask is one background enrichment unit of work, keyed by
// symbol_start_end.
type FetchTask struct {
	Key             string           `json:"key"`
	Symbol          string           `json:"symbol"`
	AssetType       models.AssetType `json:"asset_type"`
	StartDate       string           `json:"start_date"`
	EndDate         string           `json:"end_date"`
	State           string           `json:"state"`
	Error           string           `json:"error,omitempty"`
	TotalChunks     int              `json:"total_chunks"`
	CompletedChunks int              `json:"completed_chunks"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// FetchTaskRepository persists lazy-fetch task state so the admin endpoint
// can report progress and dedup survives across requests.
type FetchTaskRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewFetchTaskRepository creates a new FetchTaskRepository.
func NewFetchTaskRepository(db *database.DB) *FetchTaskRepository {
	return &FetchTaskRepository{db: db, now: time.Now}
}

// TryInsert atomically claims a task key. Returns false when the key is
// already active (queued or running); completed/failed rows are reclaimed.
func (r *FetchTaskRepository) TryInsert(ctx context.Context, t *FetchTask) (bool, error) {
	now := r.now().UTC()
	res, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO fetch_tasks (task_key, symbol, asset_type, start_date, end_date, state, error, total_chunks, completed_chunks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', 0, 0, ?, ?)
		ON CONFLICT (task_key) DO UPDATE SET
			state = excluded.state, error = '', total_chunks = 0, completed_chunks = 0,
			created_at = excluded.created_at, updated_at = excluded.updated_at
		WHERE fetch_tasks.state IN (?, ?)
	`, t.Key, t.Symbol, string(t.AssetType), t.StartDate, t.EndDate, TaskQueued, now, now,
		TaskCompleted, TaskFailed)
	if err != nil {
		return false, fmt.Errorf("failed to claim fetch task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetState transitions a task, recording an error message on failure.
func (r *FetchTaskRepository) SetState(ctx context.Context, key, state, errMsg string) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		UPDATE fetch_tasks SET state = ?, error = ?, updated_at = ? WHERE task_key = ?
	`, state, errMsg, r.now().UTC(), key)
	if err != nil {
		return fmt.Errorf("failed to update fetch task: %w", err)
	}
	return nil
}

// SetProgress records the planned chunk count and how many have finished.
func (r *FetchTaskRepository) SetProgress(ctx context.Context, key string, completed, total int) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		UPDATE fetch_tasks SET completed_chunks = ?, total_chunks = ?, updated_at = ? WHERE task_key = ?
	`, completed, total, r.now().UTC(), key)
	if err != nil {
		return fmt.Errorf("failed to update fetch task progress: %w", err)
	}
	return nil
}

// BySymbol returns all tasks for a symbol, newest first.
func (r *FetchTaskRepository) BySymbol(ctx context.Context, symbol string) ([]FetchTask, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT task_key, symbol, asset_type, start_date, end_date, state, error, total_chunks, completed_chunks, created_at, updated_at
		FROM fetch_tasks WHERE symbol = ? ORDER BY created_at DESC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// All returns every task, newest first, capped at limit.
func (r *FetchTaskRepository) All(ctx context.Context, limit int) ([]FetchTask, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT task_key, symbol, asset_type, start_date, end_date, state, error, total_chunks, completed_chunks, created_at, updated_at
		FROM fetch_tasks ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// Get returns one task by key, nil when absent.
func (r *FetchTaskRepository) Get(ctx context.Context, key string) (*FetchTask, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT task_key, symbol, asset_type, start_date, end_date, state, error, total_chunks, completed_chunks, created_at, updated_at
		FROM fetch_tasks WHERE task_key = ?
	`, key)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func collectTasks(rows *sql.Rows) ([]FetchTask, error) {
	var tasks []FetchTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(s scanner) (*FetchTask, error) {
	var t FetchTask
	var assetType string
	if err := s.Scan(&t.Key, &t.Symbol, &assetType, &t.StartDate, &t.EndDate, &t.State, &t.Error, &t.TotalChunks, &t.CompletedChunks, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan fetch task: %w", err)
	}
	t.AssetType = models.AssetType(assetType)
	return &t, nil
}
