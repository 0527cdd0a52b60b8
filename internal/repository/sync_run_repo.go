package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
)

// SyncRunRepository persists SII synchronization run records
type SyncRunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(db *sql.DB, logger *zap.Logger) *SyncRunRepository {
	return &SyncRunRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new run in estado "procesando"
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Estado = models.SyncEstadoProcesando

	_, err := r.db.Exec(`
		INSERT INTO sync_runs (id, entity_id, fecha_desde, fecha_hasta, estado)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.EntityID, run.FechaDesde, run.FechaHasta, run.Estado)
	if err != nil {
		r.logger.Error("Failed to create sync run", zap.Error(err))
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// Finish closes a run with its final estado and stats payload
func (r *SyncRunRepository) Finish(id, estado, statsJSON string) error {
	_, err := r.db.Exec(`
		UPDATE sync_runs
		SET estado = ?, stats_json = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, estado, statsJSON, id)
	if err != nil {
		r.logger.Error("Failed to finish sync run", zap.String("sync_run_id", id), zap.Error(err))
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	return nil
}

// GetByID retrieves a sync run by ID
func (r *SyncRunRepository) GetByID(id string) (*models.SyncRun, error) {
	run, err := scanSyncRun(r.db.QueryRow(`
		SELECT id, entity_id, fecha_desde, fecha_hasta, estado, stats_json, started_at, finished_at
		FROM sync_runs WHERE id = ?
	`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get sync run", zap.String("sync_run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return run, nil
}

// ListByEntity retrieves an entity's runs, newest first.
func (r *SyncRunRepository) ListByEntity(entityID string, limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT id, entity_id, fecha_desde, fecha_hasta, estado, stats_json, started_at, finished_at
		FROM sync_runs WHERE entity_id = ? ORDER BY started_at DESC
	`
	args := []interface{}{entityID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list sync runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanSyncRun(scan func(dest ...interface{}) error) (*models.SyncRun, error) {
	var run models.SyncRun
	var finishedAt sql.NullTime

	err := scan(
		&run.ID,
		&run.EntityID,
		&run.FechaDesde,
		&run.FechaHasta,
		&run.Estado,
		&run.StatsJSON,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}
