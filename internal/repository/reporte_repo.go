package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
)

// ReporteRepository handles reporte database operations
type ReporteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReporteRepository creates a new reporte repository
func NewReporteRepository(db *sql.DB, logger *zap.Logger) *ReporteRepository {
	return &ReporteRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new reporte row in estado "generando"
func (r *ReporteRepository) Create(reporte *models.Reporte) error {
	if reporte.ID == "" {
		reporte.ID = uuid.NewString()
	}
	reporte.Estado = models.ReporteEstadoGenerando

	_, err := r.db.Exec(`
		INSERT INTO reportes (id, entity_id, tipo, periodo, estado, generado_por)
		VALUES (?, ?, ?, ?, ?, ?)
	`, reporte.ID, reporte.EntityID, reporte.Tipo, reporte.Periodo, reporte.Estado, reporte.GeneradoPor)
	if err != nil {
		r.logger.Error("Failed to create reporte", zap.Error(err))
		return fmt.Errorf("failed to create reporte: %w", err)
	}
	return nil
}

// GetByID retrieves a reporte by ID
func (r *ReporteRepository) GetByID(id string) (*models.Reporte, error) {
	reporte, err := scanReporte(r.db.QueryRow(`
		SELECT id, entity_id, tipo, periodo, estado, data_json, generado_por, completado_at, created_at
		FROM reportes WHERE id = ?
	`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reporte %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get reporte", zap.String("reporte_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get reporte: %w", err)
	}
	return reporte, nil
}

// ReporteFilter narrows List results
type ReporteFilter struct {
	EntityID string
	Tipo     string
	Periodo  string
	Estado   string
	Limit    int
	Offset   int
}

// List retrieves reportes matching the filter, newest first.
func (r *ReporteRepository) List(filter ReporteFilter) ([]*models.Reporte, error) {
	query := `
		SELECT id, entity_id, tipo, periodo, estado, data_json, generado_por, completado_at, created_at
		FROM reportes WHERE entity_id = ?
	`
	args := []interface{}{filter.EntityID}

	if filter.Tipo != "" {
		query += " AND tipo = ?"
		args = append(args, filter.Tipo)
	}
	if filter.Periodo != "" {
		query += " AND periodo = ?"
		args = append(args, filter.Periodo)
	}
	if filter.Estado != "" {
		query += " AND estado = ?"
		args = append(args, filter.Estado)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list reportes", zap.Error(err))
		return nil, fmt.Errorf("failed to list reportes: %w", err)
	}
	defer rows.Close()

	var reportes []*models.Reporte
	for rows.Next() {
		reporte, err := scanReporte(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reporte: %w", err)
		}
		reportes = append(reportes, reporte)
	}
	return reportes, rows.Err()
}

// SetResult transitions a reporte out of "generando". The guard on the current
// estado makes the transition happen at most once even if a worker retries.
func (r *ReporteRepository) SetResult(id, estado, dataJSON string) error {
	res, err := r.db.Exec(`
		UPDATE reportes
		SET estado = ?, data_json = ?, completado_at = CURRENT_TIMESTAMP
		WHERE id = ? AND estado = ?
	`, estado, dataJSON, id, models.ReporteEstadoGenerando)
	if err != nil {
		r.logger.Error("Failed to update reporte result", zap.String("reporte_id", id), zap.Error(err))
		return fmt.Errorf("failed to update reporte result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reporte %s not in estado generando: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func scanReporte(scan func(dest ...interface{}) error) (*models.Reporte, error) {
	var reporte models.Reporte
	var completadoAt sql.NullTime

	err := scan(
		&reporte.ID,
		&reporte.EntityID,
		&reporte.Tipo,
		&reporte.Periodo,
		&reporte.Estado,
		&reporte.DataJSON,
		&reporte.GeneradoPor,
		&completadoAt,
		&reporte.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completadoAt.Valid {
		t := completadoAt.Time.UTC()
		reporte.CompletadoAt = &t
	}
	return &reporte, nil
}
