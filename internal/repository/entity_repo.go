package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
)

// EntityRepository handles entity (empresa) database operations
type EntityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db *sql.DB, logger *zap.Logger) *EntityRepository {
	return &EntityRepository{
		db:     db,
		logger: logger,
	}
}

const entityColumns = `id, rut, razon_social, nombre_fantasia, giro, direccion, comuna, region,
	pais, sector, tamanio, estado, sii_configurado, sii_rut, sii_password_encrypted,
	ultima_sync_sii, created_at, updated_at`

// Create inserts a new entity. A duplicate RUT returns apperr.ErrDuplicate.
func (r *EntityRepository) Create(entity *models.Entity) error {
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	if entity.Pais == "" {
		entity.Pais = "CL"
	}
	if entity.Estado == "" {
		entity.Estado = models.EntityEstadoActivo
	}

	query := `
		INSERT INTO entities (
			id, rut, razon_social, nombre_fantasia, giro, direccion, comuna, region,
			pais, sector, tamanio, estado, sii_configurado, sii_rut, sii_password_encrypted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		entity.ID,
		entity.RUT,
		entity.RazonSocial,
		entity.NombreFantasia,
		entity.Giro,
		entity.Direccion,
		entity.Comuna,
		entity.Region,
		entity.Pais,
		entity.Sector,
		entity.Tamanio,
		entity.Estado,
		entity.SIIConfigurado,
		entity.SIIRut,
		entity.SIIPasswordEncrypted,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rut %s: %w", entity.RUT, apperr.ErrDuplicate)
		}
		r.logger.Error("Failed to create entity", zap.Error(err))
		return fmt.Errorf("failed to create entity: %w", err)
	}

	return nil
}

// GetByID retrieves an entity by ID
func (r *EntityRepository) GetByID(id string) (*models.Entity, error) {
	query := fmt.Sprintf("SELECT %s FROM entities WHERE id = ?", entityColumns)
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByRUT retrieves an entity by its RUT
func (r *EntityRepository) GetByRUT(rut string) (*models.Entity, error) {
	query := fmt.Sprintf("SELECT %s FROM entities WHERE rut = ?", entityColumns)
	return r.scanOne(r.db.QueryRow(query, rut))
}

// EntityFilter narrows List results
type EntityFilter struct {
	Sector         string
	Estado         string
	SIIConfigurado *bool
	Limit          int
	Offset         int
}

// List retrieves entities matching the filter
func (r *EntityRepository) List(filter EntityFilter) ([]*models.Entity, error) {
	query := fmt.Sprintf("SELECT %s FROM entities WHERE 1=1", entityColumns)
	var args []interface{}

	if filter.Sector != "" {
		query += " AND sector = ?"
		args = append(args, filter.Sector)
	}
	if filter.Estado != "" {
		query += " AND estado = ?"
		args = append(args, filter.Estado)
	}
	if filter.SIIConfigurado != nil {
		query += " AND sii_configurado = ?"
		args = append(args, *filter.SIIConfigurado)
	}

	query += " ORDER BY razon_social"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list entities", zap.Error(err))
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		entity, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// Update persists mutable entity fields
func (r *EntityRepository) Update(entity *models.Entity) error {
	query := `
		UPDATE entities SET
			razon_social = ?, nombre_fantasia = ?, giro = ?, direccion = ?, comuna = ?,
			region = ?, sector = ?, tamanio = ?, estado = ?, sii_configurado = ?,
			sii_rut = ?, sii_password_encrypted = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := r.db.Exec(query,
		entity.RazonSocial,
		entity.NombreFantasia,
		entity.Giro,
		entity.Direccion,
		entity.Comuna,
		entity.Region,
		entity.Sector,
		entity.Tamanio,
		entity.Estado,
		entity.SIIConfigurado,
		entity.SIIRut,
		entity.SIIPasswordEncrypted,
		entity.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update entity", zap.String("entity_id", entity.ID), zap.Error(err))
		return fmt.Errorf("failed to update entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entity %s: %w", entity.ID, apperr.ErrNotFound)
	}
	return nil
}

// UpdateUltimaSync records the timestamp of the last successful SII sync
func (r *EntityRepository) UpdateUltimaSync(id string, at time.Time) error {
	_, err := r.db.Exec(
		"UPDATE entities SET ultima_sync_sii = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update ultima_sync_sii: %w", err)
	}
	return nil
}

// Delete removes an entity. Owned asientos, evidencias and reportes cascade
// at the storage layer.
func (r *EntityRepository) Delete(id string) error {
	res, err := r.db.Exec("DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete entity", zap.String("entity_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entity %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (r *EntityRepository) scanOne(row *sql.Row) (*models.Entity, error) {
	entity, err := scanEntity(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity: %w", apperr.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to scan entity", zap.Error(err))
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return entity, nil
}

func (r *EntityRepository) scanRow(rows *sql.Rows) (*models.Entity, error) {
	entity, err := scanEntity(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}
	return entity, nil
}

func scanEntity(scan func(dest ...interface{}) error) (*models.Entity, error) {
	var entity models.Entity
	var ultimaSync sql.NullTime

	err := scan(
		&entity.ID,
		&entity.RUT,
		&entity.RazonSocial,
		&entity.NombreFantasia,
		&entity.Giro,
		&entity.Direccion,
		&entity.Comuna,
		&entity.Region,
		&entity.Pais,
		&entity.Sector,
		&entity.Tamanio,
		&entity.Estado,
		&entity.SIIConfigurado,
		&entity.SIIRut,
		&entity.SIIPasswordEncrypted,
		&ultimaSync,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ultimaSync.Valid {
		entity.UltimaSyncSII = &ultimaSync.Time
	}
	return &entity, nil
}
