package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/models"
)

// VehiculoRepository caches Boostr plate lookups locally so repeated queries
// for the same plate never hit the upstream API twice.
type VehiculoRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVehiculoRepository creates a new vehiculo repository
func NewVehiculoRepository(db *sql.DB, logger *zap.Logger) *VehiculoRepository {
	return &VehiculoRepository{
		db:     db,
		logger: logger,
	}
}

// GetByPatente retrieves a cached vehiculo. Returns (nil, nil) on cache miss.
func (r *VehiculoRepository) GetByPatente(patente string) (*models.Vehiculo, error) {
	var v models.Vehiculo
	var entityID sql.NullString

	err := r.db.QueryRow(`
		SELECT id, entity_id, patente, marca, modelo, ano, tipo_combustible,
			rendimiento_km_l, factor_emision, created_at
		FROM vehiculos WHERE patente = ?
	`, normalizePatente(patente)).Scan(
		&v.ID,
		&entityID,
		&v.Patente,
		&v.Marca,
		&v.Modelo,
		&v.Ano,
		&v.TipoCombustible,
		&v.RendimientoKmL,
		&v.FactorEmision,
		&v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vehiculo", zap.String("patente", patente), zap.Error(err))
		return nil, fmt.Errorf("failed to get vehiculo: %w", err)
	}
	if entityID.Valid {
		v.EntityID = &entityID.String
	}
	return &v, nil
}

// Create caches a vehiculo. A concurrent insert of the same plate is not an
// error; the cached row wins.
func (r *VehiculoRepository) Create(vehiculo *models.Vehiculo) error {
	if vehiculo.ID == "" {
		vehiculo.ID = uuid.NewString()
	}
	vehiculo.Patente = normalizePatente(vehiculo.Patente)

	_, err := r.db.Exec(`
		INSERT INTO vehiculos (id, entity_id, patente, marca, modelo, ano,
			tipo_combustible, rendimiento_km_l, factor_emision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		vehiculo.ID,
		nullableString(vehiculo.EntityID),
		vehiculo.Patente,
		vehiculo.Marca,
		vehiculo.Modelo,
		vehiculo.Ano,
		vehiculo.TipoCombustible,
		vehiculo.RendimientoKmL,
		vehiculo.FactorEmision,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		r.logger.Error("Failed to cache vehiculo", zap.String("patente", vehiculo.Patente), zap.Error(err))
		return fmt.Errorf("failed to cache vehiculo: %w", err)
	}
	return nil
}

// ListByEntity retrieves the cached vehiculos associated with an entity.
func (r *VehiculoRepository) ListByEntity(entityID string) ([]*models.Vehiculo, error) {
	rows, err := r.db.Query(`
		SELECT id, entity_id, patente, marca, modelo, ano, tipo_combustible,
			rendimiento_km_l, factor_emision, created_at
		FROM vehiculos WHERE entity_id = ? ORDER BY created_at DESC
	`, entityID)
	if err != nil {
		r.logger.Error("Failed to list vehiculos", zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list vehiculos: %w", err)
	}
	defer rows.Close()

	var vehiculos []*models.Vehiculo
	for rows.Next() {
		var v models.Vehiculo
		var eid sql.NullString
		if err := rows.Scan(
			&v.ID,
			&eid,
			&v.Patente,
			&v.Marca,
			&v.Modelo,
			&v.Ano,
			&v.TipoCombustible,
			&v.RendimientoKmL,
			&v.FactorEmision,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vehiculo: %w", err)
		}
		if eid.Valid {
			v.EntityID = &eid.String
		}
		vehiculos = append(vehiculos, &v)
	}
	return vehiculos, rows.Err()
}

func normalizePatente(patente string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(patente), "-", ""))
}
