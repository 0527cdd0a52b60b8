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

// AsientoRepository handles asiento verde database operations. Asientos are
// never physically deleted; Anular soft-invalidates them.
type AsientoRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAsientoRepository creates a new asiento repository
func NewAsientoRepository(db *sql.DB, logger *zap.Logger) *AsientoRepository {
	return &AsientoRepository{
		db:     db,
		logger: logger,
	}
}

const asientoColumns = `id, entity_id, fecha, periodo, tipo, categoria, subcategoria,
	descripcion, cantidad_fisica, unidad_fisica, factor_id, factor_valor, factor_unidad,
	emisiones_tco2e, consumo_agua_m3, residuos_kg, alcance_gei,
	debe_cuenta, debe_nombre, debe_monto, haber_cuenta, haber_nombre, haber_monto,
	evidencia_id, taxonomia_clasificacion, taxonomia_criterio, estado, creado_por,
	created_at, updated_at`

// Create inserts a new asiento verde
func (r *AsientoRepository) Create(tx *sql.Tx, asiento *models.AsientoVerde) error {
	if asiento.ID == "" {
		asiento.ID = uuid.NewString()
	}
	if asiento.Estado == "" {
		asiento.Estado = models.AsientoEstadoConfirmado
	}
	// Periodo is always derived, never trusted from input.
	asiento.Periodo = models.Periodo(asiento.Fecha)

	query := `
		INSERT INTO asientos_verdes (
			id, entity_id, fecha, periodo, tipo, categoria, subcategoria,
			descripcion, cantidad_fisica, unidad_fisica, factor_id, factor_valor, factor_unidad,
			emisiones_tco2e, consumo_agua_m3, residuos_kg, alcance_gei,
			debe_cuenta, debe_nombre, debe_monto, haber_cuenta, haber_nombre, haber_monto,
			evidencia_id, taxonomia_clasificacion, taxonomia_criterio, estado, creado_por
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := pick(r.db, tx).Exec(query,
		asiento.ID,
		asiento.EntityID,
		asiento.Fecha,
		asiento.Periodo,
		asiento.Tipo,
		asiento.Categoria,
		asiento.Subcategoria,
		asiento.Descripcion,
		asiento.CantidadFisica,
		asiento.UnidadFisica,
		nullableString(asiento.FactorID),
		nullableFloat(asiento.FactorValor),
		asiento.FactorUnidad,
		nullableFloat(asiento.EmisionesTCO2e),
		nullableFloat(asiento.ConsumoAguaM3),
		nullableFloat(asiento.ResiduosKg),
		nullableInt(asiento.AlcanceGEI),
		asiento.DebeCuenta,
		asiento.DebeNombre,
		asiento.DebeMonto,
		asiento.HaberCuenta,
		asiento.HaberNombre,
		asiento.HaberMonto,
		nullableString(asiento.EvidenciaID),
		asiento.TaxonomiaClasificacion,
		asiento.TaxonomiaCriterio,
		asiento.Estado,
		asiento.CreadoPor,
	)
	if err != nil {
		r.logger.Error("Failed to create asiento", zap.Error(err))
		return fmt.Errorf("failed to create asiento: %w", err)
	}
	return nil
}

// GetByID retrieves an asiento by ID
func (r *AsientoRepository) GetByID(id string) (*models.AsientoVerde, error) {
	query := fmt.Sprintf("SELECT %s FROM asientos_verdes WHERE id = ?", asientoColumns)
	asiento, err := scanAsiento(r.db.QueryRow(query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("asiento %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get asiento", zap.String("asiento_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get asiento: %w", err)
	}
	return asiento, nil
}

// AsientoFilter narrows List results
type AsientoFilter struct {
	EntityID   string
	Periodo    string
	FechaDesde *time.Time
	FechaHasta *time.Time
	Categoria  string
	Tipo       string
	Estado     string
	Limit      int
	Offset     int
}

func (f AsientoFilter) where() (string, []interface{}) {
	query := " WHERE entity_id = ?"
	args := []interface{}{f.EntityID}

	if f.Estado != "" {
		query += " AND estado = ?"
		args = append(args, f.Estado)
	}
	if f.Periodo != "" {
		query += " AND periodo = ?"
		args = append(args, f.Periodo)
	}
	if f.FechaDesde != nil {
		query += " AND fecha >= ?"
		args = append(args, *f.FechaDesde)
	}
	if f.FechaHasta != nil {
		query += " AND fecha <= ?"
		args = append(args, *f.FechaHasta)
	}
	if f.Categoria != "" {
		query += " AND categoria = ?"
		args = append(args, f.Categoria)
	}
	if f.Tipo != "" {
		query += " AND tipo = ?"
		args = append(args, f.Tipo)
	}
	return query, args
}

// List retrieves asientos matching the filter, newest first.
func (r *AsientoRepository) List(filter AsientoFilter) ([]*models.AsientoVerde, error) {
	where, args := filter.where()
	query := fmt.Sprintf("SELECT %s FROM asientos_verdes%s ORDER BY fecha DESC", asientoColumns, where)
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list asientos", zap.Error(err))
		return nil, fmt.Errorf("failed to list asientos: %w", err)
	}
	defer rows.Close()

	var asientos []*models.AsientoVerde
	for rows.Next() {
		asiento, err := scanAsiento(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asiento: %w", err)
		}
		asientos = append(asientos, asiento)
	}
	return asientos, rows.Err()
}

// Count returns the number of asientos matching the filter.
func (r *AsientoRepository) Count(filter AsientoFilter) (int, error) {
	where, args := filter.where()
	var total int
	err := r.db.QueryRow("SELECT COUNT(id) FROM asientos_verdes"+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count asientos: %w", err)
	}
	return total, nil
}

// Anular soft-invalidates an asiento. Physical deletion is not supported.
func (r *AsientoRepository) Anular(id string) error {
	res, err := r.db.Exec(
		"UPDATE asientos_verdes SET estado = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		models.AsientoEstadoAnulado, id,
	)
	if err != nil {
		r.logger.Error("Failed to anular asiento", zap.String("asiento_id", id), zap.Error(err))
		return fmt.Errorf("failed to anular asiento: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("asiento %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// AsientoStats aggregates one period for the stats endpoint
type AsientoStats struct {
	TotalAsientos  int     `json:"asientos"`
	EmisionesTCO2e float64 `json:"emisiones_tco2e"`
	AguaM3         float64 `json:"agua_m3"`
	ResiduosKg     float64 `json:"residuos_kg"`
	DebeCLP        float64 `json:"debe_clp"`
	HaberCLP       float64 `json:"haber_clp"`
}

// CategoriaStats aggregates one categoria within a period
type CategoriaStats struct {
	Categoria      string  `json:"categoria"`
	Asientos       int     `json:"asientos"`
	EmisionesTCO2e float64 `json:"emisiones_tco2e"`
}

// AlcanceStats aggregates one GHG scope within a period
type AlcanceStats struct {
	Alcance        int     `json:"alcance"`
	EmisionesTCO2e float64 `json:"emisiones_tco2e"`
}

// Stats computes the period totals over confirmed asientos.
func (r *AsientoRepository) Stats(entityID, periodo string) (*AsientoStats, error) {
	var stats AsientoStats
	err := r.db.QueryRow(`
		SELECT COUNT(id),
			COALESCE(SUM(emisiones_tco2e), 0),
			COALESCE(SUM(consumo_agua_m3), 0),
			COALESCE(SUM(residuos_kg), 0),
			COALESCE(SUM(debe_monto), 0),
			COALESCE(SUM(haber_monto), 0)
		FROM asientos_verdes
		WHERE entity_id = ? AND periodo = ? AND estado = ?
	`, entityID, periodo, models.AsientoEstadoConfirmado).Scan(
		&stats.TotalAsientos,
		&stats.EmisionesTCO2e,
		&stats.AguaM3,
		&stats.ResiduosKg,
		&stats.DebeCLP,
		&stats.HaberCLP,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute asiento stats: %w", err)
	}
	return &stats, nil
}

// StatsPorCategoria computes per-categoria counts and emissions for a period.
func (r *AsientoRepository) StatsPorCategoria(entityID, periodo string) ([]CategoriaStats, error) {
	rows, err := r.db.Query(`
		SELECT categoria, COUNT(id), COALESCE(SUM(emisiones_tco2e), 0)
		FROM asientos_verdes
		WHERE entity_id = ? AND periodo = ? AND estado = ?
		GROUP BY categoria
		ORDER BY categoria
	`, entityID, periodo, models.AsientoEstadoConfirmado)
	if err != nil {
		return nil, fmt.Errorf("failed to compute categoria stats: %w", err)
	}
	defer rows.Close()

	var stats []CategoriaStats
	for rows.Next() {
		var s CategoriaStats
		if err := rows.Scan(&s.Categoria, &s.Asientos, &s.EmisionesTCO2e); err != nil {
			return nil, fmt.Errorf("failed to scan categoria stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// StatsPorAlcance computes per-GHG-scope emissions for a period.
func (r *AsientoRepository) StatsPorAlcance(entityID, periodo string) ([]AlcanceStats, error) {
	rows, err := r.db.Query(`
		SELECT alcance_gei, COALESCE(SUM(emisiones_tco2e), 0)
		FROM asientos_verdes
		WHERE entity_id = ? AND periodo = ? AND estado = ? AND alcance_gei IS NOT NULL
		GROUP BY alcance_gei
		ORDER BY alcance_gei
	`, entityID, periodo, models.AsientoEstadoConfirmado)
	if err != nil {
		return nil, fmt.Errorf("failed to compute alcance stats: %w", err)
	}
	defer rows.Close()

	var stats []AlcanceStats
	for rows.Next() {
		var s AlcanceStats
		if err := rows.Scan(&s.Alcance, &s.EmisionesTCO2e); err != nil {
			return nil, fmt.Errorf("failed to scan alcance stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func scanAsiento(scan func(dest ...interface{}) error) (*models.AsientoVerde, error) {
	var a models.AsientoVerde
	var factorID, evidenciaID sql.NullString
	var factorValor, emisiones, agua, residuos sql.NullFloat64
	var alcance sql.NullInt64

	err := scan(
		&a.ID,
		&a.EntityID,
		&a.Fecha,
		&a.Periodo,
		&a.Tipo,
		&a.Categoria,
		&a.Subcategoria,
		&a.Descripcion,
		&a.CantidadFisica,
		&a.UnidadFisica,
		&factorID,
		&factorValor,
		&a.FactorUnidad,
		&emisiones,
		&agua,
		&residuos,
		&alcance,
		&a.DebeCuenta,
		&a.DebeNombre,
		&a.DebeMonto,
		&a.HaberCuenta,
		&a.HaberNombre,
		&a.HaberMonto,
		&evidenciaID,
		&a.TaxonomiaClasificacion,
		&a.TaxonomiaCriterio,
		&a.Estado,
		&a.CreadoPor,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if factorID.Valid {
		a.FactorID = &factorID.String
	}
	if evidenciaID.Valid {
		a.EvidenciaID = &evidenciaID.String
	}
	if factorValor.Valid {
		a.FactorValor = &factorValor.Float64
	}
	if emisiones.Valid {
		a.EmisionesTCO2e = &emisiones.Float64
	}
	if agua.Valid {
		a.ConsumoAguaM3 = &agua.Float64
	}
	if residuos.Valid {
		a.ResiduosKg = &residuos.Float64
	}
	if alcance.Valid {
		v := int(alcance.Int64)
		a.AlcanceGEI = &v
	}
	return &a, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullableInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
