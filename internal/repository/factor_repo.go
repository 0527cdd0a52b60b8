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

// FactorRepository handles emission factor database operations. Factor rows
// are immutable; versioning happens by insert only.
type FactorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFactorRepository creates a new factor repository
func NewFactorRepository(db *sql.DB, logger *zap.Logger) *FactorRepository {
	return &FactorRepository{
		db:     db,
		logger: logger,
	}
}

const factorColumns = `id, key, categoria, unidad_entrada, unidad_salida, valor,
	fuente_oficial, vigencia_desde, vigencia_hasta, version, created_at`

// Insert writes one factor version. The (key, version) unique index rejects
// concurrent writers that raced to the same version number.
func (r *FactorRepository) Insert(tx *sql.Tx, factor *models.Factor) error {
	if factor.ID == "" {
		factor.ID = uuid.NewString()
	}

	query := `
		INSERT INTO factors (
			id, key, categoria, unidad_entrada, unidad_salida, valor,
			fuente_oficial, vigencia_desde, vigencia_hasta, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	// Vigencia dates are stored as bare YYYY-MM-DD strings so the window
	// comparison in LookupAt works as plain string comparison.
	var hasta interface{}
	if factor.VigenciaHasta != nil {
		hasta = factor.VigenciaHasta.Format("2006-01-02")
	}

	_, err := pick(r.db, tx).Exec(query,
		factor.ID,
		factor.Key,
		factor.Categoria,
		factor.UnidadEntrada,
		factor.UnidadSalida,
		factor.Valor,
		factor.FuenteOficial,
		factor.VigenciaDesde.Format("2006-01-02"),
		hasta,
		factor.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("factor %s version %d: %w", factor.Key, factor.Version, apperr.ErrDuplicate)
		}
		r.logger.Error("Failed to insert factor", zap.String("key", factor.Key), zap.Error(err))
		return fmt.Errorf("failed to insert factor: %w", err)
	}
	return nil
}

// MaxVersion returns the highest version for a key, 0 when the key is new.
func (r *FactorRepository) MaxVersion(tx *sql.Tx, key string) (int, error) {
	var version int
	err := pick(r.db, tx).QueryRow(
		"SELECT COALESCE(MAX(version), 0) FROM factors WHERE key = ?", key,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get max factor version: %w", err)
	}
	return version, nil
}

// LookupAt returns the highest version of key whose validity window contains
// at. The window is inclusive on both ends; a NULL vigencia_hasta is
// open-ended.
func (r *FactorRepository) LookupAt(key string, at time.Time) (*models.Factor, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM factors
		WHERE key = ?
		  AND vigencia_desde <= ?
		  AND (vigencia_hasta IS NULL OR vigencia_hasta >= ?)
		ORDER BY version DESC
		LIMIT 1
	`, factorColumns)

	day := at.Format("2006-01-02")
	return r.scanOne(r.db.QueryRow(query, key, day, day), key)
}

// LookupLatest returns the highest version of key with no window filter.
func (r *FactorRepository) LookupLatest(key string) (*models.Factor, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM factors
		WHERE key = ?
		ORDER BY version DESC
		LIMIT 1
	`, factorColumns)

	return r.scanOne(r.db.QueryRow(query, key), key)
}

// FactorFilter narrows List results
type FactorFilter struct {
	Categoria string
	VigenteAt *time.Time
	Limit     int
	Offset    int
}

// List retrieves factors matching the filter, ordered by categoria then key.
func (r *FactorRepository) List(filter FactorFilter) ([]*models.Factor, error) {
	query := fmt.Sprintf("SELECT %s FROM factors WHERE 1=1", factorColumns)
	var args []interface{}

	if filter.Categoria != "" {
		query += " AND categoria = ?"
		args = append(args, filter.Categoria)
	}
	if filter.VigenteAt != nil {
		day := filter.VigenteAt.Format("2006-01-02")
		query += " AND vigencia_desde <= ? AND (vigencia_hasta IS NULL OR vigencia_hasta >= ?)"
		args = append(args, day, day)
	}

	query += " ORDER BY categoria, key, version"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list factors", zap.Error(err))
		return nil, fmt.Errorf("failed to list factors: %w", err)
	}
	defer rows.Close()

	var factors []*models.Factor
	for rows.Next() {
		factor, err := scanFactor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan factor: %w", err)
		}
		factors = append(factors, factor)
	}
	return factors, rows.Err()
}

// CategoriaCount pairs a categoria with its factor count
type CategoriaCount struct {
	Categoria string `json:"categoria"`
	Total     int    `json:"total_factores"`
}

// Categorias returns every categoria with the number of factor rows in it.
func (r *FactorRepository) Categorias() ([]CategoriaCount, error) {
	rows, err := r.db.Query(
		"SELECT categoria, COUNT(id) FROM factors GROUP BY categoria ORDER BY categoria",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count factor categorias: %w", err)
	}
	defer rows.Close()

	var counts []CategoriaCount
	for rows.Next() {
		var c CategoriaCount
		if err := rows.Scan(&c.Categoria, &c.Total); err != nil {
			return nil, fmt.Errorf("failed to scan categoria count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *FactorRepository) scanOne(row *sql.Row, key string) (*models.Factor, error) {
	factor, err := scanFactor(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("factor %q: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to scan factor", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get factor: %w", err)
	}
	return factor, nil
}

func scanFactor(scan func(dest ...interface{}) error) (*models.Factor, error) {
	var factor models.Factor
	var hasta sql.NullTime

	err := scan(
		&factor.ID,
		&factor.Key,
		&factor.Categoria,
		&factor.UnidadEntrada,
		&factor.UnidadSalida,
		&factor.Valor,
		&factor.FuenteOficial,
		&factor.VigenciaDesde,
		&hasta,
		&factor.Version,
		&factor.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if hasta.Valid {
		factor.VigenciaHasta = &hasta.Time
	}
	return &factor, nil
}
