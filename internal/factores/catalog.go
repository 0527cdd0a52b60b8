// Package factores manages the versioned emission factor catalog.
//
// Factors are append-only: publishing a new value for an existing key creates
// version N+1 instead of mutating the stored row, so asientos generated with
// an old version stay auditable.
package factores

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/pkg/database"
)

var validCategorias = map[string]bool{
	models.FactorCategoriaEnergia:     true,
	models.FactorCategoriaCombustible: true,
	models.FactorCategoriaTransporte:  true,
	models.FactorCategoriaAgua:        true,
	models.FactorCategoriaResiduo:     true,
}

// Catalog is the factor catalog service
type Catalog struct {
	db      *database.DB
	factors *repository.FactorRepository
	logger  *zap.Logger
}

// NewCatalog creates a new factor catalog service
func NewCatalog(db *database.DB, factors *repository.FactorRepository, logger *zap.Logger) *Catalog {
	return &Catalog{
		db:      db,
		factors: factors,
		logger:  logger,
	}
}

// Lookup resolves the factor version applicable at a given date: the highest
// version whose vigencia window contains the date. An open window (hasta NULL)
// matches any date from desde onward.
func (c *Catalog) Lookup(key string, at time.Time) (*models.Factor, error) {
	return c.factors.LookupAt(key, at)
}

// LookupLatest resolves the newest version of a key regardless of vigencia.
func (c *Catalog) LookupLatest(key string) (*models.Factor, error) {
	return c.factors.LookupLatest(key)
}

// List retrieves factors matching the filter
func (c *Catalog) List(filter repository.FactorFilter) ([]*models.Factor, error) {
	return c.factors.List(filter)
}

// Categorias returns the catalog's categorias with factor counts
func (c *Catalog) Categorias() ([]repository.CategoriaCount, error) {
	return c.factors.Categorias()
}

// Publish stores a factor as the next version of its key. Version 1 when the
// key is new. The read-then-insert runs in one transaction; a concurrent
// publish of the same key loses on the UNIQUE(key, version) index and
// surfaces as ErrDuplicate.
func (c *Catalog) Publish(factor *models.Factor) error {
	if err := validate(factor); err != nil {
		return err
	}

	err := c.db.WithTransaction(func(tx *sql.Tx) error {
		max, err := c.factors.MaxVersion(tx, factor.Key)
		if err != nil {
			return err
		}
		factor.Version = max + 1
		return c.factors.Insert(tx, factor)
	})
	if err != nil {
		return err
	}

	c.logger.Info("Factor published",
		zap.String("key", factor.Key),
		zap.Int("version", factor.Version),
		zap.Float64("valor", factor.Valor))
	return nil
}

func validate(factor *models.Factor) error {
	factor.Key = strings.TrimSpace(factor.Key)
	if factor.Key == "" {
		return fmt.Errorf("factor key is required: %w", apperr.ErrValidation)
	}
	if !validCategorias[factor.Categoria] {
		return fmt.Errorf("unknown factor categoria %q: %w", factor.Categoria, apperr.ErrValidation)
	}
	if factor.Valor <= 0 {
		return fmt.Errorf("factor valor must be positive: %w", apperr.ErrValidation)
	}
	if factor.UnidadEntrada == "" || factor.UnidadSalida == "" {
		return fmt.Errorf("factor unidades are required: %w", apperr.ErrValidation)
	}
	if factor.VigenciaDesde.IsZero() {
		return fmt.Errorf("factor vigencia_desde is required: %w", apperr.ErrValidation)
	}
	if factor.VigenciaHasta != nil && factor.VigenciaHasta.Before(factor.VigenciaDesde) {
		return fmt.Errorf("factor vigencia window is inverted: %w", apperr.ErrValidation)
	}
	return nil
}
