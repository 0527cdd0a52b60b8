package asientos

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/clasificador"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/pkg/database"
)

// Service exposes ledger entry operations to the API layer
type Service struct {
	db        *database.DB
	asientos  *repository.AsientoRepository
	entities  *repository.EntityRepository
	generator *Generator
	logger    *zap.Logger
}

// NewService creates a new asientos service
func NewService(db *database.DB, asientos *repository.AsientoRepository, entities *repository.EntityRepository, generator *Generator, logger *zap.Logger) *Service {
	return &Service{
		db:        db,
		asientos:  asientos,
		entities:  entities,
		generator: generator,
		logger:    logger,
	}
}

// CreateManualInput is a manually entered ledger entry. The same factor
// derivation as synced entries applies when FactorKey is set.
type CreateManualInput struct {
	EntityID       string   `json:"entity_id" binding:"required"`
	Fecha          string   `json:"fecha" binding:"required"` // YYYY-MM-DD
	Tipo           string   `json:"tipo" binding:"required"`
	Categoria      string   `json:"categoria" binding:"required"`
	Subcategoria   string   `json:"subcategoria"`
	Descripcion    string   `json:"descripcion" binding:"required"`
	CantidadFisica float64  `json:"cantidad_fisica"`
	UnidadFisica   string   `json:"unidad_fisica"`
	FactorKey      string   `json:"factor_key"`
	AlcanceGEI     *int     `json:"alcance_gei"`
	DebeCuenta     string   `json:"debe_cuenta"`
	DebeNombre     string   `json:"debe_nombre"`
	DebeMonto      float64  `json:"debe_monto"`
	HaberCuenta    string   `json:"haber_cuenta"`
	HaberNombre    string   `json:"haber_nombre"`
	HaberMonto     float64  `json:"haber_monto"`
	Taxonomia      string   `json:"taxonomia_clasificacion"`
	Criterio       string   `json:"taxonomia_criterio"`
	EvidenciaID    *string  `json:"evidencia_id"`
}

// CreateManual validates and persists a manually entered asiento.
func (s *Service) CreateManual(input CreateManualInput, creadoPor string) (*models.AsientoVerde, error) {
	fecha, err := time.Parse("2006-01-02", input.Fecha)
	if err != nil {
		return nil, fmt.Errorf("invalid fecha %q, expected YYYY-MM-DD: %w", input.Fecha, apperr.ErrValidation)
	}
	if input.CantidadFisica < 0 {
		return nil, fmt.Errorf("cantidad_fisica must not be negative: %w", apperr.ErrValidation)
	}
	if _, err := s.entities.GetByID(input.EntityID); err != nil {
		return nil, err
	}

	item := clasificador.Item{
		Tipo:              input.Tipo,
		Categoria:         input.Categoria,
		Subcategoria:      input.Subcategoria,
		Descripcion:       input.Descripcion,
		CantidadFisica:    input.CantidadFisica,
		UnidadFisica:      input.UnidadFisica,
		FactorKey:         input.FactorKey,
		AlcanceGEI:        input.AlcanceGEI,
		Taxonomia:         input.Taxonomia,
		TaxonomiaCriterio: input.Criterio,
		DebeCuenta:        input.DebeCuenta,
		DebeNombre:        input.DebeNombre,
		DebeMonto:         input.DebeMonto,
		HaberCuenta:       input.HaberCuenta,
		HaberNombre:       input.HaberNombre,
		HaberMonto:        input.HaberMonto,
	}

	asiento, err := s.generator.Generar(input.EntityID, input.EvidenciaID, item, fecha, creadoPor)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		return s.asientos.Create(tx, asiento)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Asiento created manually",
		zap.String("asiento_id", asiento.ID),
		zap.String("entity_id", asiento.EntityID),
		zap.String("categoria", asiento.Categoria))
	return asiento, nil
}

// Get retrieves one asiento
func (s *Service) Get(id string) (*models.AsientoVerde, error) {
	return s.asientos.GetByID(id)
}

// List retrieves asientos with the total count for pagination
func (s *Service) List(filter repository.AsientoFilter) ([]*models.AsientoVerde, int, error) {
	asientos, err := s.asientos.List(filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.asientos.Count(filter)
	if err != nil {
		return nil, 0, err
	}
	return asientos, total, nil
}

// Anular soft-invalidates an asiento
func (s *Service) Anular(id string) error {
	if err := s.asientos.Anular(id); err != nil {
		return err
	}
	s.logger.Info("Asiento anulado", zap.String("asiento_id", id))
	return nil
}

// PeriodStats is the per-period stats payload
type PeriodStats struct {
	Periodo      string                      `json:"periodo"`
	Totales      *repository.AsientoStats    `json:"totales"`
	PorCategoria []repository.CategoriaStats `json:"por_categoria"`
	PorAlcance   []repository.AlcanceStats   `json:"por_alcance"`
}

// Stats aggregates a period's confirmed asientos
func (s *Service) Stats(entityID, periodo string) (*PeriodStats, error) {
	totales, err := s.asientos.Stats(entityID, periodo)
	if err != nil {
		return nil, err
	}
	porCategoria, err := s.asientos.StatsPorCategoria(entityID, periodo)
	if err != nil {
		return nil, err
	}
	porAlcance, err := s.asientos.StatsPorAlcance(entityID, periodo)
	if err != nil {
		return nil, err
	}
	return &PeriodStats{
		Periodo:      periodo,
		Totales:      totales,
		PorCategoria: porCategoria,
		PorAlcance:   porAlcance,
	}, nil
}
