// Package asientos creates and manages green ledger entries.
package asientos

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/clasificador"
	"github.com/kontax/green-ledger/internal/factores"
	"github.com/kontax/green-ledger/internal/models"
)

// Generator turns classified items into ledger entries. It resolves factors
// before any transaction opens; persistence belongs to the caller.
type Generator struct {
	catalog *factores.Catalog
	logger  *zap.Logger
}

// NewGenerator creates a new ledger entry generator
func NewGenerator(catalog *factores.Catalog, logger *zap.Logger) *Generator {
	return &Generator{
		catalog: catalog,
		logger:  logger,
	}
}

// Generar builds an unpersisted asiento from a classified item. The factor is
// resolved at the transaction date; a missing factor is a ValidationFailure
// carrying the item identity so batch callers can record it and continue.
func (g *Generator) Generar(entityID string, evidenciaID *string, item clasificador.Item, fecha time.Time, creadoPor string) (*models.AsientoVerde, error) {
	asiento := &models.AsientoVerde{
		EntityID:               entityID,
		Fecha:                  fecha,
		Periodo:                models.Periodo(fecha),
		Tipo:                   item.Tipo,
		Categoria:              item.Categoria,
		Subcategoria:           item.Subcategoria,
		Descripcion:            item.Descripcion,
		CantidadFisica:         item.CantidadFisica,
		UnidadFisica:           item.UnidadFisica,
		AlcanceGEI:             item.AlcanceGEI,
		DebeCuenta:             item.DebeCuenta,
		DebeNombre:             item.DebeNombre,
		DebeMonto:              round2(item.DebeMonto),
		HaberCuenta:            item.HaberCuenta,
		HaberNombre:            item.HaberNombre,
		HaberMonto:             round2(item.HaberMonto),
		EvidenciaID:            evidenciaID,
		TaxonomiaClasificacion: item.Taxonomia,
		TaxonomiaCriterio:      item.TaxonomiaCriterio,
		Estado:                 models.AsientoEstadoConfirmado,
		CreadoPor:              creadoPor,
	}

	if item.FactorKey == "" {
		return asiento, nil
	}

	factor, err := g.catalog.Lookup(item.FactorKey, fecha)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("item %q: no factor %q valid at %s: %w",
				item.Descripcion, item.FactorKey, fecha.Format("2006-01-02"), apperr.ErrValidation)
		}
		return nil, err
	}

	g.aplicarFactor(asiento, factor)
	return asiento, nil
}

// aplicarFactor computes the impact and routes it to the field the factor's
// categoria maps to. The stored value is final; entries are never recomputed
// when a newer factor version appears.
func (g *Generator) aplicarFactor(asiento *models.AsientoVerde, factor *models.Factor) {
	asiento.FactorID = &factor.ID
	asiento.FactorValor = &factor.Valor
	asiento.FactorUnidad = fmt.Sprintf("%s/%s", factor.UnidadSalida, factor.UnidadEntrada)

	impact := round3(asiento.CantidadFisica * factor.Valor)

	switch factor.Categoria {
	case models.FactorCategoriaAgua:
		asiento.ConsumoAguaM3 = &impact
	case models.FactorCategoriaResiduo:
		asiento.ResiduosKg = &impact
	default:
		asiento.EmisionesTCO2e = &impact
	}

	g.logger.Debug("Factor applied",
		zap.String("factor_key", factor.Key),
		zap.Int("factor_version", factor.Version),
		zap.Float64("cantidad", asiento.CantidadFisica),
		zap.Float64("impacto", impact))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
