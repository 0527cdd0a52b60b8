package asientos

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/clasificador"
	"github.com/kontax/green-ledger/internal/factores"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/testutil"
	"github.com/kontax/green-ledger/pkg/database"
)

type fixture struct {
	db        *database.DB
	catalog   *factores.Catalog
	generator *Generator
	asientos  *repository.AsientoRepository
	service   *Service
	entity    *models.Entity
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewTestDB(t)
	logger := zap.NewNop()

	catalog := factores.NewCatalog(db, repository.NewFactorRepository(db.DB, logger), logger)
	generator := NewGenerator(catalog, logger)
	asientoRepo := repository.NewAsientoRepository(db.DB, logger)
	entityRepo := repository.NewEntityRepository(db.DB, logger)

	return &fixture{
		db:        db,
		catalog:   catalog,
		generator: generator,
		asientos:  asientoRepo,
		service:   NewService(db, asientoRepo, entityRepo, generator, logger),
		entity:    testutil.CreateTestEntity(t, db),
	}
}

func electricidadItem(cantidad float64) clasificador.Item {
	alcance := 2
	return clasificador.Item{
		Tipo:           "consumo_energia",
		Categoria:      "energia",
		Subcategoria:   "electricidad",
		Descripcion:    "ENEL - DTE 33 folio 100",
		CantidadFisica: cantidad,
		UnidadFisica:   "kWh",
		FactorKey:      "electricidad_sen",
		AlcanceGEI:     &alcance,
		Taxonomia:      models.TaxonomiaTransicion,
		DebeCuenta:     "5190.1",
		DebeMonto:      150000,
		HaberCuenta:    "2630.1",
		HaberMonto:     150000,
	}
}

func TestGenerar_ComputesEmissionsFromFactor(t *testing.T) {
	f := newFixture(t)
	fecha := testutil.Date(2026, time.March, 10)

	asiento, err := f.generator.Generar(f.entity.ID, nil, electricidadItem(1000), fecha, "sync")
	require.NoError(t, err)

	// 1000 kWh * 0.0003896 tCO2e/kWh = 0.3896, rounded to 3 decimals.
	require.NotNil(t, asiento.EmisionesTCO2e)
	assert.InDelta(t, 0.390, *asiento.EmisionesTCO2e, 1e-9)
	assert.Nil(t, asiento.ConsumoAguaM3)
	assert.Nil(t, asiento.ResiduosKg)

	assert.Equal(t, "2026-03", asiento.Periodo)
	assert.Equal(t, models.AsientoEstadoConfirmado, asiento.Estado)
	require.NotNil(t, asiento.FactorValor)
	assert.Equal(t, "tCO2e/kWh", asiento.FactorUnidad)
	require.NotNil(t, asiento.AlcanceGEI)
	assert.Equal(t, 2, *asiento.AlcanceGEI)
}

func TestGenerar_RoundTripStoresComputedImpact(t *testing.T) {
	f := newFixture(t)
	fecha := testutil.Date(2026, time.January, 15)

	asiento, err := f.generator.Generar(f.entity.ID, nil, electricidadItem(1234), fecha, "sync")
	require.NoError(t, err)

	require.NoError(t, f.db.WithTransaction(func(tx *sql.Tx) error {
		return f.asientos.Create(tx, asiento)
	}))

	stored, err := f.asientos.GetByID(asiento.ID)
	require.NoError(t, err)

	// impact == round(Q * factor, 3), and the re-read value is the stored
	// one, never a recomputation.
	want := math.Round(*asiento.FactorValor*1234*1000) / 1000
	require.NotNil(t, stored.EmisionesTCO2e)
	assert.InDelta(t, want, *stored.EmisionesTCO2e, 1e-9)
	assert.Equal(t, *asiento.EmisionesTCO2e, *stored.EmisionesTCO2e)
	assert.Equal(t, asiento.Periodo, stored.Periodo)
}

func TestGenerar_RoutesImpactByFactorCategoria(t *testing.T) {
	f := newFixture(t)
	fecha := testutil.Date(2026, time.February, 1)

	agua := clasificador.Item{
		Tipo: "consumo_agua", Categoria: "agua", Descripcion: "ESVAL",
		CantidadFisica: 40, UnidadFisica: "m3", FactorKey: "agua_potable",
	}
	asiento, err := f.generator.Generar(f.entity.ID, nil, agua, fecha, "sync")
	require.NoError(t, err)
	require.NotNil(t, asiento.ConsumoAguaM3)
	assert.InDelta(t, 40.0, *asiento.ConsumoAguaM3, 1e-9)
	assert.Nil(t, asiento.EmisionesTCO2e)

	residuo := clasificador.Item{
		Tipo: "residuo", Categoria: "residuo", Descripcion: "KDM",
		CantidadFisica: 250, UnidadFisica: "kg", FactorKey: "residuos_relleno",
	}
	asiento, err = f.generator.Generar(f.entity.ID, nil, residuo, fecha, "sync")
	require.NoError(t, err)
	require.NotNil(t, asiento.ResiduosKg)
	assert.InDelta(t, 250.0, *asiento.ResiduosKg, 1e-9)
	assert.Nil(t, asiento.EmisionesTCO2e)
}

func TestGenerar_MissingFactorIsValidationFailure(t *testing.T) {
	f := newFixture(t)

	item := electricidadItem(100)
	item.FactorKey = "factor_inexistente"

	_, err := f.generator.Generar(f.entity.ID, nil, item, testutil.Date(2026, time.March, 1), "sync")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGenerar_NoFactorKeySkipsImpact(t *testing.T) {
	f := newFixture(t)

	item := clasificador.Item{
		Tipo: "inversion", Categoria: "inversion", Descripcion: "SOLARPACK",
		CantidadFisica: 5000000, UnidadFisica: "CLP",
		Taxonomia: models.TaxonomiaVerde,
		DebeCuenta: "1595.1", DebeMonto: 5000000,
		HaberCuenta: "2630.1", HaberMonto: 5000000,
	}
	asiento, err := f.generator.Generar(f.entity.ID, nil, item, testutil.Date(2026, time.March, 1), "sync")
	require.NoError(t, err)
	assert.Nil(t, asiento.EmisionesTCO2e)
	assert.Nil(t, asiento.FactorID)
	assert.Equal(t, models.TaxonomiaVerde, asiento.TaxonomiaClasificacion)
}

func TestService_CreateManualAndAnular(t *testing.T) {
	f := newFixture(t)

	asiento, err := f.service.CreateManual(CreateManualInput{
		EntityID:       f.entity.ID,
		Fecha:          "2026-04-12",
		Tipo:           "consumo_energia",
		Categoria:      "energia",
		Descripcion:    "Consumo medido planta",
		CantidadFisica: 2000,
		UnidadFisica:   "kWh",
		FactorKey:      "electricidad_sen",
		DebeCuenta:     "5190.1",
		DebeMonto:      300000.456,
		HaberCuenta:    "2630.1",
		HaberMonto:     300000.456,
	}, "contador@empresa.cl")
	require.NoError(t, err)

	assert.Equal(t, "2026-04", asiento.Periodo)
	assert.Equal(t, 300000.46, asiento.DebeMonto)
	require.NotNil(t, asiento.EmisionesTCO2e)
	assert.InDelta(t, 0.779, *asiento.EmisionesTCO2e, 1e-9)

	require.NoError(t, f.service.Anular(asiento.ID))
	stored, err := f.service.Get(asiento.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AsientoEstadoAnulado, stored.Estado)

	// Anulled entries leave the confirmed stats.
	stats, err := f.service.Stats(f.entity.ID, "2026-04")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Totales.TotalAsientos)
}

func TestService_CreateManualValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateManual(CreateManualInput{
		EntityID: f.entity.ID, Fecha: "12-04-2026",
		Tipo: "x", Categoria: "energia", Descripcion: "d",
	}, "u")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.service.CreateManual(CreateManualInput{
		EntityID: "no-such-entity", Fecha: "2026-04-12",
		Tipo: "x", Categoria: "energia", Descripcion: "d",
	}, "u")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_StatsAggregatesPeriod(t *testing.T) {
	f := newFixture(t)

	for _, cantidad := range []float64{1000, 500} {
		_, err := f.service.CreateManual(CreateManualInput{
			EntityID:       f.entity.ID,
			Fecha:          "2026-05-02",
			Tipo:           "consumo_energia",
			Categoria:      "energia",
			Descripcion:    "Consumo",
			CantidadFisica: cantidad,
			UnidadFisica:   "kWh",
			FactorKey:      "electricidad_sen",
			AlcanceGEI:     intPtr(2),
			DebeMonto:      cantidad * 150,
			HaberMonto:     cantidad * 150,
		}, "u")
		require.NoError(t, err)
	}

	stats, err := f.service.Stats(f.entity.ID, "2026-05")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Totales.TotalAsientos)
	// 0.390 + 0.195
	assert.InDelta(t, 0.585, stats.Totales.EmisionesTCO2e, 1e-9)
	require.Len(t, stats.PorCategoria, 1)
	assert.Equal(t, "energia", stats.PorCategoria[0].Categoria)
	require.Len(t, stats.PorAlcance, 1)
	assert.Equal(t, 2, stats.PorAlcance[0].Alcance)
}

func intPtr(v int) *int { return &v }
