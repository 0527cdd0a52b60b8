package financiamiento

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/testutil"
)

// buildEntries creates total entries with the given taxonomy counts; the
// first entry carries the full asset debit and liability credit.
func buildEntries(total, verdes, transicion int, activos, pasivos float64) []*models.AsientoVerde {
	entries := make([]*models.AsientoVerde, 0, total)
	for i := 0; i < total; i++ {
		a := &models.AsientoVerde{Estado: models.AsientoEstadoConfirmado}
		switch {
		case i < verdes:
			a.TaxonomiaClasificacion = models.TaxonomiaVerde
		case i < verdes+transicion:
			a.TaxonomiaClasificacion = models.TaxonomiaTransicion
		default:
			a.TaxonomiaClasificacion = models.TaxonomiaNoVerde
		}
		if i == 0 {
			a.DebeCuenta = models.CuentaPrefijoActivoAmbiental + ".1"
			a.DebeMonto = activos
			a.HaberCuenta = models.CuentaPrefijoPasivoAmbiental + ".1"
			a.HaberMonto = pasivos
		}
		entries = append(entries, a)
	}
	return entries
}

func TestCompute_ReferenceExample(t *testing.T) {
	// 10 entries, 4 verde, 2 transicion, activos 500000, pasivos 1000000:
	// tmas floor(0.5*40)=20, inversion floor(0.5*20)=10,
	// volumen floor(0.2*20)=4, base 10, total 44.
	score := Compute(buildEntries(10, 4, 2, 500000, 1000000))

	assert.Equal(t, 44, score.Score)
	assert.Equal(t, "Transición", score.Nivel)
	assert.Equal(t, productosTransicion, score.Productos)
	assert.Equal(t, Componentes{TMAS: 20, Inversion: 10, Volumen: 4, Base: 10}, score.Metricas.Componentes)
	assert.Equal(t, 0.5, score.Metricas.RatioTMASVerde)
}

func TestCompute_EmptyEntrySetIsTerminalCase(t *testing.T) {
	score := Compute(nil)

	assert.Equal(t, 0, score.Score)
	assert.Equal(t, "Sin datos", score.Nivel)
	assert.NotNil(t, score.Productos)
	assert.Empty(t, score.Productos)
	assert.Equal(t, "Sin asientos verdes para evaluar", score.Metricas.Nota)
}

func TestCompute_ZeroLiabilityMeansZeroInvestmentScore(t *testing.T) {
	score := Compute(buildEntries(10, 0, 0, 500000, 0))
	assert.Equal(t, 0, score.Metricas.Componentes.Inversion)
}

func TestCompute_MonotonicInGreenRatio(t *testing.T) {
	prev := -1
	for verdes := 0; verdes <= 20; verdes++ {
		score := Compute(buildEntries(20, verdes, 0, 0, 0))
		assert.GreaterOrEqual(t, score.Score, prev,
			"score must not decrease as the green ratio grows (verdes=%d)", verdes)
		assert.GreaterOrEqual(t, score.Score, 0)
		assert.LessOrEqual(t, score.Score, 100)
		prev = score.Score
	}
}

func TestCompute_ComponentsAreCapped(t *testing.T) {
	// Investment ratio far above 1 still yields at most 20 points, and the
	// total never exceeds 100.
	score := Compute(buildEntries(100, 100, 0, 10000000, 1000))

	assert.Equal(t, 20, score.Metricas.Componentes.Inversion)
	assert.Equal(t, 40, score.Metricas.Componentes.TMAS)
	assert.Equal(t, 20, score.Metricas.Componentes.Volumen)
	assert.Equal(t, 90, score.Score)
	assert.LessOrEqual(t, score.Score, 100)
	assert.Equal(t, "Excelente", score.Nivel)
	assert.Equal(t, productosExcelente, score.Productos)
}

func TestCompute_TierThresholds(t *testing.T) {
	tests := []struct {
		score     int
		wantNivel string
	}{
		{100, "Excelente"},
		{80, "Excelente"},
		{79, "Bueno"},
		{60, "Bueno"},
		{59, "Transición"},
		{40, "Transición"},
		{39, "Inicial"},
		{0, "Inicial"},
	}
	for _, tt := range tests {
		nivel, productos := tier(tt.score)
		assert.Equal(t, tt.wantNivel, nivel, "score %d", tt.score)
		assert.NotEmpty(t, productos)
	}
}

func TestCalculator_Score_OnlyConfirmedEntriesCount(t *testing.T) {
	db := testutil.NewTestDB(t)
	logger := zap.NewNop()
	entity := testutil.CreateTestEntity(t, db)
	asientoRepo := repository.NewAsientoRepository(db.DB, logger)

	insert := func(estado, taxonomia string) {
		require.NoError(t, db.WithTransaction(func(tx *sql.Tx) error {
			return asientoRepo.Create(tx, &models.AsientoVerde{
				EntityID:               entity.ID,
				Fecha:                  testutil.Date(2026, time.April, 1),
				Tipo:                   "consumo_energia",
				Categoria:              "energia",
				Descripcion:            "x",
				CantidadFisica:         1,
				UnidadFisica:           "kWh",
				TaxonomiaClasificacion: taxonomia,
				Estado:                 estado,
			})
		}))
	}
	insert(models.AsientoEstadoConfirmado, models.TaxonomiaVerde)
	insert(models.AsientoEstadoAnulado, models.TaxonomiaVerde)

	calc := NewCalculator(repository.NewEntityRepository(db.DB, logger), asientoRepo, logger)
	score, err := calc.Score(entity.ID, "2026-04")
	require.NoError(t, err)

	assert.Equal(t, 1, score.Metricas.TotalAsientos)
	assert.Equal(t, entity.RazonSocial, score.RazonSocial)
	// floor(1.0*40) + 0 + floor(0.02*20) + 10
	assert.Equal(t, 50, score.Score)
}
