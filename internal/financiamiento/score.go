// Package financiamiento computes the proprietary Green Score: a 0-100
// eligibility rating over an entity's confirmed ledger entries, mapped to a
// tier and a list of eligible financing products.
package financiamiento

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
)

// Component weights. The four components sum to 90 plus the 10-point base.
const (
	maxTMAS      = 40
	maxInversion = 20
	maxVolumen   = 20
	baseScore    = 10

	// volumenCobertura is the entry count at which coverage saturates.
	volumenCobertura = 50
)

// Componentes breaks the score down for the metrics payload.
type Componentes struct {
	TMAS      int `json:"tmas"`
	Inversion int `json:"inversion"`
	Volumen   int `json:"volumen"`
	Base      int `json:"base"`
}

// Metricas exposes the inputs behind a computed score.
type Metricas struct {
	TotalAsientos      int         `json:"total_asientos"`
	AsientosVerdes     int         `json:"asientos_verdes_tmas"`
	AsientosTransicion int         `json:"asientos_transicion_tmas"`
	RatioTMASVerde     float64     `json:"ratio_tmas_verde"`
	ActivosCLP         float64     `json:"activos_ambientales_clp"`
	PasivosCLP         float64     `json:"pasivos_ambientales_clp"`
	Componentes        Componentes `json:"componentes_score"`
	Nota               string      `json:"nota,omitempty"`
}

// GreenScore is the full score payload for one entity.
type GreenScore struct {
	EntityID    string   `json:"entity_id"`
	RazonSocial string   `json:"razon_social"`
	Score       int      `json:"green_score"`
	Nivel       string   `json:"nivel"`
	Productos   []string `json:"productos_elegibles"`
	Metricas    Metricas `json:"metricas"`
}

// Tier product catalogs. Fixed lists per tier.
var (
	productosExcelente = []string{
		"Bonos verdes",
		"Tasa preferencial verde",
		"Credito inversion sostenible",
		"Leasing verde",
	}
	productosBueno = []string{
		"Credito verde",
		"Leasing verde",
		"Linea capital trabajo verde",
	}
	productosTransicion = []string{
		"Financiamiento mejora ambiental",
		"Credito transicion energetica",
	}
	productosInicial = []string{
		"Plan asesoria ambiental",
		"Diagnostico gratuito",
	}
)

// Calculator computes the Green Score
type Calculator struct {
	entities *repository.EntityRepository
	asientos *repository.AsientoRepository
	logger   *zap.Logger
}

// NewCalculator creates a new Green Score calculator
func NewCalculator(entities *repository.EntityRepository, asientos *repository.AsientoRepository, logger *zap.Logger) *Calculator {
	return &Calculator{
		entities: entities,
		asientos: asientos,
		logger:   logger,
	}
}

// Score computes the Green Score for an entity, optionally restricted to one
// periodo. Only confirmed asientos count.
func (c *Calculator) Score(entityID, periodo string) (*GreenScore, error) {
	entity, err := c.entities.GetByID(entityID)
	if err != nil {
		return nil, err
	}

	asientos, err := c.asientos.List(repository.AsientoFilter{
		EntityID: entityID,
		Periodo:  periodo,
		Estado:   models.AsientoEstadoConfirmado,
	})
	if err != nil {
		return nil, err
	}

	score := Compute(asientos)
	score.EntityID = entity.ID
	score.RazonSocial = entity.RazonSocial

	c.logger.Info("Green Score computed",
		zap.String("entity_id", entityID),
		zap.Int("score", score.Score),
		zap.String("nivel", score.Nivel))
	return score, nil
}

// Compute is the pure scoring function. An empty entry set is a defined
// terminal case: score 0, nivel "Sin datos", no products.
func Compute(asientos []*models.AsientoVerde) *GreenScore {
	total := len(asientos)
	if total == 0 {
		return &GreenScore{
			Score:     0,
			Nivel:     "Sin datos",
			Productos: []string{},
			Metricas:  Metricas{Nota: "Sin asientos verdes para evaluar"},
		}
	}

	var verdes, transicion int
	var activos, pasivos float64
	for _, a := range asientos {
		switch a.TaxonomiaClasificacion {
		case models.TaxonomiaVerde:
			verdes++
		case models.TaxonomiaTransicion:
			transicion++
		}
		if strings.HasPrefix(a.DebeCuenta, models.CuentaPrefijoActivoAmbiental) {
			activos += a.DebeMonto
		}
		if strings.HasPrefix(a.HaberCuenta, models.CuentaPrefijoPasivoAmbiental) {
			pasivos += a.HaberMonto
		}
	}

	// All component truncations use floor semantics.
	tmasRatio := (float64(verdes) + 0.5*float64(transicion)) / float64(total)
	scoreTMAS := capInt(int(tmasRatio*maxTMAS), maxTMAS)

	var inversionRatio float64
	if pasivos > 0 {
		inversionRatio = activos / pasivos
	}
	scoreInversion := capInt(int(inversionRatio*maxInversion), maxInversion)

	cobertura := float64(total) / volumenCobertura
	if cobertura > 1 {
		cobertura = 1
	}
	scoreVolumen := capInt(int(cobertura*maxVolumen), maxVolumen)

	totalScore := capInt(scoreTMAS+scoreInversion+scoreVolumen+baseScore, 100)
	nivel, productos := tier(totalScore)

	return &GreenScore{
		Score:     totalScore,
		Nivel:     nivel,
		Productos: productos,
		Metricas: Metricas{
			TotalAsientos:      total,
			AsientosVerdes:     verdes,
			AsientosTransicion: transicion,
			RatioTMASVerde:     round3(tmasRatio),
			ActivosCLP:         round2(activos),
			PasivosCLP:         round2(pasivos),
			Componentes: Componentes{
				TMAS:      scoreTMAS,
				Inversion: scoreInversion,
				Volumen:   scoreVolumen,
				Base:      baseScore,
			},
		},
	}
}

func tier(score int) (string, []string) {
	switch {
	case score >= 80:
		return "Excelente", productosExcelente
	case score >= 60:
		return "Bueno", productosBueno
	case score >= 40:
		return "Transición", productosTransicion
	default:
		return "Inicial", productosInicial
	}
}

func capInt(v, max int) int {
	if v > max {
		return max
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
