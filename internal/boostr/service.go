package boostr

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
)

// factorDieselKgPorLitro is the HuellaChile MMA diesel B5 factor used as the
// second estimation method alongside the Boostr certified figure.
const factorDieselKgPorLitro = 2.68

// Service resolves vehicles cache-first and computes trip emissions
type Service struct {
	client    *Client
	vehiculos *repository.VehiculoRepository
	logger    *zap.Logger
}

// NewService creates a new boostr service
func NewService(client *Client, vehiculos *repository.VehiculoRepository, logger *zap.Logger) *Service {
	return &Service{
		client:    client,
		vehiculos: vehiculos,
		logger:    logger,
	}
}

// Vehiculo looks a plate up, serving from the local cache when possible. The
// upstream is consulted at most once per plate. A non-nil entityID is
// attached to the cached row on first sight.
func (s *Service) Vehiculo(ctx context.Context, patente string, entityID *string) (*models.Vehiculo, error) {
	patente = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(patente), "-", ""))

	cached, err := s.vehiculos.GetByPatente(patente)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		s.logger.Debug("Vehicle served from cache", zap.String("patente", patente))
		return cached, nil
	}

	info, err := s.client.LookupByPlate(ctx, patente)
	if err != nil {
		return nil, err
	}

	vehiculo := &models.Vehiculo{
		EntityID:        entityID,
		Patente:         patente,
		Marca:           info.Brand,
		Modelo:          info.Model,
		Ano:             info.Year,
		TipoCombustible: info.FuelType,
		RendimientoKmL:  info.FuelEfficiency.CombinedKmPerLiter,
		FactorEmision:   info.CO2GramsPerKm,
	}
	if err := s.vehiculos.Create(vehiculo); err != nil {
		return nil, err
	}
	return vehiculo, nil
}

// ViajeEmisiones is the trip emission estimate, averaging the Boostr
// certified figure with the MMA diesel factor method.
type ViajeEmisiones struct {
	Vehiculo       *models.Vehiculo `json:"vehiculo"`
	DistanciaKm    float64          `json:"distancia_km"`
	ConsumoLitros  float64          `json:"consumo_litros"`
	CO2Kg          float64          `json:"co2_kg"`
	CO2Ton         float64          `json:"co2_ton"`
	MetodoBoostrKg float64          `json:"metodo_boostr_kg"`
	MetodoMMAKg    float64          `json:"metodo_mma_kg"`
}

// Vehiculos lists the cached vehiculos of an entity.
func (s *Service) Vehiculos(entityID string) ([]*models.Vehiculo, error) {
	return s.vehiculos.ListByEntity(entityID)
}

// EmisionesViaje estimates the emissions of a trip of distanciaKm.
func (s *Service) EmisionesViaje(ctx context.Context, patente string, distanciaKm float64) (*ViajeEmisiones, error) {
	vehiculo, err := s.Vehiculo(ctx, patente, nil)
	if err != nil {
		return nil, err
	}

	var consumoLitros float64
	if vehiculo.RendimientoKmL > 0 {
		consumoLitros = distanciaKm / vehiculo.RendimientoKmL
	}

	boostrKg := vehiculo.FactorEmision * distanciaKm / 1000
	mmaKg := consumoLitros * factorDieselKgPorLitro
	co2Kg := (boostrKg + mmaKg) / 2

	return &ViajeEmisiones{
		Vehiculo:       vehiculo,
		DistanciaKm:    distanciaKm,
		ConsumoLitros:  round2(consumoLitros),
		CO2Kg:          round3(co2Kg),
		CO2Ton:         round4(co2Kg / 1000),
		MetodoBoostrKg: round3(boostrKg),
		MetodoMMAKg:    round3(mmaKg),
	}, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
