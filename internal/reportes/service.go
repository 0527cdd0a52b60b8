package reportes

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
)

// Dispatcher hands a created report off for background generation.
type Dispatcher interface {
	DispatchReport(reporteID string) error
}

// Service manages report lifecycle: synchronous row creation, asynchronous
// payload generation, single terminal transition.
type Service struct {
	reportes   *repository.ReporteRepository
	asientos   *repository.AsientoRepository
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewService creates a new reportes service
func NewService(reportes *repository.ReporteRepository, asientos *repository.AsientoRepository, logger *zap.Logger) *Service {
	return &Service{
		reportes: reportes,
		asientos: asientos,
		logger:   logger,
	}
}

// SetDispatcher wires the background worker in. Without one, generation runs
// inline; tests use that mode.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Generate validates the request, creates the report row in "generando" and
// dispatches payload generation. Zero entries for the period reject the
// request before any row exists.
func (s *Service) Generate(entityID, tipo, periodo, generadoPor string) (*models.Reporte, error) {
	if !models.ReporteTipoValido(tipo) {
		return nil, fmt.Errorf("tipo %q invalid, valid types: %v: %w",
			tipo, models.ReporteTiposValidos, apperr.ErrValidation)
	}

	count, err := s.asientos.Count(repository.AsientoFilter{
		EntityID: entityID,
		Periodo:  periodo,
		Estado:   models.AsientoEstadoConfirmado,
	})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("no asientos verdes for periodo %s: %w", periodo, apperr.ErrValidation)
	}

	reporte := &models.Reporte{
		EntityID:    entityID,
		Tipo:        tipo,
		Periodo:     periodo,
		GeneradoPor: generadoPor,
	}
	if err := s.reportes.Create(reporte); err != nil {
		return nil, err
	}

	s.logger.Info("Reporte created",
		zap.String("reporte_id", reporte.ID),
		zap.String("tipo", tipo),
		zap.String("periodo", periodo))

	if s.dispatcher != nil {
		if err := s.dispatcher.DispatchReport(reporte.ID); err != nil {
			return nil, err
		}
	} else if err := s.GenerateData(reporte.ID); err != nil {
		return nil, err
	}
	return reporte, nil
}

// GenerateData computes and stores the payload for a pending report. Called
// by the report worker; any failure lands as the terminal "error" state.
func (s *Service) GenerateData(reporteID string) error {
	reporte, err := s.reportes.GetByID(reporteID)
	if err != nil {
		return err
	}

	payload, buildErr := s.buildPayload(reporte)
	if buildErr != nil {
		s.logger.Error("Report generation failed",
			zap.String("reporte_id", reporteID),
			zap.Error(buildErr))
		errJSON, _ := json.Marshal(map[string]string{"error": buildErr.Error()})
		return s.reportes.SetResult(reporteID, models.ReporteEstadoError, string(errJSON))
	}

	if err := s.reportes.SetResult(reporteID, models.ReporteEstadoCompleto, payload); err != nil {
		return err
	}

	s.logger.Info("Reporte completed", zap.String("reporte_id", reporteID))
	return nil
}

func (s *Service) buildPayload(reporte *models.Reporte) (string, error) {
	asientos, err := s.asientos.List(repository.AsientoFilter{
		EntityID: reporte.EntityID,
		Periodo:  reporte.Periodo,
		Estado:   models.AsientoEstadoConfirmado,
	})
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(Build(reporte.Tipo, asientos))
	if err != nil {
		return "", fmt.Errorf("failed to marshal report payload: %w", err)
	}
	return string(data), nil
}

// Get retrieves one reporte
func (s *Service) Get(id string) (*models.Reporte, error) {
	return s.reportes.GetByID(id)
}

// List retrieves reportes matching the filter
func (s *Service) List(filter repository.ReporteFilter) ([]*models.Reporte, error) {
	return s.reportes.List(filter)
}
