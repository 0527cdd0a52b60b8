package sii

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/asientos"
	"github.com/kontax/green-ledger/internal/clasificador"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/pkg/database"
)

// CredentialDecrypter recovers the stored SII password.
type CredentialDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Syncer drives the SII ingestion pipeline for one entity and date range:
// authenticate, list per DTE type, and per document download, parse, create
// evidence and generate asientos in one transaction. Per-document failures
// are recorded and never abort sibling documents; an authentication failure
// aborts the run.
type Syncer struct {
	db           *database.DB
	client       *Client
	clasificador *clasificador.Clasificador
	generator    *asientos.Generator
	entities     *repository.EntityRepository
	evidences    *repository.EvidenceRepository
	asientos     *repository.AsientoRepository
	syncRuns     *repository.SyncRunRepository
	decrypter    CredentialDecrypter
	tiposDTE     []int
	logger       *zap.Logger
}

// SyncerDeps bundles the syncer's collaborators.
type SyncerDeps struct {
	DB           *database.DB
	Client       *Client
	Clasificador *clasificador.Clasificador
	Generator    *asientos.Generator
	Entities     *repository.EntityRepository
	Evidences    *repository.EvidenceRepository
	Asientos     *repository.AsientoRepository
	SyncRuns     *repository.SyncRunRepository
	Decrypter    CredentialDecrypter
	TiposDTE     []int
}

// NewSyncer creates a new SII syncer
func NewSyncer(deps SyncerDeps, logger *zap.Logger) *Syncer {
	return &Syncer{
		db:           deps.DB,
		client:       deps.Client,
		clasificador: deps.Clasificador,
		generator:    deps.Generator,
		entities:     deps.Entities,
		evidences:    deps.Evidences,
		asientos:     deps.Asientos,
		syncRuns:     deps.SyncRuns,
		decrypter:    deps.Decrypter,
		tiposDTE:     deps.TiposDTE,
		logger:       logger,
	}
}

// Sync runs the pipeline and returns the persisted run record.
func (s *Syncer) Sync(ctx context.Context, entityID string, desde, hasta time.Time) (*models.SyncRun, error) {
	entity, err := s.entities.GetByID(entityID)
	if err != nil {
		return nil, err
	}
	if !entity.SIIConfigurado {
		return nil, fmt.Errorf("entity %s has no SII credentials configured: %w", entityID, apperr.ErrValidation)
	}

	run := &models.SyncRun{
		EntityID:   entityID,
		FechaDesde: desde,
		FechaHasta: hasta,
	}
	if err := s.syncRuns.Create(run); err != nil {
		return nil, err
	}

	stats, err := s.run(ctx, entity, desde, hasta)
	if err != nil {
		s.finish(run, models.SyncEstadoError, stats)
		return run, err
	}

	s.finish(run, models.SyncEstadoCompleto, stats)

	if err := s.entities.UpdateUltimaSync(entityID, time.Now().UTC()); err != nil {
		s.logger.Error("Failed to update ultima_sync_sii",
			zap.String("entity_id", entityID), zap.Error(err))
	}

	s.logger.Info("SII sync completed",
		zap.String("entity_id", entityID),
		zap.Int("documentos", stats.DocumentosProcesados),
		zap.Int("asientos", stats.AsientosGenerados),
		zap.Float64("emisiones_tco2e", stats.EmisionesTotalesTCO2))
	return run, nil
}

func (s *Syncer) run(ctx context.Context, entity *models.Entity, desde, hasta time.Time) (*models.SyncStats, error) {
	stats := &models.SyncStats{
		PorTipoDTE:   make(map[string]int),
		PorCategoria: make(map[string]int),
		Errores:      []models.SyncError{},
		Warnings:     []models.SyncWarning{},
	}

	password, err := s.decrypter.Decrypt(entity.SIIPasswordEncrypted)
	if err != nil {
		return stats, fmt.Errorf("failed to decrypt SII credentials: %w", err)
	}

	token, err := s.client.Authenticate(ctx, entity.SIIRut, password)
	if err != nil {
		return stats, err
	}

	for _, tipoDTE := range s.tiposDTE {
		documentos, err := s.client.ListReceivedDocuments(ctx, token, tipoDTE, desde, hasta)
		if err != nil {
			s.logger.Error("Failed to list documents",
				zap.Int("tipo_dte", tipoDTE), zap.Error(err))
			stats.Errores = append(stats.Errores, models.SyncError{
				TipoDTE: tipoDTE,
				Error:   err.Error(),
			})
			continue
		}
		stats.PorTipoDTE[strconv.Itoa(tipoDTE)] = len(documentos)

		for _, doc := range documentos {
			if err := s.processDocument(ctx, token, entity, doc, stats); err != nil {
				s.logger.Error("Failed to process document",
					zap.Int("tipo_dte", doc.Tipo),
					zap.Int("folio", doc.Folio),
					zap.Error(err))
				stats.Errores = append(stats.Errores, models.SyncError{
					TipoDTE: doc.Tipo,
					Folio:   doc.Folio,
					Error:   err.Error(),
				})
				continue
			}
			stats.DocumentosProcesados++
		}
	}

	return stats, nil
}

// processDocument handles one document: skip if already ingested, otherwise
// download, parse, classify and persist evidence plus asientos as one unit.
func (s *Syncer) processDocument(ctx context.Context, token string, entity *models.Entity, doc DocumentoResumen, stats *models.SyncStats) error {
	sourceID := fmt.Sprintf("%d-%d", doc.Tipo, doc.Folio)

	existing, err := s.evidences.FindBySource(entity.ID, models.EvidenceSourceSII, sourceID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.logger.Debug("DTE already processed, skipping",
			zap.String("source_id", sourceID))
		return nil
	}

	content, err := s.client.DownloadXML(ctx, token, doc.Tipo, doc.Folio)
	if err != nil {
		return err
	}

	parsed, err := ParseDTE(content)
	if err != nil {
		return err
	}

	metadata, _ := json.Marshal(parsed)
	evidence := &models.Evidence{
		EntityID:     entity.ID,
		Tipo:         fmt.Sprintf("factura_sii_tipo_%d", doc.Tipo),
		Source:       models.EvidenceSourceSII,
		SourceID:     sourceID,
		Fecha:        parsed.FechaEmis,
		Descripcion:  fmt.Sprintf("DTE tipo %d folio %d", doc.Tipo, doc.Folio),
		HashSHA256:   HashContent(content),
		MetadataJSON: string(metadata),
	}

	items := s.clasificador.Clasificar(clasificador.Documento{
		TipoDTE:     parsed.TipoDTE,
		Folio:       parsed.Folio,
		RUTEmisor:   parsed.RUTEmisor,
		RazonSocial: parsed.RazonSocial,
		Fecha:       parsed.FechaEmis.Format("2006-01-02"),
		MontoNeto:   parsed.MontoNeto,
		MontoTotal:  parsed.MontoTotal,
	})

	// Factors are resolved before the transaction opens. A missing factor
	// drops the item with a warning, never the document.
	generated := make([]*models.AsientoVerde, 0, len(items))
	for _, item := range items {
		asiento, err := s.generator.Generar(entity.ID, nil, item, parsed.FechaEmis, "sii_sync")
		if err != nil {
			stats.Warnings = append(stats.Warnings, models.SyncWarning{
				DTE:   sourceID,
				Item:  item.Descripcion,
				Error: err.Error(),
			})
			continue
		}
		generated = append(generated, asiento)
	}

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.evidences.Create(tx, evidence); err != nil {
			return err
		}
		for _, asiento := range generated {
			asiento.EvidenciaID = &evidence.ID
			if err := s.asientos.Create(tx, asiento); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, asiento := range generated {
		stats.AsientosGenerados++
		if asiento.EmisionesTCO2e != nil {
			stats.EmisionesTotalesTCO2 += *asiento.EmisionesTCO2e
		}
		stats.PorCategoria[asiento.Categoria]++
	}
	return nil
}

func (s *Syncer) finish(run *models.SyncRun, estado string, stats *models.SyncStats) {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		statsJSON = []byte("{}")
	}
	run.Estado = estado
	run.StatsJSON = string(statsJSON)
	if err := s.syncRuns.Finish(run.ID, estado, string(statsJSON)); err != nil {
		s.logger.Error("Failed to persist sync run", zap.String("sync_run_id", run.ID), zap.Error(err))
	}
}

// Runs lists an entity's recent sync runs.
func (s *Syncer) Runs(entityID string, limit int) ([]*models.SyncRun, error) {
	return s.syncRuns.ListByEntity(entityID, limit)
}
