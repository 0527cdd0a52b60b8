package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
)

// EvidenceRepository handles evidence database operations
type EvidenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEvidenceRepository creates a new evidence repository
func NewEvidenceRepository(db *sql.DB, logger *zap.Logger) *EvidenceRepository {
	return &EvidenceRepository{
		db:     db,
		logger: logger,
	}
}

const evidenceColumns = `id, entity_id, tipo, source, source_id, fecha, descripcion,
	hash_sha256, metadata_json, estado, created_at`

// Create inserts an evidence row. A digest or (entity, source, source_id)
// collision returns apperr.ErrDuplicate; duplicates are never merged.
func (r *EvidenceRepository) Create(tx *sql.Tx, evidence *models.Evidence) error {
	if evidence.ID == "" {
		evidence.ID = uuid.NewString()
	}
	if evidence.Estado == "" {
		evidence.Estado = "activo"
	}
	if evidence.MetadataJSON == "" {
		evidence.MetadataJSON = "{}"
	}

	query := `
		INSERT INTO evidences (
			id, entity_id, tipo, source, source_id, fecha, descripcion,
			hash_sha256, metadata_json, estado
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := pick(r.db, tx).Exec(query,
		evidence.ID,
		evidence.EntityID,
		evidence.Tipo,
		evidence.Source,
		evidence.SourceID,
		evidence.Fecha,
		evidence.Descripcion,
		evidence.HashSHA256,
		evidence.MetadataJSON,
		evidence.Estado,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("evidence hash %s: %w", shortHash(evidence.HashSHA256), apperr.ErrDuplicate)
		}
		r.logger.Error("Failed to create evidence", zap.Error(err))
		return fmt.Errorf("failed to create evidence: %w", err)
	}
	return nil
}

// GetByID retrieves an evidence row by ID
func (r *EvidenceRepository) GetByID(id string) (*models.Evidence, error) {
	query := fmt.Sprintf("SELECT %s FROM evidences WHERE id = ?", evidenceColumns)
	evidence, err := scanEvidence(r.db.QueryRow(query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("evidence %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get evidence", zap.String("evidence_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}
	return evidence, nil
}

// GetByHash retrieves an evidence row by its content digest. Returns
// (nil, nil) when no row matches so callers can distinguish "absent" from
// storage failure.
func (r *EvidenceRepository) GetByHash(hash string) (*models.Evidence, error) {
	query := fmt.Sprintf("SELECT %s FROM evidences WHERE hash_sha256 = ?", evidenceColumns)
	evidence, err := scanEvidence(r.db.QueryRow(query, hash).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence by hash: %w", err)
	}
	return evidence, nil
}

// FindBySource probes the sync idempotency key. Returns (nil, nil) when the
// document has not been ingested yet.
func (r *EvidenceRepository) FindBySource(entityID, source, sourceID string) (*models.Evidence, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM evidences WHERE entity_id = ? AND source = ? AND source_id = ?",
		evidenceColumns,
	)
	evidence, err := scanEvidence(r.db.QueryRow(query, entityID, source, sourceID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find evidence by source: %w", err)
	}
	return evidence, nil
}

// EvidenceFilter narrows List results
type EvidenceFilter struct {
	EntityID string
	Tipo     string
	Source   string
	Limit    int
	Offset   int
}

// List retrieves evidence rows matching the filter, newest first.
func (r *EvidenceRepository) List(filter EvidenceFilter) ([]*models.Evidence, error) {
	query := fmt.Sprintf("SELECT %s FROM evidences WHERE 1=1", evidenceColumns)
	var args []interface{}

	if filter.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	if filter.Tipo != "" {
		query += " AND tipo = ?"
		args = append(args, filter.Tipo)
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list evidences", zap.Error(err))
		return nil, fmt.Errorf("failed to list evidences: %w", err)
	}
	defer rows.Close()

	var evidences []*models.Evidence
	for rows.Next() {
		evidence, err := scanEvidence(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		evidences = append(evidences, evidence)
	}
	return evidences, rows.Err()
}

func scanEvidence(scan func(dest ...interface{}) error) (*models.Evidence, error) {
	var evidence models.Evidence
	err := scan(
		&evidence.ID,
		&evidence.EntityID,
		&evidence.Tipo,
		&evidence.Source,
		&evidence.SourceID,
		&evidence.Fecha,
		&evidence.Descripcion,
		&evidence.HashSHA256,
		&evidence.MetadataJSON,
		&evidence.Estado,
		&evidence.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &evidence, nil
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
