package models

import "time"

// Evidence is a source document backing one or more asientos verdes.
// HashSHA256 is the content digest used for duplicate detection; the pair
// (EntityID, Source, SourceID) is the idempotency key for synced documents.
type Evidence struct {
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`

	Tipo        string    `json:"tipo"`   // factura_sii, guia_despacho, certificado, medicion
	Source      string    `json:"source"` // SII, manual, sensor, boostr, erp
	SourceID    string    `json:"source_id,omitempty"`
	Fecha       time.Time `json:"fecha"`
	Descripcion string    `json:"descripcion,omitempty"`

	HashSHA256   string `json:"hash_sha256"`
	MetadataJSON string `json:"metadata_json,omitempty"`

	Estado    string    `json:"estado"` // activo, anulado
	CreatedAt time.Time `json:"created_at"`
}

// Evidence source constants
const (
	EvidenceSourceSII    = "SII"
	EvidenceSourceManual = "manual"
	EvidenceSourceBoostr = "boostr"
)
