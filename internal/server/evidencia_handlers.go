package server

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/sii"
)

// CreateEvidencia handles POST /api/v1/evidencias. The upload is a
// multipart form: the file content is digested and only the digest is
// persisted. A repeated digest is a conflict, never a merge.
func (h *Handlers) CreateEvidencia(c *gin.Context) {
	entityID := c.PostForm("entity_id")
	if entityID == "" {
		h.respondError(c, fmt.Errorf("entity_id is required: %w", apperr.ErrValidation))
		return
	}
	if !h.authorizeEntity(c, entityID) {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, fmt.Errorf("file is required: %w", apperr.ErrValidation))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	fecha := time.Now().UTC()
	if parsed, err := time.Parse("2006-01-02", c.PostForm("fecha")); err == nil {
		fecha = parsed
	}

	hash := sii.HashContent(content)
	sourceID := c.PostForm("source_id")
	if sourceID == "" {
		// The (entity, source, source_id) idempotency key must stay unique
		// across manual uploads, so the digest doubles as the source id.
		sourceID = hash
	}

	evidence := &models.Evidence{
		EntityID:    entityID,
		Tipo:        c.DefaultPostForm("tipo", "certificado"),
		Source:      c.DefaultPostForm("source", models.EvidenceSourceManual),
		SourceID:    sourceID,
		Fecha:       fecha,
		Descripcion: c.PostForm("descripcion"),
		HashSHA256:  hash,
	}

	err = h.db.WithTransaction(func(tx *sql.Tx) error {
		return h.evidences.Create(tx, evidence)
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, evidence)
}

// ListEvidencias handles GET /api/v1/evidencias
func (h *Handlers) ListEvidencias(c *gin.Context) {
	entityID := h.resolveEntityID(c)
	if entityID == "" {
		return
	}

	evidences, err := h.evidences.List(repository.EvidenceFilter{
		EntityID: entityID,
		Tipo:     c.Query("tipo"),
		Source:   c.Query("source"),
		Limit:    intQuery(c, "limit", 50),
		Offset:   intQuery(c, "offset", 0),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": evidences})
}

// GetEvidencia handles GET /api/v1/evidencias/:id
func (h *Handlers) GetEvidencia(c *gin.Context) {
	evidence, err := h.evidences.GetByID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorizeEntity(c, evidence.EntityID) {
		return
	}
	c.JSON(http.StatusOK, evidence)
}

// VerifyEvidencia handles GET /api/v1/evidencias/verify/:hash. It answers
// whether a document with that digest is on record.
func (h *Handlers) VerifyEvidencia(c *gin.Context) {
	evidence, err := h.evidences.GetByHash(c.Param("hash"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if evidence == nil {
		c.JSON(http.StatusNotFound, gin.H{"verificado": false})
		return
	}
	if !h.authorizeEntity(c, evidence.EntityID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"verificado": true, "evidencia": evidence})
}
