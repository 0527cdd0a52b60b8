package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/asientos"
	"github.com/kontax/green-ledger/internal/auth"
	"github.com/kontax/green-ledger/internal/repository"
)

// CreateAsiento handles POST /api/v1/asientos
func (h *Handlers) CreateAsiento(c *gin.Context) {
	var input asientos.CreateManualInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}
	if !h.authorizeEntity(c, input.EntityID) {
		return
	}

	claims, _ := auth.FromContext(c)
	asiento, err := h.asientos.CreateManual(input, claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, asiento)
}

// ListAsientos handles GET /api/v1/asientos
func (h *Handlers) ListAsientos(c *gin.Context) {
	entityID := h.resolveEntityID(c)
	if entityID == "" {
		return
	}

	filter := repository.AsientoFilter{
		EntityID:  entityID,
		Periodo:   c.Query("periodo"),
		Categoria: c.Query("categoria"),
		Tipo:      c.Query("tipo"),
		Estado:    c.Query("estado"),
		Limit:     intQuery(c, "limit", 50),
		Offset:    intQuery(c, "offset", 0),
	}
	if desde, ok := dateQuery(c, "fecha_desde"); ok {
		filter.FechaDesde = &desde
	}
	if hasta, ok := dateQuery(c, "fecha_hasta"); ok {
		filter.FechaHasta = &hasta
	}

	items, total, err := h.asientos.List(filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// AsientoStats handles GET /api/v1/asientos/stats
func (h *Handlers) AsientoStats(c *gin.Context) {
	entityID := h.resolveEntityID(c)
	if entityID == "" {
		return
	}

	stats, err := h.asientos.Stats(entityID, c.Query("periodo"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetAsiento handles GET /api/v1/asientos/:id
func (h *Handlers) GetAsiento(c *gin.Context) {
	asiento, err := h.asientos.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorizeEntity(c, asiento.EntityID) {
		return
	}
	c.JSON(http.StatusOK, asiento)
}

// AnularAsiento handles POST /api/v1/asientos/:id/anular. Asientos are
// never deleted, only voided.
func (h *Handlers) AnularAsiento(c *gin.Context) {
	asiento, err := h.asientos.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorizeEntity(c, asiento.EntityID) {
		return
	}

	if err := h.asientos.Anular(asiento.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"estado": "anulado"})
}

// resolveEntityID picks the entity for list/stat queries: the entity_id
// query parameter when present (ownership enforced), otherwise the caller's
// own entity. Writes the error response and returns "" when unresolvable.
func (h *Handlers) resolveEntityID(c *gin.Context) string {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return ""
	}

	entityID := c.Query("entity_id")
	if entityID == "" {
		if claims.EntityID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entity_id is required"})
			return ""
		}
		return *claims.EntityID
	}

	if !auth.CanAccessEntity(claims, entityID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "entity not accessible"})
		return ""
	}
	return entityID
}

func dateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
