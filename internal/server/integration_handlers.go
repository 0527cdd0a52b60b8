package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/worker"
)

type siiSyncRequest struct {
	EntityID string `json:"entity_id" binding:"required"`
	Desde    string `json:"desde"` // YYYY-MM-DD, defaults to 30 days back
	Hasta    string `json:"hasta"` // YYYY-MM-DD, defaults to today
}

// TriggerSIISync handles POST /api/v1/integrations/sii/sync. The sync runs
// in the background; the caller polls the runs endpoint for progress.
func (h *Handlers) TriggerSIISync(c *gin.Context) {
	var req siiSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}
	if !h.authorizeEntity(c, req.EntityID) {
		return
	}

	hasta := time.Now().UTC()
	if parsed, err := time.Parse("2006-01-02", req.Hasta); err == nil {
		hasta = parsed
	}
	desde := hasta.AddDate(0, 0, -30)
	if parsed, err := time.Parse("2006-01-02", req.Desde); err == nil {
		desde = parsed
	}
	if desde.After(hasta) {
		h.respondError(c, fmt.Errorf("desde is after hasta: %w", apperr.ErrValidation))
		return
	}

	// Reject unconfigured entities before queueing so the caller gets an
	// immediate 400 instead of a failed run.
	entity, err := h.entities.GetByID(req.EntityID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !entity.SIIConfigurado {
		h.respondError(c, fmt.Errorf("entity has no SII credentials: %w", apperr.ErrValidation))
		return
	}

	if err := h.syncQueue.Enqueue(worker.SyncTask{
		EntityID: req.EntityID,
		Desde:    desde,
		Hasta:    hasta,
	}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"queued": true,
		"desde":  desde.Format("2006-01-02"),
		"hasta":  hasta.Format("2006-01-02"),
	})
}

// ListSIIRuns handles GET /api/v1/integrations/sii/runs
func (h *Handlers) ListSIIRuns(c *gin.Context) {
	entityID := h.resolveEntityID(c)
	if entityID == "" {
		return
	}

	runs, err := h.syncer.Runs(entityID, intQuery(c, "limit", 20))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// GetVehiculo handles GET /api/v1/integrations/boostr/vehiculo/:patente
func (h *Handlers) GetVehiculo(c *gin.Context) {
	var entityID *string
	if id := c.Query("entity_id"); id != "" {
		if !h.authorizeEntity(c, id) {
			return
		}
		entityID = &id
	}

	vehiculo, err := h.boostr.Vehiculo(c.Request.Context(), c.Param("patente"), entityID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehiculo)
}

// ListVehiculos handles GET /api/v1/integrations/boostr/vehiculos/:entity_id
func (h *Handlers) ListVehiculos(c *gin.Context) {
	entityID := c.Param("entity_id")
	if !h.authorizeEntity(c, entityID) {
		return
	}

	vehiculos, err := h.boostr.Vehiculos(entityID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": vehiculos})
}

type viajeRequest struct {
	Patente     string  `json:"patente" binding:"required"`
	DistanciaKm float64 `json:"distancia_km" binding:"required,gt=0"`
}

// ViajeEmisiones handles POST /api/v1/integrations/boostr/viaje
func (h *Handlers) ViajeEmisiones(c *gin.Context) {
	var req viajeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}

	viaje, err := h.boostr.EmisionesViaje(c.Request.Context(), req.Patente, req.DistanciaKm)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viaje)
}
