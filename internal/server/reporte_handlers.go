package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/auth"
	"github.com/kontax/green-ledger/internal/repository"
)

type generateReporteRequest struct {
	EntityID string `json:"entity_id" binding:"required"`
	Tipo     string `json:"tipo" binding:"required"`
	Periodo  string `json:"periodo" binding:"required"` // YYYY-MM
}

// GenerateReporte handles POST /api/v1/reportes/generate. The report row is
// created in estado generando and completed in the background.
func (h *Handlers) GenerateReporte(c *gin.Context) {
	var req generateReporteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}
	if !h.authorizeEntity(c, req.EntityID) {
		return
	}

	claims, _ := auth.FromContext(c)
	reporte, err := h.reportes.Generate(req.EntityID, req.Tipo, req.Periodo, claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, reporte)
}

// ListReportes handles GET /api/v1/reportes
func (h *Handlers) ListReportes(c *gin.Context) {
	entityID := h.resolveEntityID(c)
	if entityID == "" {
		return
	}

	reportes, err := h.reportes.List(repository.ReporteFilter{
		EntityID: entityID,
		Tipo:     c.Query("tipo"),
		Periodo:  c.Query("periodo"),
		Estado:   c.Query("estado"),
		Limit:    intQuery(c, "limit", 50),
		Offset:   intQuery(c, "offset", 0),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": reportes})
}

// GetReporte handles GET /api/v1/reportes/:id
func (h *Handlers) GetReporte(c *gin.Context) {
	reporte, err := h.reportes.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorizeEntity(c, reporte.EntityID) {
		return
	}
	c.JSON(http.StatusOK, reporte)
}

// DownloadReporteExcel handles GET /api/v1/reportes/:id/excel
func (h *Handlers) DownloadReporteExcel(c *gin.Context) {
	reporte, err := h.reportes.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.authorizeEntity(c, reporte.EntityID) {
		return
	}

	file, err := h.excel.Export(reporte.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("reporte_%s_%s.xlsx", reporte.Tipo, reporte.Periodo)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := file.Write(c.Writer); err != nil {
		h.logger.Error("Failed to stream excel report", zap.Error(err))
	}
}
