package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
)

// ListFactores handles GET /api/v1/factores
func (h *Handlers) ListFactores(c *gin.Context) {
	filter := repository.FactorFilter{
		Categoria: c.Query("categoria"),
		Limit:     intQuery(c, "limit", 100),
		Offset:    intQuery(c, "offset", 0),
	}
	if at, ok := dateQuery(c, "vigente_at"); ok {
		filter.VigenteAt = &at
	}

	factors, err := h.factores.List(filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": factors})
}

// FactorCategorias handles GET /api/v1/factores/categorias
func (h *Handlers) FactorCategorias(c *gin.Context) {
	categorias, err := h.factores.Categorias()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categorias": categorias})
}

// LookupFactor handles GET /api/v1/factores/:key. Without an `at` query
// parameter the latest version wins; with one, the version valid at that
// date.
func (h *Handlers) LookupFactor(c *gin.Context) {
	key := c.Param("key")

	var factor *models.Factor
	var err error
	if at, ok := dateQuery(c, "at"); ok {
		factor, err = h.factores.Lookup(key, at)
	} else {
		factor, err = h.factores.LookupLatest(key)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, factor)
}

type publishFactorRequest struct {
	Key           string  `json:"key" binding:"required"`
	Categoria     string  `json:"categoria" binding:"required"`
	UnidadEntrada string  `json:"unidad_entrada" binding:"required"`
	UnidadSalida  string  `json:"unidad_salida" binding:"required"`
	Valor         float64 `json:"valor" binding:"required"`
	FuenteOficial string  `json:"fuente_oficial"`
	VigenciaDesde string  `json:"vigencia_desde" binding:"required"` // YYYY-MM-DD
	VigenciaHasta string  `json:"vigencia_hasta"`
}

// PublishFactor handles POST /api/v1/factores (admin only). Factors are
// versioned, never edited in place.
func (h *Handlers) PublishFactor(c *gin.Context) {
	var req publishFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}

	desde, err := time.Parse("2006-01-02", req.VigenciaDesde)
	if err != nil {
		h.respondError(c, fmt.Errorf("invalid vigencia_desde: %w", apperr.ErrValidation))
		return
	}

	factor := &models.Factor{
		Key:           req.Key,
		Categoria:     req.Categoria,
		UnidadEntrada: req.UnidadEntrada,
		UnidadSalida:  req.UnidadSalida,
		Valor:         req.Valor,
		FuenteOficial: req.FuenteOficial,
		VigenciaDesde: desde,
	}
	if req.VigenciaHasta != "" {
		hasta, err := time.Parse("2006-01-02", req.VigenciaHasta)
		if err != nil {
			h.respondError(c, fmt.Errorf("invalid vigencia_hasta: %w", apperr.ErrValidation))
			return
		}
		factor.VigenciaHasta = &hasta
	}

	if err := h.factores.Publish(factor); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, factor)
}
