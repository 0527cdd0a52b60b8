package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
)

type entityRequest struct {
	RUT            string `json:"rut" binding:"required"`
	RazonSocial    string `json:"razon_social" binding:"required"`
	NombreFantasia string `json:"nombre_fantasia"`
	Giro           string `json:"giro"`
	Direccion      string `json:"direccion"`
	Comuna         string `json:"comuna"`
	Region         string `json:"region"`
	Sector         string `json:"sector"`
	Tamanio        string `json:"tamanio"`
}

func (r entityRequest) apply(entity *models.Entity) {
	entity.RUT = r.RUT
	entity.RazonSocial = r.RazonSocial
	entity.NombreFantasia = r.NombreFantasia
	entity.Giro = r.Giro
	entity.Direccion = r.Direccion
	entity.Comuna = r.Comuna
	entity.Region = r.Region
	entity.Sector = r.Sector
	entity.Tamanio = r.Tamanio
}

// CreateEntity handles POST /api/v1/entities (admin only)
func (h *Handlers) CreateEntity(c *gin.Context) {
	var req entityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}

	entity := &models.Entity{Estado: models.EntityEstadoActivo}
	req.apply(entity)

	if err := h.entities.Create(entity); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entity)
}

// ListEntities handles GET /api/v1/entities
func (h *Handlers) ListEntities(c *gin.Context) {
	filter := repository.EntityFilter{
		Sector: c.Query("sector"),
		Estado: c.Query("estado"),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}

	entities, err := h.entities.List(filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entities})
}

// GetEntity handles GET /api/v1/entities/:id
func (h *Handlers) GetEntity(c *gin.Context) {
	id := c.Param("id")
	if !h.authorizeEntity(c, id) {
		return
	}

	entity, err := h.entities.GetByID(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

// UpdateEntity handles PUT /api/v1/entities/:id (admin only)
func (h *Handlers) UpdateEntity(c *gin.Context) {
	entity, err := h.entities.GetByID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req entityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}
	req.apply(entity)

	if err := h.entities.Update(entity); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

// DeleteEntity handles DELETE /api/v1/entities/:id (admin only)
func (h *Handlers) DeleteEntity(c *gin.Context) {
	if err := h.entities.Delete(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type siiCredentialsRequest struct {
	SIIRut      string `json:"sii_rut" binding:"required"`
	SIIPassword string `json:"sii_password" binding:"required"`
}

// ConfigureSIICredentials handles PUT /api/v1/entities/:id/sii-credentials.
// The password is stored encrypted and never returned.
func (h *Handlers) ConfigureSIICredentials(c *gin.Context) {
	id := c.Param("id")
	if !h.authorizeEntity(c, id) {
		return
	}

	var req siiCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}

	entity, err := h.entities.GetByID(id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	encrypted, err := h.cipher.Encrypt(req.SIIPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}

	entity.SIIRut = req.SIIRut
	entity.SIIPasswordEncrypted = encrypted
	entity.SIIConfigurado = true

	if err := h.entities.Update(entity); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sii_configurado": true})
}
