package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kontax/green-ledger/internal/ai"
	"github.com/kontax/green-ledger/internal/apperr"
)

// LibroVerde handles POST /api/v1/ai/libro-verde
func (h *Handlers) LibroVerde(c *gin.Context) {
	var input ai.LibroVerdeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, fmt.Errorf("invalid payload: %v: %w", err, apperr.ErrValidation))
		return
	}

	resultado, err := h.agent.LibroVerde(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resultado": resultado})
}

// ValorizarESG handles POST /api/v1/valorizador/esg (multipart PDF upload)
func (h *Handlers) ValorizarESG(c *gin.Context) {
	pdf, ok := h.readPDFUpload(c)
	if !ok {
		return
	}

	result, err := h.valorizador.ValorizarESG(c.Request.Context(), pdf)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalizarBoletin handles POST /api/v1/valorizador/boletin (multipart PDF upload)
func (h *Handlers) AnalizarBoletin(c *gin.Context) {
	pdf, ok := h.readPDFUpload(c)
	if !ok {
		return
	}

	result, err := h.valorizador.AnalizarBoletin(c.Request.Context(), pdf)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) readPDFUpload(c *gin.Context) ([]byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, fmt.Errorf("file is required: %w", apperr.ErrValidation))
		return nil, false
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		h.respondError(c, fmt.Errorf("el archivo debe ser un PDF: %w", apperr.ErrValidation))
		return nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return content, true
}
