package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GreenScore handles GET /api/v1/financiamiento/green-score/:entity_id
func (h *Handlers) GreenScore(c *gin.Context) {
	entityID := c.Param("entity_id")
	if !h.authorizeEntity(c, entityID) {
		return
	}

	score, err := h.score.Score(entityID, c.Query("periodo"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}
