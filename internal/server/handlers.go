package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/ai"
	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/asientos"
	"github.com/kontax/green-ledger/internal/auth"
	"github.com/kontax/green-ledger/internal/boostr"
	"github.com/kontax/green-ledger/internal/factores"
	"github.com/kontax/green-ledger/internal/financiamiento"
	"github.com/kontax/green-ledger/internal/reportes"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/sii"
	"github.com/kontax/green-ledger/internal/valorizador"
	"github.com/kontax/green-ledger/internal/worker"
	"github.com/kontax/green-ledger/pkg/database"
)

// Handlers bundles every dependency the HTTP layer needs.
type Handlers struct {
	db          *database.DB
	auth        *auth.Service
	cipher      *auth.Cipher
	entities    *repository.EntityRepository
	evidences   *repository.EvidenceRepository
	asientos    *asientos.Service
	factores    *factores.Catalog
	reportes    *reportes.Service
	excel       *reportes.ExcelExporter
	score       *financiamiento.Calculator
	syncer      *sii.Syncer
	syncQueue   *worker.SyncWorker
	boostr      *boostr.Service
	agent       *ai.Agent
	valorizador *valorizador.Service
	logger      *zap.Logger
}

// HandlerDeps mirrors Handlers for construction.
type HandlerDeps struct {
	DB          *database.DB
	Auth        *auth.Service
	Cipher      *auth.Cipher
	Entities    *repository.EntityRepository
	Evidences   *repository.EvidenceRepository
	Asientos    *asientos.Service
	Factores    *factores.Catalog
	Reportes    *reportes.Service
	Excel       *reportes.ExcelExporter
	Score       *financiamiento.Calculator
	Syncer      *sii.Syncer
	SyncQueue   *worker.SyncWorker
	Boostr      *boostr.Service
	Agent       *ai.Agent
	Valorizador *valorizador.Service
}

// NewHandlers creates the HTTP handler set
func NewHandlers(deps HandlerDeps, logger *zap.Logger) *Handlers {
	return &Handlers{
		db:          deps.DB,
		auth:        deps.Auth,
		cipher:      deps.Cipher,
		entities:    deps.Entities,
		evidences:   deps.Evidences,
		asientos:    deps.Asientos,
		factores:    deps.Factores,
		reportes:    deps.Reportes,
		excel:       deps.Excel,
		score:       deps.Score,
		syncer:      deps.Syncer,
		syncQueue:   deps.SyncQueue,
		boostr:      deps.Boostr,
		agent:       deps.Agent,
		valorizador: deps.Valorizador,
		logger:      logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// respondError classifies an error and writes the JSON error body. Internal
// errors are logged and never leak their message to the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// intQuery reads an integer query parameter with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// authorizeEntity enforces entity ownership for the caller. It writes the
// error response itself and reports whether the handler may continue.
func (h *Handlers) authorizeEntity(c *gin.Context, entityID string) bool {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return false
	}
	if !auth.CanAccessEntity(claims, entityID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "entity not accessible"})
		return false
	}
	return true
}
