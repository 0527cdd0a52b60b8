package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/asientos"
	"github.com/kontax/green-ledger/internal/auth"
	"github.com/kontax/green-ledger/internal/boostr"
	"github.com/kontax/green-ledger/internal/clasificador"
	"github.com/kontax/green-ledger/internal/config"
	"github.com/kontax/green-ledger/internal/factores"
	"github.com/kontax/green-ledger/internal/financiamiento"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/reportes"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/sii"
	"github.com/kontax/green-ledger/internal/testutil"
	"github.com/kontax/green-ledger/internal/worker"
	"github.com/kontax/green-ledger/pkg/database"
)

type testEnv struct {
	router   *gin.Engine
	db       *database.DB
	authSvc  *auth.Service
	entities *repository.EntityRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)

	entityRepo := repository.NewEntityRepository(db.DB, logger)
	asientoRepo := repository.NewAsientoRepository(db.DB, logger)
	factorRepo := repository.NewFactorRepository(db.DB, logger)
	evidenceRepo := repository.NewEvidenceRepository(db.DB, logger)
	reporteRepo := repository.NewReporteRepository(db.DB, logger)
	syncRunRepo := repository.NewSyncRunRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	vehiculoRepo := repository.NewVehiculoRepository(db.DB, logger)

	tokens := auth.NewTokenManager("secret-for-tests", time.Hour)
	authSvc := auth.NewService(userRepo, tokens, logger)
	cipher, err := auth.NewCipher("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	catalog := factores.NewCatalog(db, factorRepo, logger)
	generator := asientos.NewGenerator(catalog, logger)
	asientoSvc := asientos.NewService(db, asientoRepo, entityRepo, generator, logger)

	reporteSvc := reportes.NewService(reporteRepo, asientoRepo, logger)
	excel := reportes.NewExcelExporter(reporteSvc, logger)

	score := financiamiento.NewCalculator(entityRepo, asientoRepo, logger)

	// External integrations are wired against unreachable endpoints; the
	// routes that would call out are not exercised here.
	siiClient := sii.NewClient("http://127.0.0.1:1", time.Second, logger)
	syncer := sii.NewSyncer(sii.SyncerDeps{
		DB:           db,
		Client:       siiClient,
		Clasificador: clasificador.New(logger),
		Generator:    generator,
		Entities:     entityRepo,
		Evidences:    evidenceRepo,
		Asientos:     asientoRepo,
		SyncRuns:     syncRunRepo,
		Decrypter:    cipher,
		TiposDTE:     []int{33, 34, 52},
	}, logger)
	syncQueue := worker.NewSyncWorker(syncer, 4, logger)

	boostrSvc := boostr.NewService(
		boostr.NewClient("http://127.0.0.1:1", "test-key", time.Second, logger),
		vehiculoRepo, logger)

	handlers := NewHandlers(HandlerDeps{
		DB:        db,
		Auth:      authSvc,
		Cipher:    cipher,
		Entities:  entityRepo,
		Evidences: evidenceRepo,
		Asientos:  asientoSvc,
		Factores:  catalog,
		Reportes:  reporteSvc,
		Excel:     excel,
		Score:     score,
		Syncer:    syncer,
		SyncQueue: syncQueue,
		Boostr:    boostrSvc,
	}, logger)

	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, handlers, tokens, logger)
	return &testEnv{
		router:   srv.Router(),
		db:       db,
		authSvc:  authSvc,
		entities: entityRepo,
	}
}

func (e *testEnv) registerUser(t *testing.T, rol string, entityID *string) (string, *models.User) {
	t.Helper()
	user, err := e.authSvc.Register(auth.RegisterInput{
		Email:    fmt.Sprintf("%s-%d@test.cl", rol, time.Now().UnixNano()),
		Password: "clave-segura",
		Rol:      rol,
		EntityID: entityID,
	})
	require.NoError(t, err)

	token, _, err := e.authSvc.Login(user.Email, "clave-segura")
	require.NoError(t, err)
	return token, user
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthAndAuthGate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/asientos", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/asientos", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	_, user := env.registerUser(t, models.RolAdmin, nil)

	rec := env.request(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    user.Email,
		"password": "clave-segura",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	rec = env.request(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.Email, decodeBody(t, rec)["email"])

	rec = env.request(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    user.Email,
		"password": "clave-mala",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEntityCRUDAndRoleGates(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.registerUser(t, models.RolAdmin, nil)

	rec := env.request(t, http.MethodPost, "/api/v1/entities", adminToken, gin.H{
		"rut":          "76.123.456-7",
		"razon_social": "Ferreteria Sustentable Ltda",
		"sector":       "comercio",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	entityID, _ := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, entityID)

	// Duplicate RUT conflicts.
	rec = env.request(t, http.MethodPost, "/api/v1/entities", adminToken, gin.H{
		"rut":          "76.123.456-7",
		"razon_social": "Otra Empresa",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A contador of another entity cannot create entities nor read this one.
	otherEntity := testutil.CreateTestEntity(t, env.db)
	contadorToken, _ := env.registerUser(t, models.RolContador, &otherEntity.ID)

	rec = env.request(t, http.MethodPost, "/api/v1/entities", contadorToken, gin.H{
		"rut":          "77.000.111-2",
		"razon_social": "No Autorizada",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/entities/"+entityID, contadorToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/entities/"+otherEntity.ID, contadorToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodDelete, "/api/v1/entities/"+entityID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/entities/"+entityID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAsientoLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	entity := testutil.CreateTestEntity(t, env.db)
	token, _ := env.registerUser(t, models.RolContador, &entity.ID)

	rec := env.request(t, http.MethodPost, "/api/v1/asientos", token, gin.H{
		"entity_id":       entity.ID,
		"fecha":           "2026-03-15",
		"tipo":            "costo_ambiental",
		"categoria":       "energia",
		"descripcion":     "Factura ENEL marzo",
		"cantidad_fisica": 1000,
		"unidad_fisica":   "kWh",
		"factor_key":      "electricidad_sen",
		"alcance_gei":     2,
		"debe_cuenta":     "5190.1",
		"debe_nombre":     "Costo energia",
		"debe_monto":      150000,
		"haber_cuenta":    "2630.1",
		"haber_nombre":    "Provision proveedores ambientales",
		"haber_monto":     150000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	asientoID, _ := created["id"].(string)
	require.NotEmpty(t, asientoID)
	assert.Equal(t, "2026-03", created["periodo"])
	assert.InDelta(t, 0.39, created["emisiones_tco2e"], 0.0005)

	rec = env.request(t, http.MethodGet, "/api/v1/asientos?periodo=2026-03", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	assert.EqualValues(t, 1, list["total"])

	rec = env.request(t, http.MethodGet, "/api/v1/asientos/stats?periodo=2026-03", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/asientos/"+asientoID+"/anular", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/asientos?periodo=2026-03&estado=confirmado", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["total"])

	// Another entity's contador cannot see or void this asiento.
	other := testutil.CreateTestEntity(t, env.db)
	otherToken, _ := env.registerUser(t, models.RolContador, &other.ID)
	rec = env.request(t, http.MethodGet, "/api/v1/asientos/"+asientoID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFactorEndpoints(t *testing.T) {
	env := newTestEnv(t)
	entity := testutil.CreateTestEntity(t, env.db)
	token, _ := env.registerUser(t, models.RolContador, &entity.ID)
	adminToken, _ := env.registerUser(t, models.RolAdmin, nil)

	rec := env.request(t, http.MethodGet, "/api/v1/factores/electricidad_sen", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.0003896, decodeBody(t, rec)["valor"], 1e-9)

	rec = env.request(t, http.MethodGet, "/api/v1/factores/no_existe", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Publishing is admin only and creates a new version.
	payload := gin.H{
		"key":            "electricidad_sen",
		"categoria":      "energia",
		"unidad_entrada": "kWh",
		"unidad_salida":  "tCO2e",
		"valor":          0.0004,
		"vigencia_desde": "2026-07-01",
	}
	rec = env.request(t, http.MethodPost, "/api/v1/factores", token, payload)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/factores", adminToken, payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 2, decodeBody(t, rec)["version"])

	rec = env.request(t, http.MethodGet, "/api/v1/factores/categorias", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEvidenciaUploadAndDedup(t *testing.T) {
	env := newTestEnv(t)
	entity := testutil.CreateTestEntity(t, env.db)
	token, _ := env.registerUser(t, models.RolContador, &entity.ID)

	upload := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		require.NoError(t, writer.WriteField("entity_id", entity.ID))
		require.NoError(t, writer.WriteField("tipo", "certificado"))
		require.NoError(t, writer.WriteField("fecha", "2026-03-15"))
		part, err := writer.CreateFormFile("file", "certificado.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("contenido del certificado ambiental"))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/evidencias", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	hash, _ := body["hash_sha256"].(string)
	require.Len(t, hash, 64)

	// Same content again: conflict, never merged.
	rec = upload()
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/evidencias/verify/"+hash, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["verificado"])

	rec = env.request(t, http.MethodGet, "/api/v1/evidencias/verify/"+string(bytes.Repeat([]byte("0"), 64)), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReporteGenerationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	entity := testutil.CreateTestEntity(t, env.db)
	token, _ := env.registerUser(t, models.RolContador, &entity.ID)

	// Empty period is rejected up front.
	rec := env.request(t, http.MethodPost, "/api/v1/reportes/generate", token, gin.H{
		"entity_id": entity.ID,
		"tipo":      "huella_carbono",
		"periodo":   "2026-03",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Seed one asiento, then generation runs inline (no dispatcher in tests).
	rec = env.request(t, http.MethodPost, "/api/v1/asientos", token, gin.H{
		"entity_id":       entity.ID,
		"fecha":           "2026-03-10",
		"tipo":            "costo_ambiental",
		"categoria":       "energia",
		"descripcion":     "Factura CGE",
		"cantidad_fisica": 500,
		"unidad_fisica":   "kWh",
		"factor_key":      "electricidad_sen",
		"alcance_gei":     2,
		"debe_cuenta":     "5190.1",
		"debe_monto":      75000,
		"haber_cuenta":    "2630.1",
		"haber_monto":     75000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.request(t, http.MethodPost, "/api/v1/reportes/generate", token, gin.H{
		"entity_id": entity.ID,
		"tipo":      "huella_carbono",
		"periodo":   "2026-03",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	reporteID, _ := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, reporteID)

	rec = env.request(t, http.MethodGet, "/api/v1/reportes/"+reporteID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReporteEstadoCompleto, decodeBody(t, rec)["estado"])

	rec = env.request(t, http.MethodGet, "/api/v1/reportes/"+reporteID+"/excel", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "huella_carbono")
	assert.NotZero(t, rec.Body.Len())
}

func TestGreenScoreOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	entity := testutil.CreateTestEntity(t, env.db)
	token, _ := env.registerUser(t, models.RolContador, &entity.ID)

	rec := env.request(t, http.MethodGet, "/api/v1/financiamiento/green-score/"+entity.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 0, body["green_score"])
	assert.Equal(t, "Sin datos", body["nivel"])

	other := testutil.CreateTestEntity(t, env.db)
	rec = env.request(t, http.MethodGet, "/api/v1/financiamiento/green-score/"+other.ID, token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
