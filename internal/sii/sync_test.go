package sii

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/asientos"
	"github.com/kontax/green-ledger/internal/clasificador"
	"github.com/kontax/green-ledger/internal/factores"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/testutil"
	"github.com/kontax/green-ledger/pkg/database"
)

type plainDecrypter struct{}

func (plainDecrypter) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

func dteXMLFor(tipo, folio int, razonSocial string, neto, total float64) string {
	return fmt.Sprintf(`<DTE><Documento><Encabezado>
		<IdDoc><TipoDTE>%d</TipoDTE><Folio>%d</Folio><FchEmis>2026-03-10</FchEmis></IdDoc>
		<Emisor><RUTEmisor>96800570-7</RUTEmisor><RznSoc>%s</RznSoc></Emisor>
		<Totales><MntNeto>%.0f</MntNeto><MntTotal>%.0f</MntTotal></Totales>
	</Encabezado></Documento></DTE>`, tipo, folio, razonSocial, neto, total)
}

// fakeSII serves an auth endpoint, a listing with one factura and one guía,
// and the matching XML downloads.
func fakeSII(t *testing.T) *httptest.Server {
	t.Helper()

	docs := map[int][]DocumentoResumen{
		33: {{Tipo: 33, Folio: 100, RazonSocial: "ENEL DISTRIBUCION CHILE S.A.", MontoNeto: 150000, MontoTotal: 178500}},
		52: {{Tipo: 52, Folio: 200, RazonSocial: "COMERCIAL XYZ LTDA", MontoNeto: 80000, MontoTotal: 95200}},
	}
	xmls := map[int]string{
		100: dteXMLFor(33, 100, "ENEL DISTRIBUCION CHILE S.A.", 150000, 178500),
		200: dteXMLFor(52, 200, "COMERCIAL XYZ LTDA", 80000, 95200),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/boleta.electronica/auth", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "clave-sii" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	})
	mux.HandleFunc("/boleta.electronica/v1/documentos/recibidos", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var tipo int
		fmt.Sscanf(r.URL.Query().Get("tipo"), "%d", &tipo)
		json.NewEncoder(w).Encode(map[string]interface{}{"documentos": docs[tipo]})
	})
	mux.HandleFunc("/boleta.electronica/v1/documentos/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		var folio int
		fmt.Sscanf(parts[len(parts)-2], "%d", &folio)
		xml, ok := xmls[folio]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(xml))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestSyncer(t *testing.T, baseURL string) (*Syncer, *database.DB, *models.Entity) {
	db := testutil.NewTestDB(t)
	logger := zap.NewNop()

	entity := testutil.CreateTestEntity(t, db)
	entities := repository.NewEntityRepository(db.DB, logger)
	entity.SIIConfigurado = true
	entity.SIIRut = entity.RUT
	entity.SIIPasswordEncrypted = "clave-sii"
	require.NoError(t, entities.Update(entity))

	catalog := factores.NewCatalog(db, repository.NewFactorRepository(db.DB, logger), logger)
	syncer := NewSyncer(SyncerDeps{
		DB:           db,
		Client:       NewClient(baseURL, 5*time.Second, logger),
		Clasificador: clasificador.New(logger),
		Generator:    asientos.NewGenerator(catalog, logger),
		Entities:     entities,
		Evidences:    repository.NewEvidenceRepository(db.DB, logger),
		Asientos:     repository.NewAsientoRepository(db.DB, logger),
		SyncRuns:     repository.NewSyncRunRepository(db.DB, logger),
		Decrypter:    plainDecrypter{},
		TiposDTE:     []int{33, 34, 52},
	}, logger)

	return syncer, db, entity
}

func TestSync_ProcessesDocumentsAndGeneratesAsientos(t *testing.T) {
	server := fakeSII(t)
	syncer, db, entity := newTestSyncer(t, server.URL)

	run, err := syncer.Sync(context.Background(),
		entity.ID, testutil.Date(2026, time.March, 1), testutil.Date(2026, time.March, 31))
	require.NoError(t, err)
	assert.Equal(t, models.SyncEstadoCompleto, run.Estado)

	var stats models.SyncStats
	require.NoError(t, json.Unmarshal([]byte(run.StatsJSON), &stats))
	assert.Equal(t, 2, stats.DocumentosProcesados)
	// The factura yields one energia asiento; the guía's supplier matches no
	// rule but the logistics leg still generates one.
	assert.Equal(t, 2, stats.AsientosGenerados)
	assert.Equal(t, 1, stats.PorCategoria["energia"])
	assert.Equal(t, 1, stats.PorCategoria["transporte"])
	assert.Equal(t, 1, stats.PorTipoDTE["33"])
	assert.Equal(t, 0, stats.PorTipoDTE["34"])
	assert.Equal(t, 1, stats.PorTipoDTE["52"])
	// 1000 kWh electricity plus 120 km logistics.
	assert.InDelta(t, 0.390+0.025, stats.EmisionesTotalesTCO2, 1e-9)
	assert.Empty(t, stats.Errores)
	assert.Empty(t, stats.Warnings)

	logger := zap.NewNop()
	asientoRepo := repository.NewAsientoRepository(db.DB, logger)
	stored, err := asientoRepo.List(repository.AsientoFilter{EntityID: entity.ID})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, a := range stored {
		assert.NotNil(t, a.EvidenciaID, "synced asientos link their evidence")
		assert.Equal(t, "2026-03", a.Periodo)
		assert.Equal(t, models.AsientoEstadoConfirmado, a.Estado)
	}

	// Evidence carries the idempotency key and digest.
	evidences := repository.NewEvidenceRepository(db.DB, logger)
	ev, err := evidences.FindBySource(entity.ID, models.EvidenceSourceSII, "33-100")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Len(t, ev.HashSHA256, 64)

	updated, err := repository.NewEntityRepository(db.DB, logger).GetByID(entity.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.UltimaSyncSII)
}

func TestSync_RerunIsIdempotent(t *testing.T) {
	server := fakeSII(t)
	syncer, db, entity := newTestSyncer(t, server.URL)

	desde, hasta := testutil.Date(2026, time.March, 1), testutil.Date(2026, time.March, 31)
	_, err := syncer.Sync(context.Background(), entity.ID, desde, hasta)
	require.NoError(t, err)

	second, err := syncer.Sync(context.Background(), entity.ID, desde, hasta)
	require.NoError(t, err)

	var stats models.SyncStats
	require.NoError(t, json.Unmarshal([]byte(second.StatsJSON), &stats))
	assert.Equal(t, 0, stats.AsientosGenerados, "second run must generate nothing new")

	asientoRepo := repository.NewAsientoRepository(db.DB, zap.NewNop())
	total, err := asientoRepo.Count(repository.AsientoFilter{EntityID: entity.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	runs, err := syncer.Runs(entity.ID, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSync_AuthFailureAbortsRun(t *testing.T) {
	server := fakeSII(t)
	syncer, _, entity := newTestSyncer(t, server.URL)

	entities := syncer.entities
	entity.SIIPasswordEncrypted = "clave-mala"
	require.NoError(t, entities.Update(entity))

	run, err := syncer.Sync(context.Background(),
		entity.ID, testutil.Date(2026, time.March, 1), testutil.Date(2026, time.March, 31))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Equal(t, models.SyncEstadoError, run.Estado)
}

func TestSync_RequiresConfiguredCredentials(t *testing.T) {
	server := fakeSII(t)
	syncer, db, _ := newTestSyncer(t, server.URL)

	plain := testutil.CreateTestEntity(t, db)
	_, err := syncer.Sync(context.Background(),
		plain.ID, testutil.Date(2026, time.March, 1), testutil.Date(2026, time.March, 31))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
