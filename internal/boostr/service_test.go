package boostr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/testutil"
	"github.com/kontax/green-ledger/pkg/database"
)

func newTestService(t *testing.T) (*Service, *int64, *database.DB) {
	var upstreamCalls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/car/plate/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstreamCalls, 1)
		if r.Header.Get("X-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/car/plate/ABCD12" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(VehicleInfo{
			Brand:    "Toyota",
			Model:    "Hilux",
			Year:     2022,
			FuelType: "Diesel",
			FuelEfficiency: FuelEfficiency{
				CityKmPerLiter:     11.0,
				HighwayKmPerLiter:  13.5,
				CombinedKmPerLiter: 12.0,
			},
			CO2GramsPerKm: 195,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	db := testutil.NewTestDB(t)
	logger := zap.NewNop()
	client := NewClient(server.URL, "test-key", 5*time.Second, logger)
	svc := NewService(client, repository.NewVehiculoRepository(db.DB, logger), logger)
	return svc, &upstreamCalls, db
}

func TestVehiculo_CachesAfterFirstLookup(t *testing.T) {
	svc, calls, _ := newTestService(t)

	first, err := svc.Vehiculo(context.Background(), "abcd-12", nil)
	require.NoError(t, err)
	assert.Equal(t, "ABCD12", first.Patente)
	assert.Equal(t, "Toyota", first.Marca)
	assert.Equal(t, 12.0, first.RendimientoKmL)
	assert.EqualValues(t, 1, *calls)

	second, err := svc.Vehiculo(context.Background(), "ABCD12", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, *calls, "cache hit must not consult Boostr")
}

func TestVehiculo_UnknownPlateIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Vehiculo(context.Background(), "ZZZZ99", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVehiculo_AssociatesEntityOnFirstSight(t *testing.T) {
	svc, _, db := newTestService(t)
	entity := testutil.CreateTestEntity(t, db)

	vehiculo, err := svc.Vehiculo(context.Background(), "ABCD12", &entity.ID)
	require.NoError(t, err)
	require.NotNil(t, vehiculo.EntityID)
	assert.Equal(t, entity.ID, *vehiculo.EntityID)

	listed, err := svc.Vehiculos(entity.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "ABCD12", listed[0].Patente)
}

func TestEmisionesViaje_AveragesBothMethods(t *testing.T) {
	svc, _, _ := newTestService(t)

	viaje, err := svc.EmisionesViaje(context.Background(), "ABCD12", 120)
	require.NoError(t, err)

	// Boostr: 195 g/km * 120 km = 23.4 kg.
	// MMA: 120/12 = 10 l * 2.68 = 26.8 kg. Average 25.1 kg.
	assert.Equal(t, 10.0, viaje.ConsumoLitros)
	assert.Equal(t, 23.4, viaje.MetodoBoostrKg)
	assert.Equal(t, 26.8, viaje.MetodoMMAKg)
	assert.Equal(t, 25.1, viaje.CO2Kg)
	assert.Equal(t, 0.0251, viaje.CO2Ton)
}
