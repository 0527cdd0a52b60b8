// Package boostr integrates with the Boostr vehicle data API: plate lookup
// with a local cache and trip emission estimation.
package boostr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
)

// FuelEfficiency is the per-cycle efficiency block of a Boostr response.
type FuelEfficiency struct {
	CityKmPerLiter     float64 `json:"city_km_per_liter"`
	HighwayKmPerLiter  float64 `json:"highway_km_per_liter"`
	CombinedKmPerLiter float64 `json:"combined_km_per_liter"`
}

// VehicleInfo is the Boostr vehicle payload.
type VehicleInfo struct {
	Brand          string         `json:"brand"`
	Model          string         `json:"model"`
	Year           int            `json:"year"`
	FuelType       string         `json:"fuel_type"`
	FuelEfficiency FuelEfficiency `json:"fuel_efficiency"`
	CO2GramsPerKm  float64        `json:"co2_emissions_g_per_km"`
}

// Client talks to the Boostr API
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a new Boostr client
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// LookupByPlate fetches a vehicle's data. An unknown plate returns
// ErrNotFound, not an upstream failure.
func (c *Client) LookupByPlate(ctx context.Context, patente string) (*VehicleInfo, error) {
	url := fmt.Sprintf("%s/car/plate/%s", c.baseURL, patente)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build plate request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("boostr lookup %s: %v: %w", patente, err, apperr.ErrUpstream)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("vehiculo %s: %w", patente, apperr.ErrNotFound)
	default:
		return nil, fmt.Errorf("boostr lookup %s: status %d: %w", patente, resp.StatusCode, apperr.ErrUpstream)
	}

	var info VehicleInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("boostr lookup %s: decode: %v: %w", patente, err, apperr.ErrUpstream)
	}

	c.logger.Info("Vehicle info fetched from Boostr",
		zap.String("patente", patente),
		zap.String("brand", info.Brand))
	return &info, nil
}
