package models

import "time"

// Vehiculo is the locally cached result of a Boostr plate lookup.
type Vehiculo struct {
	ID              string    `json:"id"`
	EntityID        *string   `json:"entity_id,omitempty"`
	Patente         string    `json:"patente"`
	Marca           string    `json:"marca,omitempty"`
	Modelo          string    `json:"modelo,omitempty"`
	Ano             int       `json:"ano,omitempty"`
	TipoCombustible string    `json:"tipo_combustible,omitempty"`
	RendimientoKmL  float64   `json:"rendimiento_km_l,omitempty"`
	FactorEmision   float64   `json:"factor_emision,omitempty"` // gCO2/km
	CreatedAt       time.Time `json:"created_at"`
}
