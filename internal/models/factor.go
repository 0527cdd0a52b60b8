package models

import "time"

// Factor is one immutable version of an emission/conversion factor.
// "Updating" a key appends version N+1; existing rows are never mutated.
// Valor is expressed in UnidadSalida per UnidadEntrada (e.g. tCO2e per kWh).
type Factor struct {
	ID            string     `json:"id"`
	Key           string     `json:"key"`       // e.g. electricidad_sen_2026_q1
	Categoria     string     `json:"categoria"` // energia, combustible, transporte, agua, residuo
	UnidadEntrada string     `json:"unidad_entrada"`
	UnidadSalida  string     `json:"unidad_salida"`
	Valor         float64    `json:"valor"`
	FuenteOficial string     `json:"fuente_oficial,omitempty"`
	VigenciaDesde time.Time  `json:"vigencia_desde"`
	VigenciaHasta *time.Time `json:"vigencia_hasta,omitempty"` // nil = open-ended
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Factor categoria constants. The categoria decides which impact field a
// generated asiento receives (emissions, water or waste).
const (
	FactorCategoriaEnergia     = "energia"
	FactorCategoriaCombustible = "combustible"
	FactorCategoriaTransporte  = "transporte"
	FactorCategoriaAgua        = "agua"
	FactorCategoriaResiduo     = "residuo"
)
