package models

import "time"

// AsientoVerde is one environmental double-entry bookkeeping record.
// Impact fields are computed once at creation from the physical quantity and
// the matched factor version; they are never recomputed on read.
type AsientoVerde struct {
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`

	Fecha   time.Time `json:"fecha"`
	Periodo string    `json:"periodo"` // YYYY-MM, derived from Fecha

	Tipo         string `json:"tipo"`      // consumo_energia, consumo_combustible, transporte, residuo, ...
	Categoria    string `json:"categoria"` // energia, combustible, agua, transporte, residuo, inversion
	Subcategoria string `json:"subcategoria,omitempty"`
	Descripcion  string `json:"descripcion"`

	CantidadFisica float64 `json:"cantidad_fisica"`
	UnidadFisica   string  `json:"unidad_fisica"` // kWh, litros, km, kg, m3

	FactorID     *string  `json:"factor_id,omitempty"`
	FactorValor  *float64 `json:"factor_valor,omitempty"`
	FactorUnidad string   `json:"factor_unidad,omitempty"`

	EmisionesTCO2e *float64 `json:"emisiones_tco2e,omitempty"`
	ConsumoAguaM3  *float64 `json:"consumo_agua_m3,omitempty"`
	ResiduosKg     *float64 `json:"residuos_kg,omitempty"`

	AlcanceGEI *int `json:"alcance_gei,omitempty"` // 1, 2, 3

	DebeCuenta string  `json:"debe_cuenta,omitempty"`
	DebeNombre string  `json:"debe_nombre,omitempty"`
	DebeMonto  float64 `json:"debe_monto"` // CLP

	HaberCuenta string  `json:"haber_cuenta,omitempty"`
	HaberNombre string  `json:"haber_nombre,omitempty"`
	HaberMonto  float64 `json:"haber_monto"` // CLP

	EvidenciaID *string `json:"evidencia_id,omitempty"`

	TaxonomiaClasificacion string `json:"taxonomia_clasificacion,omitempty"` // verde, transicion, habilitante, no_verde
	TaxonomiaCriterio      string `json:"taxonomia_criterio,omitempty"`

	Estado    string `json:"estado"` // draft, confirmado, anulado
	CreadoPor string `json:"creado_por,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Asiento estado constants
const (
	AsientoEstadoDraft      = "draft"
	AsientoEstadoConfirmado = "confirmado"
	AsientoEstadoAnulado    = "anulado"
)

// Taxonomy classification constants (T-MAS)
const (
	TaxonomiaVerde       = "verde"
	TaxonomiaTransicion  = "transicion"
	TaxonomiaHabilitante = "habilitante"
	TaxonomiaNoVerde     = "no_verde"
)

// Green chart-of-accounts prefixes used by reports and the score calculator.
const (
	CuentaPrefijoActivoAmbiental = "1595"
	CuentaPrefijoPasivoAmbiental = "2630"
	CuentaPrefijoCostoAmbiental  = "5190"
)

// Periodo derives the YYYY-MM accounting period for a date.
func Periodo(fecha time.Time) string {
	return fecha.Format("2006-01")
}
