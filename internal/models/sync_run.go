package models

import "time"

// SyncRun records the outcome of one SII synchronization run.
type SyncRun struct {
	ID         string     `json:"id"`
	EntityID   string     `json:"entity_id"`
	FechaDesde time.Time  `json:"fecha_desde"`
	FechaHasta time.Time  `json:"fecha_hasta"`
	Estado     string     `json:"estado"` // procesando, completo, error
	StatsJSON  string     `json:"stats_json,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SyncRun estado constants
const (
	SyncEstadoProcesando = "procesando"
	SyncEstadoCompleto   = "completo"
	SyncEstadoError      = "error"
)

// SyncStats aggregates the counters of one sync run. Per-document failures
// land in Errores; per-item generation failures land in Warnings. Neither
// aborts the run.
type SyncStats struct {
	DocumentosProcesados int            `json:"documentos_procesados"`
	AsientosGenerados    int            `json:"asientos_generados"`
	EmisionesTotalesTCO2 float64        `json:"emisiones_totales_tco2e"`
	PorTipoDTE           map[string]int `json:"por_tipo_dte"`
	PorCategoria         map[string]int `json:"por_categoria"`
	Errores              []SyncError    `json:"errores"`
	Warnings             []SyncWarning  `json:"warnings"`
}

// SyncError captures a failed document with enough context to retry manually.
type SyncError struct {
	TipoDTE int    `json:"tipo_dte"`
	Folio   int    `json:"folio"`
	Error   string `json:"error"`
}

// SyncWarning captures a classified item that produced no asiento.
type SyncWarning struct {
	DTE   string `json:"dte"`
	Item  string `json:"item"`
	Error string `json:"error"`
}
