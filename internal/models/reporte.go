package models

import "time"

// Reporte is a generated regulatory/ESG report. The row is created in estado
// "generando" and transitions exactly once to "completo" or "error"; the
// payload lives in DataJSON.
type Reporte struct {
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`

	Tipo    string `json:"tipo"`
	Periodo string `json:"periodo"` // YYYY-MM

	Estado   string `json:"estado"` // generando, completo, error
	DataJSON string `json:"data_json,omitempty"`

	GeneradoPor  string     `json:"generado_por,omitempty"`
	CompletadoAt *time.Time `json:"completado_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Reporte estado constants
const (
	ReporteEstadoGenerando = "generando"
	ReporteEstadoCompleto  = "completo"
	ReporteEstadoError     = "error"
)

// Reporte tipo constants. The set is closed and validated at the API
// boundary; types without a dedicated builder fall back to the generic one.
const (
	ReporteTipoHuellaCarbono    = "huella_carbono"
	ReporteTipoESG              = "esg"
	ReporteTipoIFRSS1           = "ifrs_s1"
	ReporteTipoIFRSS2           = "ifrs_s2"
	ReporteTipoLeyREP           = "ley_rep"
	ReporteTipoBalanceAmbiental = "balance_ambiental"
	ReporteTipoDashboardODS     = "dashboard_ods"
)

// ReporteTiposValidos lists every accepted report type.
var ReporteTiposValidos = []string{
	ReporteTipoHuellaCarbono,
	ReporteTipoESG,
	ReporteTipoIFRSS1,
	ReporteTipoIFRSS2,
	ReporteTipoLeyREP,
	ReporteTipoBalanceAmbiental,
	ReporteTipoDashboardODS,
}

// ReporteTipoValido reports whether tipo belongs to the closed enumeration.
func ReporteTipoValido(tipo string) bool {
	for _, t := range ReporteTiposValidos {
		if t == tipo {
			return true
		}
	}
	return false
}
