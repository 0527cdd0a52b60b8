// Package reportes aggregates ledger entries into regulatory and ESG
// reports. Builders are pure functions over the entry set of one
// (entity, periodo); persistence and dispatch live in the service.
package reportes

import (
	"math"
	"strings"

	"github.com/kontax/green-ledger/internal/models"
)

// AlcanceSection is one GHG scope block of the huella de carbono report.
type AlcanceSection struct {
	TotalTCO2e float64 `json:"total_tco2e"`
	Fuentes    string  `json:"fuentes"`
}

// HuellaCarbono is the GHG Protocol carbon footprint payload.
type HuellaCarbono struct {
	Estandar           string         `json:"estandar"`
	Alcance1           AlcanceSection `json:"alcance_1"`
	Alcance2           AlcanceSection `json:"alcance_2"`
	Alcance3           AlcanceSection `json:"alcance_3"`
	TotalTCO2e         float64        `json:"total_tco2e"`
	AsientosProcesados int            `json:"asientos_procesados"`
}

// BalanceAmbiental nets environmental assets against liabilities, with green
// cost accounts reported alongside.
type BalanceAmbiental struct {
	ActivosCLP         float64 `json:"activos_ambientales_clp"`
	PasivosCLP         float64 `json:"pasivos_ambientales_clp"`
	CostosCLP          float64 `json:"costos_ambientales_clp"`
	PatrimonioNetoCLP  float64 `json:"patrimonio_ambiental_neto_clp"`
	AsientosProcesados int     `json:"asientos_procesados"`
}

// ESGAmbiental is the environmental pillar of the ESG report.
type ESGAmbiental struct {
	EmisionesTotalesTCO2e float64 `json:"emisiones_totales_tco2e"`
	ConsumoEnergiaKWh     float64 `json:"consumo_energia_kwh"`
}

// ESGNota marks a pillar that needs non-accounting data.
type ESGNota struct {
	Nota string `json:"nota"`
}

// ESG is the GRI/SASB-aligned payload.
type ESG struct {
	Estandar           string       `json:"estandar"`
	Ambiental          ESGAmbiental `json:"ambiental"`
	Social             ESGNota      `json:"social"`
	Gobernanza         ESGNota      `json:"gobernanza"`
	AsientosProcesados int          `json:"asientos_procesados"`
}

// Generic covers report types without a dedicated builder yet.
type Generic struct {
	Tipo               string  `json:"tipo"`
	AsientosProcesados int     `json:"asientos_procesados"`
	TotalEmisiones     float64 `json:"total_emisiones_tco2e"`
	Estado             string  `json:"estado"`
	Nota               string  `json:"nota"`
}

// Build dispatches to the builder for tipo. Types without a dedicated
// builder fall through to the generic one.
func Build(tipo string, asientos []*models.AsientoVerde) interface{} {
	switch tipo {
	case models.ReporteTipoHuellaCarbono:
		return buildHuellaCarbono(asientos)
	case models.ReporteTipoBalanceAmbiental:
		return buildBalanceAmbiental(asientos)
	case models.ReporteTipoESG:
		return buildESG(asientos)
	default:
		return buildGeneric(tipo, asientos)
	}
}

func buildHuellaCarbono(asientos []*models.AsientoVerde) HuellaCarbono {
	var alcance1, alcance2, alcance3 float64
	for _, a := range asientos {
		if a.EmisionesTCO2e == nil || a.AlcanceGEI == nil {
			continue
		}
		switch *a.AlcanceGEI {
		case 1:
			alcance1 += *a.EmisionesTCO2e
		case 2:
			alcance2 += *a.EmisionesTCO2e
		case 3:
			alcance3 += *a.EmisionesTCO2e
		}
	}

	return HuellaCarbono{
		Estandar: "GHG Protocol Corporate Standard",
		Alcance1: AlcanceSection{
			TotalTCO2e: round3(alcance1),
			Fuentes:    "Combustion directa, vehiculos propios",
		},
		Alcance2: AlcanceSection{
			TotalTCO2e: round3(alcance2),
			Fuentes:    "Electricidad comprada",
		},
		Alcance3: AlcanceSection{
			TotalTCO2e: round3(alcance3),
			Fuentes:    "Transporte terceros, residuos, cadena valor",
		},
		TotalTCO2e:         round3(alcance1 + alcance2 + alcance3),
		AsientosProcesados: len(asientos),
	}
}

func buildBalanceAmbiental(asientos []*models.AsientoVerde) BalanceAmbiental {
	var activos, pasivos, costos float64
	for _, a := range asientos {
		if strings.HasPrefix(a.DebeCuenta, models.CuentaPrefijoActivoAmbiental) {
			activos += a.DebeMonto
		}
		if strings.HasPrefix(a.HaberCuenta, models.CuentaPrefijoPasivoAmbiental) {
			pasivos += a.HaberMonto
		}
		if strings.HasPrefix(a.DebeCuenta, models.CuentaPrefijoCostoAmbiental) {
			costos += a.DebeMonto
		}
	}

	return BalanceAmbiental{
		ActivosCLP:         round2(activos),
		PasivosCLP:         round2(pasivos),
		CostosCLP:          round2(costos),
		PatrimonioNetoCLP:  round2(activos - pasivos),
		AsientosProcesados: len(asientos),
	}
}

func buildESG(asientos []*models.AsientoVerde) ESG {
	var emisiones, energia float64
	for _, a := range asientos {
		if a.EmisionesTCO2e != nil {
			emisiones += *a.EmisionesTCO2e
		}
		if strings.Contains(a.Tipo, "energia") {
			energia += a.CantidadFisica
		}
	}

	return ESG{
		Estandar: "GRI / SASB",
		Ambiental: ESGAmbiental{
			EmisionesTotalesTCO2e: round3(emisiones),
			ConsumoEnergiaKWh:     round2(energia),
		},
		Social:             ESGNota{Nota: "Requiere datos adicionales no contables"},
		Gobernanza:         ESGNota{Nota: "Requiere datos adicionales corporativos"},
		AsientosProcesados: len(asientos),
	}
}

func buildGeneric(tipo string, asientos []*models.AsientoVerde) Generic {
	var emisiones float64
	for _, a := range asientos {
		if a.EmisionesTCO2e != nil {
			emisiones += *a.EmisionesTCO2e
		}
	}

	return Generic{
		Tipo:               tipo,
		AsientosProcesados: len(asientos),
		TotalEmisiones:     round3(emisiones),
		Estado:             "generado_basico",
		Nota:               "Reporte " + tipo + " generado con datos basicos de asientos verdes",
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
