// Package clasificador maps tax documents to environmentally relevant line
// items using a deterministic rule table keyed on the supplier's razón
// social. A document matching no rule is dropped, not an error; coverage is
// deliberately low-recall.
package clasificador

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/models"
)

// Documento is one received tax document as seen by the classifier. It is
// intentionally decoupled from the SII wire format.
type Documento struct {
	TipoDTE     int
	Folio       int
	RUTEmisor   string
	RazonSocial string
	Fecha       string // informational, YYYY-MM-DD
	MontoNeto   float64
	MontoTotal  float64
}

// Item is a classified line item ready for the ledger entry generator.
type Item struct {
	Tipo         string
	Categoria    string
	Subcategoria string
	Descripcion  string

	CantidadFisica float64
	UnidadFisica   string

	// FactorKey is empty for items with no emission impact (green
	// investments); the generator then skips the factor lookup.
	FactorKey  string
	AlcanceGEI *int

	Taxonomia         string
	TaxonomiaCriterio string

	DebeCuenta string
	DebeNombre string
	DebeMonto  float64

	HaberCuenta string
	HaberNombre string
	HaberMonto  float64
}

// Average unit prices (CLP) used to estimate physical quantities from the
// net amount when the document carries no line detail.
const (
	precioKWh        = 150
	precioLitroCombu = 1100
	precioM3Gas      = 800
	precioM3Agua     = 1500
	precioKmFlete    = 250
	precioKgResiduo  = 200
)

// kmPorGuia is the average logistics distance attributed to one guía de
// despacho (electronic dispatch note).
const kmPorGuia = 120

type regla struct {
	pattern       *regexp.Regexp
	tipo          string
	categoria     string
	subcategoria  string
	factorKey     string
	unidadFisica  string
	precioUnit    float64
	alcance       int
	taxonomia     string
	criterio      string
	cuentaDebe    string
	cuentaDebeNom string
}

// Rules are evaluated in order; the first match wins. Patterns cover the
// dominant Chilean utilities and supplier naming conventions.
var reglas = []regla{
	{
		pattern:       regexp.MustCompile(`SOLAR|PANEL|FOTOVOLT|RENOVABL|EOLIC|SUNPOWER|TRINA`),
		tipo:          "inversion",
		categoria:     "inversion",
		subcategoria:  "energia_renovable",
		factorKey:     "",
		unidadFisica:  "CLP",
		precioUnit:    1,
		taxonomia:     models.TaxonomiaVerde,
		criterio:      "EA.311",
		cuentaDebe:    models.CuentaPrefijoActivoAmbiental + ".1",
		cuentaDebeNom: "Activos ambientales - inversion verde",
	},
	{
		pattern:       regexp.MustCompile(`ELECTR|ENERG|CGE|ENEL|CHILQUINTA|SAESA|FRONTEL|COLBUN`),
		tipo:          "consumo_energia",
		categoria:     "energia",
		subcategoria:  "electricidad",
		factorKey:     "electricidad_sen",
		unidadFisica:  "kWh",
		precioUnit:    precioKWh,
		alcance:       2,
		taxonomia:     models.TaxonomiaTransicion,
		criterio:      "EA.131",
		cuentaDebe:    models.CuentaPrefijoCostoAmbiental + ".1",
		cuentaDebeNom: "Costos ambientales - energia",
	},
	{
		pattern:       regexp.MustCompile(`COPEC|SHELL|PETROBRAS|ENAP|DIESEL|BENCINA|COMBUST|PETROL|TERPEL`),
		tipo:          "consumo_combustible",
		categoria:     "combustible",
		subcategoria:  "combustible_fosil",
		factorKey:     "diesel_b5",
		unidadFisica:  "litros",
		precioUnit:    precioLitroCombu,
		alcance:       1,
		taxonomia:     models.TaxonomiaNoVerde,
		criterio:      "EA.132",
		cuentaDebe:    models.CuentaPrefijoCostoAmbiental + ".2",
		cuentaDebeNom: "Costos ambientales - combustible",
	},
	{
		pattern:       regexp.MustCompile(`GASCO|LIPIGAS|ABASTIBLE|GLP|GNL|\bGAS\b`),
		tipo:          "consumo_combustible",
		categoria:     "combustible",
		subcategoria:  "gas",
		factorKey:     "gas_natural",
		unidadFisica:  "m3",
		precioUnit:    precioM3Gas,
		alcance:       1,
		taxonomia:     models.TaxonomiaTransicion,
		criterio:      "EA.132",
		cuentaDebe:    models.CuentaPrefijoCostoAmbiental + ".2",
		cuentaDebeNom: "Costos ambientales - combustible",
	},
	{
		pattern:       regexp.MustCompile(`AGUAS|\bAGUA\b|ESSBIO|SMAPA|SANITARI|ESVAL|NUEVOSUR`),
		tipo:          "consumo_agua",
		categoria:     "agua",
		subcategoria:  "consumo_hidrico",
		factorKey:     "agua_potable",
		unidadFisica:  "m3",
		precioUnit:    precioM3Agua,
		alcance:       1,
		taxonomia:     models.TaxonomiaTransicion,
		criterio:      "EA.141",
		cuentaDebe:    models.CuentaPrefijoCostoAmbiental + ".3",
		cuentaDebeNom: "Costos ambientales - agua",
	},
	{
		pattern:       regexp.MustCompile(`TRANSPORT|LOGIST|FLETE|CARGA|COURIER|CHILEXPRESS|STARKEN|CORREOS|BLUE EXPRESS`),
		tipo:          "transporte",
		categoria:     "transporte",
		subcategoria:  "transporte_terceros",
		factorKey:     "transporte_liviano",
		unidadFisica:  "km",
		precioUnit:    precioKmFlete,
		alcance:       3,
		taxonomia:     models.TaxonomiaTransicion,
		criterio:      "EA.133",
		cuentaDebe:    models.CuentaPrefijoCostoAmbiental + ".4",
		cuentaDebeNom: "Costos ambientales - transporte",
	},
	{
		pattern:       regexp.MustCompile(`RESIDU|RECICLAJ|BASURA|DESECHO|KDM|VEOLIA|STERICYCLE|HIDRONOR`),
		tipo:          "residuo",
		categoria:     "residuo",
		subcategoria:  "gestion_residuos",
		factorKey:     "residuos_relleno",
		unidadFisica:  "kg",
		precioUnit:    precioKgResiduo,
		alcance:       3,
		taxonomia:     models.TaxonomiaTransicion,
		criterio:      "EA.211",
		cuentaDebe:    models.CuentaPrefijoCostoAmbiental + ".5",
		cuentaDebeNom: "Costos ambientales - residuos",
	},
}

// Clasificador turns tax documents into classified line items
type Clasificador struct {
	logger *zap.Logger
}

// New creates a new clasificador
func New(logger *zap.Logger) *Clasificador {
	return &Clasificador{logger: logger}
}

// Clasificar produces the items for one document. An empty result means the
// supplier matched no rule; the document still gets its evidence record but
// no asientos.
func (c *Clasificador) Clasificar(doc Documento) []Item {
	var items []Item

	razon := strings.ToUpper(doc.RazonSocial)
	rule := match(razon)
	if rule == nil {
		c.logger.Debug("Document matched no classification rule",
			zap.Int("tipo_dte", doc.TipoDTE),
			zap.Int("folio", doc.Folio),
			zap.String("razon_social", doc.RazonSocial))
	} else {
		items = append(items, buildItem(doc, rule))
	}

	// Guías de despacho additionally carry an estimated logistics leg
	// regardless of the supplier rule.
	if doc.TipoDTE == 52 {
		items = append(items, guiaLogistica(doc))
	}

	return items
}

func match(razon string) *regla {
	for i := range reglas {
		if reglas[i].pattern.MatchString(razon) {
			return &reglas[i]
		}
	}
	return nil
}

func buildItem(doc Documento, rule *regla) Item {
	item := Item{
		Tipo:              rule.tipo,
		Categoria:         rule.categoria,
		Subcategoria:      rule.subcategoria,
		CantidadFisica:    estimarCantidad(doc.MontoNeto, rule.precioUnit),
		UnidadFisica:      rule.unidadFisica,
		FactorKey:         rule.factorKey,
		Taxonomia:         rule.taxonomia,
		TaxonomiaCriterio: rule.criterio,
		Descripcion: fmt.Sprintf("%s - DTE %d folio %d - neto $%.0f",
			doc.RazonSocial, doc.TipoDTE, doc.Folio, doc.MontoNeto),
		DebeCuenta:  rule.cuentaDebe,
		DebeNombre:  rule.cuentaDebeNom,
		DebeMonto:   doc.MontoTotal,
		HaberCuenta: models.CuentaPrefijoPasivoAmbiental + ".1",
		HaberNombre: "Provision proveedores ambientales",
		HaberMonto:  doc.MontoTotal,
	}
	if rule.alcance != 0 {
		alcance := rule.alcance
		item.AlcanceGEI = &alcance
	}
	return item
}

func guiaLogistica(doc Documento) Item {
	alcance := 3
	return Item{
		Tipo:              "transporte",
		Categoria:         "transporte",
		Subcategoria:      "guia_despacho",
		CantidadFisica:    kmPorGuia,
		UnidadFisica:      "km",
		FactorKey:         "transporte_liviano",
		AlcanceGEI:        &alcance,
		Taxonomia:         models.TaxonomiaTransicion,
		TaxonomiaCriterio: "EA.133",
		Descripcion: fmt.Sprintf("Guia de despacho folio %d - %d km logisticos estimados",
			doc.Folio, kmPorGuia),
		DebeCuenta:  models.CuentaPrefijoCostoAmbiental + ".4",
		DebeNombre:  "Costos ambientales - transporte",
		DebeMonto:   doc.MontoTotal,
		HaberCuenta: models.CuentaPrefijoPasivoAmbiental + ".1",
		HaberNombre: "Provision proveedores ambientales",
		HaberMonto:  doc.MontoTotal,
	}
}

func estimarCantidad(montoNeto, precioUnitario float64) float64 {
	if precioUnitario <= 1 {
		return math.Abs(montoNeto)
	}
	return math.Round(math.Abs(montoNeto) / precioUnitario)
}
