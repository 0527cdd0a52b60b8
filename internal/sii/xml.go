package sii

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/kontax/green-ledger/internal/apperr"
)

// dteXML mirrors the SII electronic document envelope, reduced to the fields
// the classifier needs.
type dteXML struct {
	XMLName   xml.Name `xml:"DTE"`
	Documento struct {
		Encabezado struct {
			IdDoc struct {
				TipoDTE int    `xml:"TipoDTE"`
				Folio   int    `xml:"Folio"`
				FchEmis string `xml:"FchEmis"`
			} `xml:"IdDoc"`
			Emisor struct {
				RUTEmisor string `xml:"RUTEmisor"`
				RznSoc    string `xml:"RznSoc"`
			} `xml:"Emisor"`
			Totales struct {
				MntNeto  float64 `xml:"MntNeto"`
				MntTotal float64 `xml:"MntTotal"`
			} `xml:"Totales"`
		} `xml:"Encabezado"`
	} `xml:"Documento"`
}

// DTEDocumento is a parsed tax document.
type DTEDocumento struct {
	TipoDTE     int
	Folio       int
	FechaEmis   time.Time
	RUTEmisor   string
	RazonSocial string
	MontoNeto   float64
	MontoTotal  float64
}

// ParseDTE decodes a DTE XML payload.
func ParseDTE(content []byte) (*DTEDocumento, error) {
	var doc dteXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("malformed DTE XML: %v: %w", err, apperr.ErrValidation)
	}

	enc := doc.Documento.Encabezado
	if enc.IdDoc.Folio == 0 {
		return nil, fmt.Errorf("DTE XML missing folio: %w", apperr.ErrValidation)
	}

	fecha, err := time.Parse("2006-01-02", enc.IdDoc.FchEmis)
	if err != nil {
		return nil, fmt.Errorf("DTE %d-%d: invalid FchEmis %q: %w",
			enc.IdDoc.TipoDTE, enc.IdDoc.Folio, enc.IdDoc.FchEmis, apperr.ErrValidation)
	}

	return &DTEDocumento{
		TipoDTE:     enc.IdDoc.TipoDTE,
		Folio:       enc.IdDoc.Folio,
		FechaEmis:   fecha,
		RUTEmisor:   enc.Emisor.RUTEmisor,
		RazonSocial: enc.Emisor.RznSoc,
		MontoNeto:   enc.Totales.MntNeto,
		MontoTotal:  enc.Totales.MntTotal,
	}, nil
}

// HashContent computes the SHA-256 digest of the raw document content. The
// digest is the evidence deduplication key.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
