package sii

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontax/green-ledger/internal/apperr"
)

const sampleDTE = `<?xml version="1.0" encoding="ISO-8859-1"?>
<DTE version="1.0">
  <Documento ID="F100T33">
    <Encabezado>
      <IdDoc>
        <TipoDTE>33</TipoDTE>
        <Folio>100</Folio>
        <FchEmis>2026-03-10</FchEmis>
      </IdDoc>
      <Emisor>
        <RUTEmisor>96800570-7</RUTEmisor>
        <RznSoc>ENEL DISTRIBUCION CHILE S.A.</RznSoc>
      </Emisor>
      <Totales>
        <MntNeto>150000</MntNeto>
        <MntTotal>178500</MntTotal>
      </Totales>
    </Encabezado>
  </Documento>
</DTE>`

func TestParseDTE(t *testing.T) {
	doc, err := ParseDTE([]byte(sampleDTE))
	require.NoError(t, err)

	assert.Equal(t, 33, doc.TipoDTE)
	assert.Equal(t, 100, doc.Folio)
	assert.Equal(t, "2026-03-10", doc.FechaEmis.Format("2006-01-02"))
	assert.Equal(t, "96800570-7", doc.RUTEmisor)
	assert.Equal(t, "ENEL DISTRIBUCION CHILE S.A.", doc.RazonSocial)
	assert.Equal(t, 150000.0, doc.MontoNeto)
	assert.Equal(t, 178500.0, doc.MontoTotal)
}

func TestParseDTE_Malformed(t *testing.T) {
	_, err := ParseDTE([]byte("<DTE><broken"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ParseDTE([]byte("<DTE><Documento><Encabezado></Encabezado></Documento></DTE>"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestParseDTE_InvalidDate(t *testing.T) {
	xml := `<DTE><Documento><Encabezado><IdDoc><TipoDTE>33</TipoDTE><Folio>5</Folio><FchEmis>10-03-2026</FchEmis></IdDoc></Encabezado></Documento></DTE>`
	_, err := ParseDTE([]byte(xml))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHashContent_IsStable(t *testing.T) {
	h1 := HashContent([]byte(sampleDTE))
	h2 := HashContent([]byte(sampleDTE))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	assert.NotEqual(t, h1, HashContent([]byte(sampleDTE+" ")))
}
