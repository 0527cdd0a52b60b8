// Package valorizador extracts text from uploaded PDFs and runs them through
// the analytics agent: ESG reports get their scopes valorized at the social
// carbon price, boletines tributarios get a credit-risk classification.
package valorizador

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/ai"
	"github.com/kontax/green-ledger/internal/apperr"
)

// maxPromptChars caps the extracted text sent to the agent so a long
// report does not overflow the model context.
const maxPromptChars = 2000

// agentClient is the slice of the analytics agent the service uses.
type agentClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Service analyzes uploaded documents
type Service struct {
	agent  agentClient
	logger *zap.Logger
}

// New creates a new valorizador service
func New(agent agentClient, logger *zap.Logger) *Service {
	return &Service{
		agent:  agent,
		logger: logger,
	}
}

// ExtractText extracts the plain text of every page of a PDF.
func (s *Service) ExtractText(pdf []byte) (string, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		s.logger.Error("Failed to open PDF", zap.Error(err))
		return "", fmt.Errorf("error leyendo el documento PDF: %w", apperr.ErrValidation)
	}
	defer doc.Close()

	var sb strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			s.logger.Warn("Failed to extract page text",
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ValorizacionESG is the result of valorizing an ESG report.
type ValorizacionESG struct {
	Message         string  `json:"message"`
	ValorizacionCLP float64 `json:"valorizacion_clp"`
	Alcance1TCO2e   float64 `json:"alcance1_tco2e"`
	Alcance2TCO2e   float64 `json:"alcance2_tco2e"`
	Alcance3TCO2e   float64 `json:"alcance3_tco2e"`
	AIInsights      string  `json:"ai_insights"`
}

type esgAnswer struct {
	Alcance1             float64 `json:"alcance1"`
	Alcance2             float64 `json:"alcance2"`
	Alcance3             float64 `json:"alcance3"`
	ValorizacionTotalCLP float64 `json:"valorizacion_total_clp"`
	Insights             string  `json:"insights"`
}

// ValorizarESG extracts an uploaded ESG/carbon-footprint PDF and valorizes it.
func (s *Service) ValorizarESG(ctx context.Context, pdf []byte) (*ValorizacionESG, error) {
	text, err := s.ExtractText(pdf)
	if err != nil {
		return nil, err
	}
	return s.ValorizarESGTexto(ctx, text)
}

// ValorizarESGTexto valorizes already-extracted report text. When the agent
// does not answer in strict JSON the scopes default to zero and the raw
// answer is kept as the insight.
func (s *Service) ValorizarESGTexto(ctx context.Context, text string) (*ValorizacionESG, error) {
	prompt := fmt.Sprintf(`Analiza este extracto de reporte ESG/Huella de Carbono y extrae las emisiones de Alcance 1, 2 y 3 en toneladas de CO2 equivalente (tCO2e).
Luego valoriza estas emisiones al precio social del carbono (aprox $4.500 CLP por tonelada).

Responde en formato JSON estricto:
{
    "alcance1": float,
    "alcance2": float,
    "alcance3": float,
    "valorizacion_total_clp": float,
    "insights": "breve resumen y recomendaciones para contabilidad verde"
}

Texto a analizar:
%s`, clip(text, maxPromptChars))

	answer, err := s.agent.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &ValorizacionESG{Message: "PDF procesado y valorizado con exito."}

	var parsed esgAnswer
	if err := ai.ExtractJSON(answer, &parsed); err != nil {
		s.logger.Warn("Agent answer was not strict JSON, keeping raw text",
			zap.Error(err))
		result.AIInsights = answer
		return result, nil
	}

	result.Alcance1TCO2e = parsed.Alcance1
	result.Alcance2TCO2e = parsed.Alcance2
	result.Alcance3TCO2e = parsed.Alcance3
	result.ValorizacionCLP = parsed.ValorizacionTotalCLP
	result.AIInsights = parsed.Insights
	return result, nil
}

// AnalisisBoletin is the result of analyzing a boletín tributario.
type AnalisisBoletin struct {
	Message    string `json:"message"`
	Riesgo     string `json:"riesgo"`
	AIInsights string `json:"ai_insights"`
}

type boletinAnswer struct {
	Riesgo   string `json:"riesgo"`
	Insights string `json:"insights"`
}

// AnalizarBoletin classifies the tax-compliance risk of a boletín
// tributario PDF.
func (s *Service) AnalizarBoletin(ctx context.Context, pdf []byte) (*AnalisisBoletin, error) {
	text, err := s.ExtractText(pdf)
	if err != nil {
		return nil, err
	}
	return s.AnalizarBoletinTexto(ctx, text)
}

// AnalizarBoletinTexto analyzes already-extracted boletín text.
func (s *Service) AnalizarBoletinTexto(ctx context.Context, text string) (*AnalisisBoletin, error) {
	prompt := fmt.Sprintf(`Analiza este Boletin Tributario y devuelve una clasificacion de riesgo (Alto, Medio, Bajo).
Resume multas, morosidades o problemas con el SII (F29, F22) y entrega insights contables.

Responde en formato JSON estricto:
{
    "riesgo": "Alto|Medio|Bajo",
    "insights": "resumen del boletin"
}

Texto a analizar:
%s`, clip(text, maxPromptChars))

	answer, err := s.agent.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &AnalisisBoletin{Message: "Boletin analizado con exito."}

	var parsed boletinAnswer
	if err := ai.ExtractJSON(answer, &parsed); err != nil {
		s.logger.Warn("Agent answer was not strict JSON, keeping raw text",
			zap.Error(err))
		result.Riesgo = "Analisis pendiente"
		result.AIInsights = answer
		return result, nil
	}

	result.Riesgo = parsed.Riesgo
	if result.Riesgo == "" {
		result.Riesgo = "Desconocido"
	}
	result.AIInsights = parsed.Insights
	return result, nil
}

func clip(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}
