// Package ai wraps the analytics agent used for Libro Verde generation and
// document analysis. Responses are plain text; callers that need structure
// go through ExtractJSON.
package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
)

const systemPrompt = "Eres el Agente Analitico de KONTAX, una plataforma de contabilidad verde para PYMEs chilenas. Respondes en espanol, con rigor contable y ambiental. Cuando se te pida JSON, responde SOLO con un objeto JSON valido."

// completionClient is the slice of the OpenAI client the agent uses.
// *openai.Client satisfies it.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Agent sends analysis prompts to the configured chat model
type Agent struct {
	client completionClient
	model  string
	temp   float32
	logger *zap.Logger
}

// NewAgent creates a new analytics agent
func NewAgent(apiKey, model string, temperature float32, logger *zap.Logger) *Agent {
	return &Agent{
		client: openai.NewClient(apiKey),
		model:  model,
		temp:   temperature,
		logger: logger,
	}
}

// Complete sends a single user prompt and returns the raw text answer.
func (a *Agent) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temp,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.logger.Error("Agent completion failed", zap.Error(err))
		return "", fmt.Errorf("agent completion: %v: %w", err, apperr.ErrUpstream)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("agent returned no choices: %w", apperr.ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

// LibroVerdeInput carries the consumption figures for a Libro Verde.
type LibroVerdeInput struct {
	Empresa         string  `json:"empresa" binding:"required"`
	DieselLitros    float64 `json:"diesel"`
	ElectricidadKWh float64 `json:"electricidad"`
	AguaM3          float64 `json:"agua"`
}

// LibroVerde generates the Libro Verde narrative for a company from its
// aggregate consumption figures.
func (a *Agent) LibroVerde(ctx context.Context, input LibroVerdeInput) (string, error) {
	a.logger.Info("Generating Libro Verde",
		zap.String("empresa", input.Empresa))
	return a.Complete(ctx, buildLibroVerdePrompt(input))
}

func buildLibroVerdePrompt(input LibroVerdeInput) string {
	return fmt.Sprintf(`Genera un Libro Verde para la empresa %s con los siguientes datos:

Diesel: %.2f litros
Electricidad: %.2f kWh
Agua: %.2f m3

Incluye:
- Huella de carbono
- Capital natural
- Balance SEEA
- Clasificacion Taxonomia T-MAS
- Indicadores ESG y ODS
- Recomendaciones`,
		input.Empresa,
		input.DieselLitros,
		input.ElectricidadKWh,
		input.AguaM3,
	)
}
