package ai

import (
	"context"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
)

type stubClient struct {
	lastRequest openai.ChatCompletionRequest
	reply       string
	err         error
}

func (s *stubClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastRequest = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.reply}},
		},
	}, nil
}

func newStubAgent(reply string, err error) (*Agent, *stubClient) {
	stub := &stubClient{reply: reply, err: err}
	return &Agent{
		client: stub,
		model:  "gpt-4",
		temp:   0.3,
		logger: zap.NewNop(),
	}, stub
}

func TestLibroVerde_PromptCarriesConsumptionFigures(t *testing.T) {
	agent, stub := newStubAgent("# Libro Verde\n...", nil)

	out, err := agent.LibroVerde(context.Background(), LibroVerdeInput{
		Empresa:         "Comercial Verde SpA",
		DieselLitros:    1200,
		ElectricidadKWh: 4500.5,
		AguaM3:          80,
	})
	require.NoError(t, err)
	assert.Equal(t, "# Libro Verde\n...", out)

	require.Len(t, stub.lastRequest.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, stub.lastRequest.Messages[0].Role)

	prompt := stub.lastRequest.Messages[1].Content
	assert.Contains(t, prompt, "Comercial Verde SpA")
	assert.Contains(t, prompt, "Diesel: 1200.00 litros")
	assert.Contains(t, prompt, "Electricidad: 4500.50 kWh")
	assert.Contains(t, prompt, "Agua: 80.00 m3")
	for _, section := range []string{"Huella de carbono", "Balance SEEA", "Taxonomia T-MAS", "ESG y ODS"} {
		assert.True(t, strings.Contains(prompt, section), "prompt missing section %q", section)
	}
}

func TestComplete_UpstreamFailure(t *testing.T) {
	agent, _ := newStubAgent("", fmt.Errorf("connection refused"))

	_, err := agent.Complete(context.Background(), "hola")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestComplete_EmptyChoices(t *testing.T) {
	agent := &Agent{client: emptyClient{}, model: "gpt-4", logger: zap.NewNop()}

	_, err := agent.Complete(context.Background(), "hola")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

type emptyClient struct{}

func (emptyClient) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, nil
}
