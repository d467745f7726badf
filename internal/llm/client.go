package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Roles aceptados por la API de chat completions.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

type Message struct {
	Role    string
	Content string
}

// Completion contiene el texto de cada candidato devuelto por el proveedor, en orden.
type Completion struct {
	Choices []string
}

// LLMClient define la interfaz para pedir una completion (no streaming) a un LLM.
type LLMClient interface {
	Complete(ctx context.Context, messages []Message) (Completion, error)
}

// OpenAIClient implementa LLMClient contra una API compatible con OpenAI.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewOpenAIClient construye el cliente apuntando a baseURL con el modelo y temperatura dados.
func NewOpenAIClient(baseURL, apiKey, model string, temperature float64, timeout time.Duration, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: float32(temperature),
		logger:      logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("llm api error",
				zap.Int("status", apiErr.HTTPStatusCode),
				zap.String("message", apiErr.Message),
			)
		}
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}

	out := Completion{Choices: make([]string, 0, len(resp.Choices))}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, choice.Message.Content)
	}
	return out, nil
}
