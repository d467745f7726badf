package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"psy-relay/internal/llm"
	"psy-relay/internal/repository"
)

const (
	SystemPrompt  = "You are a helpful AI psychologist."
	FallbackReply = "I'm sorry, I couldn't come up with a response. Could you tell me more?"

	defaultRelayTimeout = 60 * time.Second
)

var (
	ErrEmptyMessage    = errors.New("message is required")
	ErrUpstreamFailure = errors.New("llm upstream failure")
)

// TranscriptSink recibe los intercambios completados para persistirlos.
type TranscriptSink interface {
	Enqueue(userID string, exchange []string)
}

// ChatService reenvía mensajes al LLM y agenda la persistencia del intercambio.
type ChatService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	llmClient   llm.LLMClient
	transcripts TranscriptSink
	timeout     time.Duration
}

func NewChatService(logger *zap.Logger, users repository.UserRepository, llmClient llm.LLMClient, transcripts TranscriptSink, timeout time.Duration) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultRelayTimeout
	}
	return &ChatService{
		logger:      logger,
		users:       users,
		llmClient:   llmClient,
		transcripts: transcripts,
		timeout:     timeout,
	}
}

// Relay envía message al LLM y devuelve la respuesta. La llamada no se cancela si el
// cliente HTTP se desconecta. Un token válido de un usuario que ya no existe
// devuelve ErrUserNotFound sin consultar al LLM.
func (s *ChatService) Relay(ctx context.Context, userID, message string) (string, error) {
	if message == "" {
		return "", ErrEmptyMessage
	}
	if s.users != nil {
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "", ErrUserNotFound
			}
			return "", fmt.Errorf("lookup user: %w", err)
		}
	}
	if s.llmClient == nil {
		return "", fmt.Errorf("%w: llm client not configured", ErrUpstreamFailure)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	completion, err := s.llmClient.Complete(callCtx, []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: message},
	})
	if err != nil {
		s.logger.Error("llm relay failed", zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	reply := firstReply(completion)
	if reply == "" {
		s.logger.Warn("llm returned no usable reply", zap.String("user_id", userID))
		reply = FallbackReply
	}

	if s.transcripts != nil {
		s.transcripts.Enqueue(userID, []string{message, reply})
	}
	return reply, nil
}

func firstReply(c llm.Completion) string {
	if len(c.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(c.Choices[0])
}
