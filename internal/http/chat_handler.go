package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"psy-relay/internal/service"
)

// ChatHandler mantiene dependencias para el relay de chat.
type ChatHandler struct {
	logger   *zap.Logger
	chatServ *service.ChatService
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chatServ *service.ChatService) *ChatHandler {
	return &ChatHandler{
		logger:   logger,
		chatServ: chatServ,
	}
}

// Chat maneja POST /api/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	reply, err := h.chatServ.Relay(c.Request.Context(), userID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
			return
		}
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("chat relay failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get AI response"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
