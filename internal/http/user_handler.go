package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"psy-relay/internal/domain"
	"psy-relay/internal/service"
)

// UserHandler mantiene dependencias para login, logout y perfil.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
	}
}

// Login maneja POST /api/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Credential string `json:"credential"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_, token, err := h.userServ.Login(c.Request.Context(), req.Credential)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredential) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout maneja POST /api/logout.
func (h *UserHandler) Logout(c *gin.Context) {
	token := c.GetString(authTokenKey)
	if err := h.jwtServ.Revoke(token); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not logout"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetUser maneja GET /api/user.
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	user, err := h.userServ.Profile(c.Request.Context(), userID)
	if err != nil {
		h.writeUserError(c, err, "get user failed")
		return
	}

	transcripts := user.Transcripts
	if transcripts == nil {
		transcripts = []domain.SessionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        user.DisplayName,
		"email":       user.Email,
		"theme":       user.Theme(),
		"language":    user.Language(),
		"transcripts": transcripts,
	})
}

// UpdateUser maneja POST /api/user.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, ok := GetAuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		Name     *string `json:"name" binding:"omitempty,max=100"`
		Theme    *string `json:"theme" binding:"omitempty,max=32"`
		Language *string `json:"language" binding:"omitempty,max=16"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update user request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_, err := h.userServ.UpdateProfile(c.Request.Context(), userID, service.ProfileUpdate{
		Name:     req.Name,
		Theme:    req.Theme,
		Language: req.Language,
	})
	if err != nil {
		h.writeUserError(c, err, "update user failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *UserHandler) writeUserError(c *gin.Context, err error, msg string) {
	if errors.Is(err, service.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
