package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/api/middleware"
	"github.com/sellforge/sellforge/internal/auth"
	"github.com/sellforge/sellforge/internal/models"
)

// EmailTokenTTL is how long an email verification token stays valid.
const EmailTokenTTL = 24 * time.Hour

// AuthStore defines the persistence operations for account management.
type AuthStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetUserEmailVerified(ctx context.Context, userID int64) error
	CreateEmailToken(ctx context.Context, token *models.EmailToken) error
	ConsumeEmailToken(ctx context.Context, token string) (*models.EmailToken, error)
}

// AuthHandler handles registration, login, and session management.
type AuthHandler struct {
	store    AuthStore
	sessions *auth.SessionStore
	logger   zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(store AuthStore, sessions *auth.SessionStore, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		store:    store,
		sessions: sessions,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers auth routes. The public group takes
// registration, login, and email verification; the protected group
// takes logout and the current-user endpoint.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/verify-email", h.VerifyEmail)
	protected.POST("/auth/logout", h.Logout)
	protected.GET("/auth/me", h.Me)
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// Register creates a new account and issues an email verification token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	role := models.UserRoleBuyer
	switch req.Role {
	case "", string(models.UserRoleBuyer):
	case string(models.UserRoleSeller):
		role = models.UserRoleSeller
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be buyer or seller"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user := models.NewUser(strings.ToLower(strings.TrimSpace(req.Email)), req.Name, hash, role)
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		respondError(c, h.logger, err)
		return
	}

	token := models.NewEmailToken(user.ID, auth.GenerateEmailToken(), EmailTokenTTL)
	if err := h.store.CreateEmailToken(c.Request.Context(), token); err != nil {
		// The account exists; verification can be re-requested later.
		h.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to create email token")
	}

	h.logger.Info().Int64("user_id", user.ID).Str("role", string(role)).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		// Same response for unknown email and bad password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		h.logger.Warn().Int64("user_id", user.ID).Msg("failed login attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	sessionUser := &auth.SessionUser{
		ID:              user.ID,
		Email:           user.Email,
		Role:            user.Role,
		AuthenticatedAt: time.Now(),
	}
	if err := h.sessions.SetUser(c.Request, c.Writer, sessionUser); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().Int64("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout ends the session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.ClearUser(c.Request, c.Writer); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's account.
func (h *AuthHandler) Me(c *gin.Context) {
	sessionUser := middleware.RequireUser(c)
	if sessionUser == nil {
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), sessionUser.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type verifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmail consumes a verification token and marks the account verified.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	token, err := h.store.ConsumeEmailToken(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.store.SetUserEmailVerified(c.Request.Context(), token.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().Int64("user_id", token.UserID).Msg("email verified")
	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}
