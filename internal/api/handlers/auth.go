package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"koinonia.app/platform/internal/api/middleware"
	"koinonia.app/platform/internal/model"
	apperrors "koinonia.app/platform/internal/pkg/errors"
	"koinonia.app/platform/internal/repository"
)

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
}

// Register handles POST /auth/register.
func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, "malformed request body")
		return
	}
	if req.Email == "" || req.Username == "" || len(req.Password) < 8 {
		badInput(c, "email, username, and a password of at least 8 characters are required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternalError, "failed to hash password", http.StatusInternalServerError))
		c.Abort()
		return
	}

	u := &model.User{
		Email:           req.Email,
		Username:        req.Username,
		PasswordHash:    string(hash),
		DisplayName:     req.DisplayName,
		NotifyDM:        true,
		NotifyCommunity: true,
		NotifyForum:     true,
		NotifyFeed:      true,
	}
	if err := s.users.Create(c.Request.Context(), u); err != nil {
		if repository.IsUniqueViolation(err) {
			_ = c.Error(apperrors.Conflict(apperrors.CodeInvalidState, "email or username already in use"))
		} else {
			_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternalError, "failed to create user", http.StatusInternalServerError))
		}
		c.Abort()
		return
	}

	s.issueToken(c, u, http.StatusCreated)
}

// Login handles POST /auth/login. Invalid email and invalid password are
// indistinguishable in the response.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		badInput(c, "email and password are required")
		return
	}

	unauthorized := func() {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeAuthFailed, "invalid credentials"))
		c.Abort()
	}

	u, err := s.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		unauthorized()
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		unauthorized()
		return
	}

	_ = s.users.TouchLastActive(c.Request.Context(), u.ID, time.Now().UTC())
	s.issueToken(c, u, http.StatusOK)
}

func (s *Server) issueToken(c *gin.Context, u *model.User, status int) {
	token, expiresAt, err := middleware.GenerateToken(s.jwtCfg, u.ID, u.Username, u.IsAdmin)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInternalError, "failed to issue token", http.StatusInternalServerError))
		c.Abort()
		return
	}
	c.JSON(status, authResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    u.ID,
		Username:  u.Username,
	})
}
