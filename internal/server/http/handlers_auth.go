package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jdvries/sampletrack/internal/errs"
	"github.com/jdvries/sampletrack/internal/model"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type setPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required"`
}

type userPayload struct {
	ID                     string `json:"id"`
	Username               string `json:"username"`
	Role                   string `json:"role"`
	RequiresPasswordChange bool   `json:"requiresPasswordChange"`
	CreatedAt              string `json:"createdAt,omitempty"`
}

func accountPayload(acc model.Account) userPayload {
	p := userPayload{
		ID:                     acc.ID.String(),
		Username:               acc.Username,
		Role:                   string(acc.Role),
		RequiresPasswordChange: acc.MustBootstrap,
	}
	if !acc.CreatedAt.IsZero() {
		p.CreatedAt = acc.CreatedAt.UTC().Format(time.RFC3339)
	}
	return p
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	res, err := s.auth.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		var rl *errs.RateLimitError
		switch {
		case errors.As(err, &rl):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "too many login attempts, try again later",
				"resetAt": rl.ResetAt.UTC().Format(time.RFC3339),
			})
		case errors.Is(err, errs.ErrInvalidCredentials):
			// One message for unknown user and wrong password alike.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		default:
			s.writeServiceError(c, err)
		}
		return
	}

	s.setSessionCookie(c, res.Token)
	c.JSON(http.StatusOK, gin.H{
		"success":                true,
		"user":                   accountPayload(res.Account),
		"requiresPasswordChange": res.Bootstrap,
	})
}

// handleLogout tolerates a missing or invalid session: the cookie is cleared
// either way, and the audit record is only written for a valid one.
func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		if ident, err := s.sessions.Parse(token); err == nil {
			s.auth.Logout(c.Request.Context(), ident, c.ClientIP(), c.Request.UserAgent())
		}
	}
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleSession reports the current session without ever failing: an absent or
// invalid token is a 200 with isLoggedIn false, not an error.
func (s *Server) handleSession(c *gin.Context) {
	token, err := c.Cookie(sessionCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusOK, gin.H{"isLoggedIn": false})
		return
	}
	ident, err := s.sessions.Parse(token)
	if err != nil {
		s.clearSessionCookie(c)
		c.JSON(http.StatusOK, gin.H{"isLoggedIn": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isLoggedIn":             true,
		"userId":                 ident.AccountID.String(),
		"username":               ident.Username,
		"role":                   string(ident.Role),
		"requiresPasswordChange": ident.MustBootstrap,
	})
}

func (s *Server) handleSetPassword(c *gin.Context) {
	ident, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "newPassword is required"})
		return
	}

	res, err := s.auth.SetBootstrapPassword(c.Request.Context(), ident, req.NewPassword, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrWeakSecret):
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		case errors.Is(err, errs.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "password is already set"})
		case errors.Is(err, errs.ErrUnauthenticated):
			// The account moved on since this token was issued.
			s.clearSessionCookie(c)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session is no longer valid"})
		default:
			s.writeServiceError(c, err)
		}
		return
	}

	s.setSessionCookie(c, res.Token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    accountPayload(res.Account),
	})
}

// writeServiceError maps errors no handler claims specifically. Store outages
// surface as 503 so clients can distinguish them from a denial.
func (s *Server) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	default:
		s.log.Error("unhandled service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
