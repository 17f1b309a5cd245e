package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	"github.com/jdvries/sampletrack/internal/errs"
	"github.com/jdvries/sampletrack/internal/model"
	"github.com/jdvries/sampletrack/internal/service"
)

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type updateUserRequest struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleListUsers(c *gin.Context) {
	accs, err := s.accounts.List(c.Request.Context())
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	out := make([]userPayload, 0, len(accs))
	for _, a := range accs {
		out = append(out, accountPayload(a))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// handleCreateUser creates an account without a password; the first login
// drops the new user into the forced password setup.
func (s *Server) handleCreateUser(c *gin.Context) {
	actor, _ := identityFrom(c)
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and role are required"})
		return
	}

	acc, err := s.accounts.Create(c.Request.Context(), actor, req.Username, model.Role(req.Role), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username or role"})
		case errors.Is(err, errs.ErrAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "username is already taken"})
		default:
			s.writeServiceError(c, err)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": accountPayload(*acc)})
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	actor, _ := identityFrom(c)
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	acc, err := s.accounts.Update(c.Request.Context(), actor, id, service.AccountUpdate{
		Username:    req.Username,
		Role:        model.Role(req.Role),
		NewPassword: req.NewPassword,
	}, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username or role"})
		case errors.Is(err, errs.ErrWeakSecret):
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		case errors.Is(err, errs.ErrAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "username is already taken"})
		default:
			s.writeServiceError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": accountPayload(*acc)})
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	actor, _ := identityFrom(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.accounts.Delete(c.Request.Context(), actor, id, c.ClientIP(), c.Request.UserAgent()); err != nil {
		if errors.Is(err, service.ErrSelfDelete) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete your own account"})
			return
		}
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleResetPassword clears the target's credential so their next login goes
// through the bootstrap flow again.
func (s *Server) handleResetPassword(c *gin.Context) {
	actor, _ := identityFrom(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.accounts.ForceResetPassword(c.Request.Context(), actor, id, c.ClientIP(), c.Request.UserAgent()); err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return id, true
}
