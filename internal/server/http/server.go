// Package httpserver exposes the authentication core over HTTP.
package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jdvries/sampletrack/internal/audit"
	"github.com/jdvries/sampletrack/internal/model"
	"github.com/jdvries/sampletrack/internal/service"
)

// sessionCookie carries the signed session token. httpOnly so scripts never
// see it; the token itself is the session.
const sessionCookie = "sampletrack_session"

// storeTimeout bounds every request that touches the credential or audit
// store, so no handler blocks indefinitely on an outage.
const storeTimeout = 5 * time.Second

// TokenParser validates session tokens back into an Identity.
type TokenParser interface {
	Parse(token string) (model.Identity, error)
}

// AuditQuerier serves read access to the audit trail.
type AuditQuerier interface {
	Query(ctx context.Context, f audit.Filter) ([]model.AuditRecord, error)
}

// Server wires services into gin handlers.
type Server struct {
	auth     service.AuthService
	accounts service.AccountService
	trail    AuditQuerier
	sessions TokenParser
	log      *zap.Logger

	cookieSecure bool
	cookieMaxAge int // seconds
}

// New constructs the HTTP server facade.
func New(auth service.AuthService, accounts service.AccountService, trail AuditQuerier, sessions TokenParser, sessionTTL time.Duration, cookieSecure bool, log *zap.Logger) *Server {
	return &Server{
		auth:         auth,
		accounts:     accounts,
		trail:        trail,
		sessions:     sessions,
		log:          log,
		cookieSecure: cookieSecure,
		cookieMaxAge: int(sessionTTL / time.Second),
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestLog(), requestTimeout(storeTimeout))

	api := r.Group("/api")

	// Public.
	api.POST("/auth/login", s.handleLogin)
	api.GET("/auth/session", s.handleSession)
	// Logout and set-password are the only endpoints a bootstrap session may
	// reach; logout also tolerates a missing session (clearing is idempotent).
	api.POST("/auth/logout", s.handleLogout)
	api.POST("/auth/set-password", s.authenticate(), s.handleSetPassword)

	// Everything else requires a full (non-bootstrap) session; the bootstrap
	// check runs per request, not just at login.
	admin := api.Group("", s.authenticate(), s.blockBootstrap(), s.requireAdmin())
	{
		admin.GET("/users", s.handleListUsers)
		admin.POST("/users", s.handleCreateUser)
		admin.PUT("/users/:id", s.handleUpdateUser)
		admin.DELETE("/users/:id", s.handleDeleteUser)
		admin.POST("/users/:id/reset-password", s.handleResetPassword)
		admin.GET("/audit-logs", s.handleAuditLogs)
	}

	return r
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(sessionCookie, token, s.cookieMaxAge, "/", "", s.cookieSecure, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", s.cookieSecure, true)
}
