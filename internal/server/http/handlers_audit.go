package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdvries/sampletrack/internal/audit"
	"github.com/jdvries/sampletrack/internal/model"
)

type auditPayload struct {
	ID        int64  `json:"id"`
	AccountID string `json:"accountId,omitempty"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Success   bool   `json:"success"`
	CreatedAt string `json:"createdAt"`
}

func auditRecordPayload(r model.AuditRecord) auditPayload {
	p := auditPayload{
		ID:        r.ID,
		Username:  r.Username,
		Action:    r.Action,
		Detail:    r.Detail,
		IP:        r.IP,
		UserAgent: r.UserAgent,
		Success:   r.Success,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.AccountID.Valid {
		p.AccountID = r.AccountID.UUID.String()
	}
	return p
}

// handleAuditLogs serves the audit trail, newest first. The limit is defaulted
// and capped in the audit layer; a malformed limit falls back to the default.
func (s *Server) handleAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	recs, err := s.trail.Query(c.Request.Context(), audit.Filter{
		Action:           c.Query("action"),
		UsernameContains: c.Query("username"),
		Limit:            limit,
	})
	if err != nil {
		s.writeServiceError(c, err)
		return
	}

	out := make([]auditPayload, 0, len(recs))
	for _, r := range recs {
		out = append(out, auditRecordPayload(r))
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}
