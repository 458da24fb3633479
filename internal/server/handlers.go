package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/auth"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/database"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/session"
)

// maxQuizBody bounds the quiz snapshot accepted at session creation
const maxQuizBody = 1 << 20

// handleHealth reports liveness plus the live session census
func (s *Server) handleHealth(c *gin.Context) {
	counts := s.sessions.CountByStatus()
	byStatus := make(map[string]int, len(counts))
	total := 0
	for status, n := range counts {
		byStatus[status.String()] = n
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"sessions":  total,
		"by_status": byStatus,
		"sockets":   s.registry.Count(),
	})
}

// handleGetSession is the read-side bootstrap: the current snapshot of
// one session, without joining it
func (s *Server) handleGetSession(c *gin.Context) {
	code := c.Param("code")
	state, err := s.sessions.GetOrLoad(code)
	if err != nil {
		e := session.AsError(err)
		if e.Code == protocol.ErrSessionNotFound {
			apiError(c, http.StatusNotFound, string(e.Code), e.Message)
			return
		}
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":      state.StatePayload(),
		"stateVersion": state.CurrentVersion(),
	})
}

// handleRejoinLookup validates a rejoin token and returns the identity
// it binds to. Tokens are single use: a successful lookup consumes the
// token, exactly like redeeming it over the socket.
func (s *Server) handleRejoinLookup(c *gin.Context) {
	token := c.Param("token")
	ticket, err := s.cache.ConsumeRejoinTicket(token)
	if err != nil {
		c.Error(err)
		return
	}
	if ticket == nil {
		apiError(c, http.StatusNotFound, string(protocol.ErrRejoinTokenExpired), "token is expired or already used")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionCode": ticket.SessionCode,
		"playerId":    ticket.PlayerID,
		"playerName":  ticket.PlayerName,
		"avatar":      ticket.Avatar,
	})
}

// handleListSessions lists persisted sessions with paging and an
// optional status filter
func (s *Server) handleListSessions(c *gin.Context) {
	params := GetPaginationParams(c)
	records, total, err := s.db.ListSessions(database.SessionFilter{
		Status:   c.Query("status"),
		Page:     params.Page,
		PageSize: params.PageSize,
	})
	if err != nil {
		c.Error(err)
		return
	}
	params.Total = total
	SendPaginatedResponse(c, params, records)
}

// requirePlatformSecret guards the internal platform-facing endpoints
func (s *Server) requirePlatformSecret(c *gin.Context) {
	if s.cfg.PlatformSecret == "" || c.GetHeader("X-Platform-Secret") != s.cfg.PlatformSecret {
		apiError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid platform secret")
		return
	}
	c.Next()
}

// handleCreateSession mints a session around the posted quiz snapshot.
// The host key is returned once and only its hash is kept.
func (s *Server) handleCreateSession(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxQuizBody))
	if err != nil {
		apiError(c, http.StatusBadRequest, string(protocol.ErrPayloadInvalid), "failed to read request body")
		return
	}

	hostKey, err := auth.GenerateHostKey()
	if err != nil {
		c.Error(err)
		return
	}
	hostKeyHash, err := auth.HashHostKey(hostKey)
	if err != nil {
		c.Error(err)
		return
	}

	state, err := s.sessions.Create(body, hostKeyHash)
	if err != nil {
		e := session.AsError(err)
		if e.Code == protocol.ErrPayloadInvalid {
			apiError(c, http.StatusBadRequest, string(e.Code), e.Message)
			return
		}
		c.Error(err)
		return
	}

	hostToken, err := s.auth.GenerateHostToken(state.Code)
	if err != nil {
		c.Error(err)
		return
	}

	logging.LogSessionEvent("session_provisioned", state.Code, nil)
	c.JSON(http.StatusCreated, gin.H{
		"code":      state.Code,
		"hostKey":   hostKey,
		"hostToken": hostToken,
	})
}

// handleArchiveSession retires a session on behalf of the platform
func (s *Server) handleArchiveSession(c *gin.Context) {
	code := c.Param("code")
	if err := s.supervisor.ArchiveSession(code); err != nil {
		e := session.AsError(err)
		switch e.Code {
		case protocol.ErrSessionNotFound:
			apiError(c, http.StatusNotFound, string(e.Code), e.Message)
		case protocol.ErrWrongState, protocol.ErrSessionArchived:
			apiError(c, http.StatusConflict, string(e.Code), e.Message)
		default:
			c.Error(err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "status": "ARCHIVED"})
}
