package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dakshx9/IconCanvas/internal/auth"
	"github.com/dakshx9/IconCanvas/internal/collab"
)

var (
	errMissingStore         = errors.New("shared state store dependency required")
	errMissingBroker        = errors.New("broker dependency required")
	errMissingInviteIssuer  = errors.New("invite issuer dependency required")
	errMissingMemberID      = errors.New("memberId query parameter required")
	errSessionCodeMismatch  = errors.New("event session code does not match channel")
	errEventSenderMismatch  = errors.New("event sender does not match channel member")
	errUnknownInboundSender = errors.New("inbound frame carries no member id")
)

// Dependencies wires the relay's HTTP surface.
type Dependencies struct {
	Store      collab.Store
	Broker     collab.Broker
	Invites    *auth.InviteIssuer
	IDProvider collab.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// NewHTTPHandler builds the relay router: session lifecycle endpoints plus
// the websocket attach point for event fan-out.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Broker == nil {
		return nil, errMissingBroker
	}
	if deps.Invites == nil {
		return nil, errMissingInviteIssuer
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := deps.IDProvider
	if ids == nil {
		ids = collab.NewUUIDProvider()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		store:   deps.Store,
		broker:  deps.Broker,
		invites: deps.Invites,
		ids:     ids,
		clock:   clock,
		logger:  logger,
	}

	router.POST("/sessions", handler.handleCreateSession)
	router.POST("/sessions/join", handler.handleJoinSession)
	router.GET("/sessions/:code", handler.handleGetSession)
	router.GET("/sessions/:code/members", handler.handleListMembers)
	router.DELETE("/sessions/:code", handler.handleDeleteSession)
	router.GET("/ws/:code", handler.handleWebSocket)

	return router, nil
}

type httpHandler struct {
	store   collab.Store
	broker  collab.Broker
	invites *auth.InviteIssuer
	ids     collab.IDProvider
	clock   func() time.Time
	logger  *zap.Logger
}

type createSessionPayload struct {
	Name       string `json:"name"`
	MemberName string `json:"memberName"`
}

type createSessionResponse struct {
	Code        string          `json:"code"`
	InviteToken string          `json:"inviteToken"`
	ExpiresIn   int64           `json:"expiresIn"`
	Session     *collab.Session `json:"session"`
	Member      collab.Member   `json:"member"`
}

func (h *httpHandler) handleCreateSession(c *gin.Context) {
	var request createSessionPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.MemberName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	memberID, err := h.ids.NewID()
	if err != nil {
		h.logger.Error("failed to generate member id", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "id_generation_failed"})
		return
	}

	code := collab.GenerateSessionCode()
	now := h.clock().UTC().UnixMilli()
	host := collab.NewMember(memberID, request.MemberName, collab.GenerateMemberIdentity(), true, now)
	session := collab.NewSession(code, strings.TrimSpace(request.Name), host, now)

	if err := h.store.PutSession(c.Request.Context(), session); err != nil {
		h.logger.Error("failed to persist session", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_persist_failed"})
		return
	}

	inviteToken, expiresIn, err := h.invites.IssueInvite(code)
	if err != nil {
		h.logger.Error("failed to issue invite", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invite_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, createSessionResponse{
		Code:        code,
		InviteToken: inviteToken,
		ExpiresIn:   expiresIn,
		Session:     session,
		Member:      host,
	})
}

type joinSessionPayload struct {
	Code        string `json:"code"`
	InviteToken string `json:"inviteToken"`
	MemberName  string `json:"memberName"`
}

type joinSessionResponse struct {
	Session *collab.Session `json:"session"`
	Member  collab.Member   `json:"member"`
}

func (h *httpHandler) handleJoinSession(c *gin.Context) {
	var request joinSessionPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.MemberName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	rawCode := request.Code
	if request.InviteToken != "" {
		resolved, err := h.invites.ValidateInvite(request.InviteToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_invite"})
			return
		}
		rawCode = resolved
	}

	code, err := collab.NormalizeSessionCode(rawCode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_code"})
		return
	}

	session, err := h.store.GetSession(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("session lookup failed", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_lookup_failed"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}

	memberID, err := h.ids.NewID()
	if err != nil {
		h.logger.Error("failed to generate member id", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "id_generation_failed"})
		return
	}

	now := h.clock().UTC().UnixMilli()
	member := collab.NewMember(memberID, request.MemberName, collab.GenerateMemberIdentity(), false, now)
	session.AddMember(member)

	if err := h.store.PutSession(c.Request.Context(), session); err != nil {
		h.logger.Error("failed to persist session", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_persist_failed"})
		return
	}

	c.JSON(http.StatusOK, joinSessionResponse{Session: session, Member: member})
}

func (h *httpHandler) handleGetSession(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *httpHandler) handleListMembers(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": session.Members})
}

func (h *httpHandler) handleDeleteSession(c *gin.Context) {
	code, err := collab.NormalizeSessionCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_code"})
		return
	}
	if err := h.store.DeleteSession(c.Request.Context(), code); err != nil {
		h.logger.Error("session delete failed", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) lookupSession(c *gin.Context) (*collab.Session, bool) {
	code, err := collab.NormalizeSessionCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_code"})
		return nil, false
	}
	session, err := h.store.GetSession(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("session lookup failed", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_lookup_failed"})
		return nil, false
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return nil, false
	}
	return session, true
}
