package routes

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"docsign/internal/audit"
	"docsign/internal/documents"
	"docsign/internal/logger"
	"docsign/internal/models"
	"docsign/internal/signature"
	"docsign/internal/templates"
	"docsign/internal/validation"
)

const sessionActorKey = "actor"

// ServerInterface defines the methods route handlers need from the server.
type ServerInterface interface {
	GetTemplates() *templates.Service
	GetDocuments() *documents.Service
	GetSignatures() *signature.Engine
	GetValidation() *validation.Service
	GetAudit() *audit.Recorder
	GetLogger() *logger.Logger
}

// AuthRoutes identifies the acting user for the audit trail. Credentials are
// checked upstream; the session only carries the actor name.
type AuthRoutes struct {
	server ServerInterface
}

func NewAuthRoutes(server ServerInterface) *AuthRoutes {
	return &AuthRoutes{server: server}
}

func (ar *AuthRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(ar.server)

	r.POST("/session", ar.loginHandler)
	r.GET("/session", middleware.ActorMiddleware(), ar.sessionHandler)
	r.DELETE("/session", middleware.ActorMiddleware(), ar.logoutHandler)
}

func (ar *AuthRoutes) loginHandler(c *gin.Context) {
	var req struct {
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "actor is required")
		return
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		badRequest(c, "actor is required")
		return
	}

	err := ar.server.GetAudit().Record(c.Request.Context(), nil, audit.Event{
		Actor:      actor,
		Action:     models.ActionLogin,
		EntityType: models.EntitySession,
		EntityID:   actor,
	})
	if err != nil {
		respondError(c, ar.server.GetLogger(), err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionActorKey, actor)
	if err := session.Save(); err != nil {
		ar.server.GetLogger().Error("failed to save session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"actor": actor})
}

func (ar *AuthRoutes) sessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actor": actorFrom(c), "authenticated": true})
}

func (ar *AuthRoutes) logoutHandler(c *gin.Context) {
	actor := actorFrom(c)
	err := ar.server.GetAudit().Record(c.Request.Context(), nil, audit.Event{
		Actor:      actor,
		Action:     models.ActionLogout,
		EntityType: models.EntitySession,
		EntityID:   actor,
	})
	if err != nil {
		respondError(c, ar.server.GetLogger(), err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		ar.server.GetLogger().Error("failed to clear session", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
