package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docsign/internal/models"
)

const maxAuditLimit = 500

type AuditRoutes struct {
	server ServerInterface
}

func NewAuditRoutes(server ServerInterface) *AuditRoutes {
	return &AuditRoutes{server: server}
}

func (ar *AuditRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(ar.server)

	r.GET("/audit", middleware.ActorMiddleware(), ar.searchAuditHandler)
}

// searchAuditHandler lists audit entries with their field changes. Filters:
// entity_type, entity_id, actor, action and limit (default 50).
func (ar *AuditRoutes) searchAuditHandler(c *gin.Context) {
	filter := models.AuditFilter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Actor:      c.Query("actor"),
		Action:     models.AuditAction(c.Query("action")),
		Limit:      50,
	}
	if filter.Action != "" && !filter.Action.Valid() {
		badRequest(c, "Invalid action")
		return
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit < 1 {
			badRequest(c, "Invalid limit")
			return
		}
		filter.Limit = min(parsedLimit, maxAuditLimit)
	}

	entries, err := ar.server.GetAudit().Search(c.Request.Context(), filter)
	if err != nil {
		respondError(c, ar.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
