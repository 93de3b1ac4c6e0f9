package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsign/internal/apperr"
)

// ValidationRoutes is the public authenticity check printed on signed
// documents. It needs no session.
type ValidationRoutes struct {
	server ServerInterface
}

func NewValidationRoutes(server ServerInterface) *ValidationRoutes {
	return &ValidationRoutes{server: server}
}

func (vr *ValidationRoutes) RegisterRoutes(r *gin.Engine) {
	r.GET("/validate/:code", vr.validateHandler)
}

func (vr *ValidationRoutes) validateHandler(c *gin.Context) {
	summary, err := vr.server.GetValidation().Lookup(c.Request.Context(), c.Param("code"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"document": summary})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
	default:
		vr.server.GetLogger().Error("validation lookup failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to load document"})
	}
}
