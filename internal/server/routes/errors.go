package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docsign/internal/apperr"
	"docsign/internal/logger"
)

// respondError writes err as a JSON error body. Store and integration
// failures are logged and answered with a generic message.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
		msg := "Internal server error"
		if status == http.StatusServiceUnavailable {
			msg = "Service temporarily unavailable"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	body := gin.H{"error": publicMessage(err)}
	if field := apperr.FieldOf(err); field != "" {
		body["field"] = field
	}
	c.JSON(status, body)
}

func publicMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return err.Error()
}

// badRequest answers a request body or parameter that could not be parsed.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// paramUUID parses the named path parameter, answering 400 when it is not a
// UUID.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
