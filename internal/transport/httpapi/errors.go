package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
)

const internalErrorMessage = "internal server error"

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor переводит ошибку сервиса в HTTP-код.
func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает ошибкой. Детали внутренних ошибок остаются в логе.
func writeError(c *gin.Context, logger *log.Entry, err error) {
	status := statusFor(err)
	response := errorResponse{Error: err.Error(), RequestID: requestIDFrom(c)}
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"request_id": response.RequestID,
		}).Error("request failed")
		response.Error = internalErrorMessage
	}
	c.AbortWithStatusJSON(status, response)
}

// badRequest отвечает 400 на ошибку разбора запроса.
func badRequest(c *gin.Context, field string, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:     domain.NewValidation(field, err.Error()).Error(),
		RequestID: requestIDFrom(c),
	})
}
