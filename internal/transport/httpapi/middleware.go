package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID берёт X-Request-ID из запроса или выдаёт новый и возвращает его в ответе.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// accessLog пишет одну запись на запрос. Уровень зависит от кода ответа.
func accessLog(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(started).Milliseconds(),
			"request_id": requestIDFrom(c),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("http request")
		case status >= http.StatusBadRequest:
			entry.Warn("http request")
		default:
			entry.Info("http request")
		}
	}
}

// recovery превращает panic в обработчике в 500 без деталей для клиента.
func recovery(logger *log.Entry) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.WithFields(log.Fields{
			"panic":      recovered,
			"path":       c.Request.URL.Path,
			"request_id": requestIDFrom(c),
		}).Error("panic in http handler")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: internalErrorMessage})
	})
}

// observe снимает метрики запроса по шаблону маршрута.
func observe(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		started := time.Now()
		m.RequestStarted()
		c.Next()
		m.RequestFinished(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(started))
	}
}
