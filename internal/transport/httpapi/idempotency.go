package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/metrics"
)

const (
	idempotencyKeyHeader      = "Idempotency-Key"
	idempotentReplayedHeader  = "Idempotent-Replayed"
	defaultIdempotencyTTL     = 24 * time.Hour
	idempotencyProcessingText = "request with this Idempotency-Key is still processing"
	idempotencyMismatchText   = "Idempotency-Key is already used with a different request"
)

// captureWriter дублирует тело ответа в буфер, чтобы сохранить его для повторов.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotency делает POST-создание повторяемым по заголовку Idempotency-Key.
// Успешный ответ и ответ 4xx сохраняются и отдаются повторно с Idempotent-Replayed: true;
// после 5xx или panic ключ освобождается.
func idempotency(repo domain.IdempotencyRepository, ttl time.Duration, m *metrics.IdempotencyMetrics, logger *log.Entry) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(c *gin.Context) {
		header := c.GetHeader(idempotencyKeyHeader)
		if c.Request.Method != http.MethodPost || c.FullPath() == "" || header == "" {
			c.Next()
			return
		}

		key, err := domain.NormalizeIdempotencyKey(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error(), RequestID: requestIDFrom(c)})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			badRequest(c, "body", err)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		existing, err := repo.CreateProcessing(ctx, key, requestHash(c.Request.Method, c.Request.URL.Path, body), time.Now().UTC().Add(ttl))
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrIdempotencyHashMismatch):
			m.RecordRequest(metrics.IdempotencyConflict)
			c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: idempotencyMismatchText, RequestID: requestIDFrom(c)})
			return
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
			if existing.Status == domain.IdempotencyStatusProcessing {
				m.RecordRequest(metrics.IdempotencyConflict)
				c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: idempotencyProcessingText, RequestID: requestIDFrom(c)})
				return
			}
			m.RecordRequest(metrics.IdempotencyReplayed)
			c.Header(idempotentReplayedHeader, "true")
			c.Data(existing.HTTPStatus, gin.MIMEJSON+"; charset=utf-8", existing.ResponseBody)
			c.Abort()
			return
		default:
			writeError(c, logger, err)
			return
		}

		entry := logger.WithFields(log.Fields{
			"idempotency_key": key,
			"request_id":      requestIDFrom(c),
		})
		// Запись ответа не должна срываться из-за отключившегося клиента.
		recordCtx := context.WithoutCancel(ctx)

		completed := false
		defer func() {
			if completed {
				return
			}
			if err := repo.Delete(recordCtx, key); err != nil {
				entry.WithError(err).Warn("release idempotency key after panic")
			}
		}()

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()
		completed = true

		status := writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			m.RecordRequest(metrics.IdempotencyReleased)
			err = repo.Delete(recordCtx, key)
		case status >= http.StatusBadRequest:
			m.RecordRequest(metrics.IdempotencyStored)
			err = repo.MarkFailed(recordCtx, key, writer.body.Bytes(), status)
		default:
			m.RecordRequest(metrics.IdempotencyStored)
			err = repo.MarkDone(recordCtx, key, writer.body.Bytes(), status)
		}
		if err != nil {
			entry.WithError(err).WithField("status", status).Warn("store idempotent response")
		}
	}
}

func requestHash(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method + " " + path + ":"))
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}
