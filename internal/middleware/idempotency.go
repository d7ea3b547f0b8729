package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/auth"
	"github.com/fekuna/omnipos-ledger-service/internal/response"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxKeyLength = 255
)

// Store is the key/value surface the middleware needs. *cache.RedisClient satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type IdempotencyConfig struct {
	// Retention is how long a successful response is replayed.
	Retention time.Duration
	// LockTTL bounds how long an in-flight request holds its key.
	LockTTL time.Duration
}

func DefaultIdempotencyConfig() *IdempotencyConfig {
	return &IdempotencyConfig{
		Retention: 24 * time.Hour,
		LockTTL:   30 * time.Second,
	}
}

type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a POST carrying an Idempotency-Key that was
// already served successfully. Keys are scoped to the actor and route. Failed responses are
// not stored, so the caller can retry with the same key.
func Idempotency(store Store, cfg *IdempotencyConfig, log logger.ZapLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxKeyLength {
			response.BadRequest(c, "Idempotency-Key exceeds 255 characters")
			c.Abort()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				log.Warn("failed to read request body", zap.String("key", key), zap.Error(err))
				response.BadRequest(c, "Failed to read request body")
				c.Abort()
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		sum := sha256.Sum256(body)
		fingerprint := hex.EncodeToString(sum[:])

		ctx := c.Request.Context()
		scope := "idem:" + auth.GetUserID(ctx) + ":" + c.FullPath() + ":" + key

		raw, err := store.Get(ctx, scope)
		if err != nil {
			unavailable(c, log, err)
			return
		}
		if raw != nil {
			replay(c, log, raw, fingerprint, key)
			return
		}

		lockKey := scope + ":lock"
		token := uuid.New().String()
		ok, err := store.AcquireLock(ctx, lockKey, token, cfg.LockTTL)
		if err != nil {
			unavailable(c, log, err)
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, response.Body{
				Status:  response.StatusError,
				Message: "A request with this Idempotency-Key is still being processed",
				Code:    "IDEMPOTENCY_IN_PROGRESS",
			})
			return
		}
		defer func() {
			if err := store.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				log.Warn("failed to release idempotency lock", zap.String("key", key), zap.Error(err))
			}
		}()

		w := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()

		if !succeeded(w.Status(), w.body.Bytes()) {
			return
		}
		record, err := json.Marshal(storedResponse{
			Fingerprint: fingerprint,
			StatusCode:  w.Status(),
			Body:        w.body.Bytes(),
		})
		if err == nil {
			err = store.Set(context.WithoutCancel(ctx), scope, record, cfg.Retention)
		}
		if err != nil {
			log.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}
	}
}

func replay(c *gin.Context, log logger.ZapLogger, raw []byte, fingerprint, key string) {
	var rec storedResponse
	if err := json.Unmarshal(raw, &rec); err != nil {
		unavailable(c, log, err)
		return
	}
	if rec.Fingerprint != fingerprint {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, response.Body{
			Status:  response.StatusError,
			Message: "Request body differs from the original request with this Idempotency-Key",
			Code:    "IDEMPOTENCY_PARAMETER_MISMATCH",
		})
		return
	}

	log.Info("idempotent replay", zap.String("key", key), zap.String("path", c.FullPath()))
	c.Header(HeaderReplayed, "true")
	c.Data(rec.StatusCode, "application/json; charset=utf-8", rec.Body)
	c.Abort()
}

func unavailable(c *gin.Context, log logger.ZapLogger, err error) {
	log.Error("idempotency store unavailable", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.Body{
		Status:  response.StatusError,
		Message: "Idempotency storage is temporarily unavailable",
		Code:    "IDEMPOTENCY_STORAGE_UNAVAILABLE",
	})
}

// succeeded reports whether the handler committed. Business failures are written with HTTP 200
// and status "error", so the body decides.
func succeeded(status int, body []byte) bool {
	if status < 200 || status >= 300 {
		return false
	}
	var envelope struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.Status == response.StatusSuccess
}
