package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	apperrors "github.com/jwalitptl/salon-api/pkg/errors"
)

const (
	HeaderIdempotencyKey   = "Idempotency-Key"
	HeaderIdempotentReplay = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
)

type storedResponse struct {
	status      int
	contentType string
	body        []byte
}

type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyStore remembers successful responses by tenant and Idempotency-Key.
type IdempotencyStore struct {
	cache *expirable.LRU[string, storedResponse]
}

func NewIdempotencyStore(size int, ttl time.Duration) *IdempotencyStore {
	if size <= 0 {
		size = 10000
	}
	return &IdempotencyStore{cache: expirable.NewLRU[string, storedResponse](size, nil, ttl)}
}

// Idempotency replays the stored response when a request repeats a key that
// already succeeded. Failed responses are not stored, so the client may retry.
func (s *IdempotencyStore) Idempotency() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			abort(c, http.StatusBadRequest, apperrors.ErrBadRequest, "idempotency key too long")
			return
		}

		tenantID, _ := TenantID(c)
		cacheKey := tenantID.String() + ":" + c.FullPath() + ":" + key

		if stored, ok := s.cache.Get(cacheKey); ok {
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(stored.status, stored.contentType, stored.body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		// Errors are rendered later by ErrorHandler, so an unwritten response is not a success.
		if status := rec.Status(); rec.Written() && len(c.Errors) == 0 && status >= 200 && status < 300 {
			s.cache.Add(cacheKey, storedResponse{
				status:      status,
				contentType: rec.Header().Get("Content-Type"),
				body:        rec.body.Bytes(),
			})
		}
	}
}
