package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	idempotencyTTL       = 24 * time.Hour
	maxIdempotencyKeyLen = 128
)

// CachedResponse stores the response for idempotent requests.
type CachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// IdempotencyStore keeps responses of requests carrying an Idempotency-Key.
// Get returns nil, nil on a miss.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error
}

// RedisIdempotencyStore is the Redis implementation of IdempotencyStore.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisIdempotencyStore creates a store whose keys are scoped to meterID.
func NewRedisIdempotencyStore(client *redis.Client, meterID string) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: "idempotency:" + meterID + ":"}
}

// Get retrieves a cached response.
func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

// Set stores a response in Redis.
func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, s.prefix+key, data, ttl).Err()
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a mutating request
// that is retried with the same Idempotency-Key, so a retried start, fix or
// end is applied to the meter only once.
func IdempotencyMiddleware(store IdempotencyStore, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to mutating methods.
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "idempotency key too long"})
			return
		}

		ctx := c.Request.Context()
		cacheKey := c.Request.Method + ":" + c.FullPath() + ":" + key

		cached, err := store.Get(ctx, cacheKey)
		if err != nil {
			// Store unavailable - proceed without idempotency.
			log.WithError(err).Warn("idempotency lookup failed")
			c.Next()
			return
		}

		if cached != nil {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header(replayedHeader, "true")
			contentType := cached.Headers.Get("Content-Type")
			if contentType == "" {
				contentType = "application/json"
			}
			c.Data(cached.StatusCode, contentType, cached.Body)
			c.Abort()
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Only successful outcomes are replayed; errors are recomputed on retry.
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			response := CachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := store.Set(ctx, cacheKey, &response, idempotencyTTL); err != nil {
				log.WithError(err).Warn("idempotency store failed")
			}
		}
	}
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	// Only cache Content-Type header.
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
