package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/transferengine/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayHeader marks a response served from the replay store.
	ReplayHeader = "X-Idempotency-Replay"

	defaultIdempotencyTTL = 24 * time.Hour
	processingMarker      = "processing"
)

// IdempotencyMiddleware replays the stored response of a settled request
// with its original status code. A duplicate that arrives while the first
// is still running goes through to the handler, where the journal resolves
// it. Only settled outcomes are stored; a 202 releases the key.
type IdempotencyMiddleware struct {
	store  usecase.IdempotencyStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration, logger zerolog.Logger) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl, logger: logger}
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(IdempotencyKeyHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := m.scopedKey(r, header)
		ctx := r.Context()

		exists, cached, err := m.store.CheckAndSet(ctx, key, nil, m.ttl)
		if err != nil {
			m.logger.Error().Err(err).Msg("idempotency check failed")
			writeJSONError(w, http.StatusInternalServerError, "idempotency check failed")
			return
		}

		if exists {
			stored, ok := decodeStoredResponse(cached)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(ReplayHeader, "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		if settled(recorder.statusCode) {
			value, err := json.Marshal(storedResponse{Status: recorder.statusCode, Body: recorder.body.Bytes()})
			if err == nil {
				err = m.store.Update(ctx, key, value, m.ttl)
			}
			if err == nil {
				return
			}
			m.logger.Warn().Err(err).Msg("failed to store idempotent response")
		}

		if err := m.store.Release(ctx, key); err != nil {
			m.logger.Warn().Err(err).Msg("failed to release idempotency key")
		}
	})
}

// storedResponse is the value kept under a settled key.
type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// decodeStoredResponse reports false for the processing marker or any
// value that is not a stored response.
func decodeStoredResponse(value []byte) (storedResponse, bool) {
	if value == nil || string(value) == processingMarker {
		return storedResponse{}, false
	}
	var stored storedResponse
	if err := json.Unmarshal(value, &stored); err != nil || stored.Status == 0 {
		return storedResponse{}, false
	}
	return stored, true
}

// settled reports whether a response is final. 202 means the outcome is
// still unknown and must not be replayed.
func settled(status int) bool {
	if status == http.StatusAccepted {
		return false
	}
	return (status >= 200 && status < 300) || status == http.StatusUnprocessableEntity
}

// scopedKey keeps one caller's key from colliding with another's.
func (m *IdempotencyMiddleware) scopedKey(r *http.Request, key string) string {
	owner := "anonymous"
	if user, ok := GetUserFromContext(r.Context()); ok {
		owner = user.ID
	}
	return owner + ":" + r.Method + ":" + r.URL.Path + ":" + key
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
