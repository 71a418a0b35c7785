package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/assetcart/api/responses"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
	pkgredis "github.com/angelmondragon/assetcart/pkg/redis"
)

const defaultReplayTTL = 7 * 24 * time.Hour

const (
	// IdempotencyKeyHeader names the client-chosen key for replay-safe requests.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader is set on responses served from a stored record.
	IdempotentReplayHeader = "Idempotent-Replayed"
)

// storedResponse is what a keyed request leaves behind in Redis.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency replays the first 2xx response recorded for an Idempotency-Key.
// Mount it on individual routes; keys are scoped to shopper session, method and path.
// A nil store turns it into a pass-through.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultReplayTTL
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintBody(body)
			key := store.IdempotencyKey(replayScope(r), clientKey)

			prior, found, err := loadStoredResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if found {
				if prior.Fingerprint != fingerprint {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
					return
				}
				prior.replay(w)
				return
			}

			capture := &capturingWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status < 200 || status >= 300 {
				// rejections keep the key open so the client can retry
				return
			}
			record := storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				Fingerprint: fingerprint,
			}
			payload, err := json.Marshal(record)
			if err != nil {
				logg.Error(ctx, "idempotency.encode_failed", err)
				return
			}
			if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func loadStoredResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (storedResponse, bool, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return storedResponse{}, false, nil
	}
	if err != nil {
		return storedResponse{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up idempotency key")
	}
	var record storedResponse
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return storedResponse{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return record, true, nil
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func replayScope(r *http.Request) string {
	return strings.Join([]string{SessionIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type capturingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *capturingWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *capturingWriter) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
