package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/assetcart/api/responses"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/logger"
)

const (
	// SessionIDHeader carries the anonymous shopper session between requests.
	SessionIDHeader = "X-Session-Id"
	requestIDHeader = "X-Request-Id"
)

const maxClientIDLength = 128

// clientID reads an opaque id supplied by the caller. ok is false when the
// value could not be used as a Redis key segment.
func clientID(r *http.Request, header string) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(header))
	if len(id) > maxClientIDLength || strings.ContainsAny(id, ": \t") {
		return "", false
	}
	return id, true
}

// ShopperSession resolves the shopper session id, issuing a new one when the
// client has none yet. The id is echoed back on every response.
func ShopperSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, ok := clientID(r, SessionIDHeader)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid session id").WithDetails(map[string]string{
					"header": SessionIDHeader,
				}))
				return
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			w.Header().Set(SessionIDHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestID tags the request log context with the caller's X-Request-Id, or a
// fresh one when it is missing or unusable.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID, ok := clientID(r, requestIDHeader)
			if !ok || reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
