package middleware

import (
	"net/http"
	"strings"

	pkgAuth "github.com/angelmondragon/assetcart/pkg/auth"
	"github.com/angelmondragon/assetcart/pkg/config"
	"github.com/angelmondragon/assetcart/pkg/logger"
)

// Identity reads an optional bearer token from the identity provider. A
// missing or invalid token never fails the request; the shopper simply
// checks out without prefilled details.
func Identity(cfg config.IdentityConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := pkgAuth.ParseIdentityToken(cfg, token)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "identity.token_ignored")
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithIdentity(r.Context(), claims.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
