package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/internal/authn"
	"github.com/directoryhub/directory-services/models"
)

type contextKey string

const IdentityKey contextKey = "identity"

// BasicAuth resolves the request's Basic credentials against the store
// and adds the resulting identity to the request context. Every request
// re-authenticates; there is no session state.
func BasicAuth(store authn.AccountFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				logger := zerolog.Ctx(r.Context()).With().
					Str("handler", "BasicAuth").Logger()

				username, password, ok := r.BasicAuth()
				if !ok {
					logger.Debug().Msg("authorization header missing")
					writeAuthError(w, apperrors.New(apperrors.Unauthenticated,
						"basic authorization header missing"))
					return
				}

				identity, err := authn.Resolve(r.Context(), store, username, password)
				if err != nil {
					logger.Warn().Err(err).Str("username", username).Msg("authentication failed")
					writeAuthError(w, err)
					return
				}

				ctx := context.WithValue(r.Context(), IdentityKey, identity)
				next.ServeHTTP(w, r.WithContext(ctx))
			},
		)
	}
}

// WithLogger adds a logger to the context and logs request information.
func WithLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			logger := log.With().
				Str("host", r.Host).
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Str("remote_addr", r.RemoteAddr).
				Time("timestamp", time.Now()).
				Logger()

			// Add the logger to the context
			ctx := logger.WithContext(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		},
	)
}

// WithTimeout sets a per-request deadline so in-flight store calls are
// cancelled when a request overstays.
func WithTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				ctx, cancel := context.WithTimeout(r.Context(), d)
				defer cancel()
				next.ServeHTTP(w, r.WithContext(ctx))
			},
		)
	}
}

// IdentityFrom extracts the resolved identity from the request context.
func IdentityFrom(ctx context.Context) (authn.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(authn.Identity)
	return identity, ok
}

func writeAuthError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	if kind == "" {
		kind = apperrors.StoreUnavailable
	}
	if kind == apperrors.Unauthenticated || kind == apperrors.InvalidCredential {
		w.Header().Set("WWW-Authenticate", `Basic realm="directory-services"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(models.Response{
		ErrorCode:    string(kind),
		ErrorDetails: apperrors.DetailOf(err),
	})
}
