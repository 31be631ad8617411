package middleware

import (
	"crypto/subtle"
	"net/http"

	errors "github.com/referralkit/commission-ledger/internal"
	"github.com/referralkit/commission-ledger/pkg/logger"
)

// ActorContext stores the operator id from X-Actor-ID for audit fields on
// admin transitions. Services reject mutations with no actor, so a missing
// header fails at the service layer with a clear validation error rather
// than here.
func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := r.Header.Get("X-Actor-ID")

		ctx := errors.ContextWithActor(r.Context(), actorID)
		ctx = logger.With(ctx, "actorID", actorID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAPIKey guards the admin surface with a shared key. An empty
// configured key disables the check, which is only acceptable in local
// development.
func RequireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
