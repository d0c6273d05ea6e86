package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"session-service/internal/auth"
	"session-service/internal/util"
)

// RequireAuth validates the bearer credential on every request and
// stores the verified user identity on the context. Handlers never see
// an unauthenticated request; the user_id they read was derived by the
// verifier, not taken from request input.
func RequireAuth(verifier auth.Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondWithJSON(w, http.StatusUnauthorized, errorBody("missing bearer credential"))
				return
			}

			userID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("Rejected bearer credential", util.ErrorField(err))
				respondWithJSON(w, http.StatusUnauthorized, errorBody("invalid authentication credentials"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

// LoggerMiddleware logs every HTTP request with its outcome.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
