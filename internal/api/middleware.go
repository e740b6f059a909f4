package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealer-portal/internal/common/auth"
	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/common/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const callerEmailKey contextKey = "callerEmail"

// TokenValidator introspects bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

// CallerEmail returns the authenticated caller's email, or "" if none.
func CallerEmail(ctx context.Context) string {
	email, _ := ctx.Value(callerEmailKey).(string)
	return email
}

// AuthMiddleware validates the bearer token and stores the caller email in
// the request context.
func AuthMiddleware(validator TokenValidator, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token == header || token == "" {
				writeError(w, log, errors.NewUnauthenticatedError("missing bearer token"))
				return
			}

			info, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				if stdErr, ok := errors.AsStandardError(err); ok && stdErr.Code == errors.ErrCodeExternalService {
					writeError(w, log, err)
					return
				}
				writeError(w, log, errors.NewUnauthenticatedError(err.Error()))
				return
			}

			email := strings.ToLower(info.CallerEmail())
			if email == "" {
				writeError(w, log, errors.NewUnauthenticatedError("token has no email or username"))
				return
			}

			ctx := context.WithValue(r.Context(), callerEmailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware records request counts and latencies by route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RequestLogger logs one line per request through the service logger.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request", map[string]interface{}{
				"requestId":  middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"durationMs": time.Since(start).Milliseconds(),
			})
		})
	}
}
