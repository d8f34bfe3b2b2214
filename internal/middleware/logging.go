package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/sirupsen/logrus"
)

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += n
	return n, err
}

// Logging logs one line per request with method, path, status and duration.
// Server errors are logged at error level.
func Logging(logger *logrus.Logger) func(http.Handler) http.Handler {
	log := logger.WithField("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"bytes":       rw.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote":      r.RemoteAddr,
			})
			if rw.statusCode >= http.StatusInternalServerError {
				entry.Error("request failed")
				return
			}
			entry.Info("request served")
		})
	}
}

// ResolverLogger logs resolver execution times
type ResolverLogger struct {
	Logger *logrus.Logger
}

// ExtensionName implements graphql.HandlerExtension
func (r *ResolverLogger) ExtensionName() string {
	return "ResolverLogger"
}

// Validate implements graphql.HandlerExtension
func (r *ResolverLogger) Validate(graphql.ExecutableSchema) error {
	return nil
}

// InterceptField logs each resolver's duration and error. Failures are
// logged at warn level; the error presenter decides what the caller sees.
func (r *ResolverLogger) InterceptField(ctx context.Context, next graphql.Resolver) (any, error) {
	start := time.Now()
	res, err := next(ctx)

	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fc := graphql.GetFieldContext(ctx)
	entry := logger.WithFields(logrus.Fields{
		"component":   "graphql",
		"resolver":    fc.Object + "." + fc.Field.Name,
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
	})
	if err != nil {
		entry.WithError(err).Warn("resolver failed")
		return res, err
	}
	entry.Debug("resolver finished")
	return res, err
}
