package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"channelcast/internal/infra/logging"
	"channelcast/internal/infra/metrics"
)

// RequestIDHeader carries the trace id in and out of the operator API.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds what a caller may inject into our logs.
const maxRequestIDLen = 128

type Middleware func(http.Handler) http.Handler

// TraceID reuses the caller's X-Request-ID when present and echoes it back,
// so an operator can grep one id across proxy and bot logs.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := r.Header.Get(RequestIDHeader)
			if tid == "" || len(tid) > maxRequestIDLen {
				tid = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLog logs each request and feeds http_requests_total. It must run
// inside the chi router: the route pattern is only known after routing.
func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, route, ww.status, elapsed.Seconds())

			l := logging.With(r.Context(), logger)
			l.Info().
				Str("method", r.Method).
				Str("route", route).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", elapsed).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover turns a handler panic into the API's JSON 500.
func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered")
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
