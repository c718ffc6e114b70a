package api

import (
	"fmt"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/teris-io/shortid"
	"go.uber.org/zap"
)

const requestIdHeader = "X-Request-Id"

func (s *App) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Error("panic", zap.Error(panicError), zap.String("path", r.URL.Path))
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqId := r.Header.Get(requestIdHeader)
		if reqId == "" {
			if id, err := shortid.Generate(); err == nil {
				reqId = id
			}
		}
		w.Header().Set(requestIdHeader, reqId)

		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Info("request",
			zap.String("request_id", reqId),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", m.Code),
			zap.Duration("duration", m.Duration),
		)
	})
}

// authMiddleware requires a valid bearer token and stores the caller's
// identity in the request context. When auth is disabled by configuration it
// passes every request through unchanged.
func (s *App) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if s.authDisabled {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			errResp := NewUnauthorizedError("")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		id, err := s.identityFromToken(tokenString)
		if err != nil {
			s.log.Info("failed to extract identity from token", zap.Error(err))
			errResp := NewUnauthorizedError("")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := WithIdentity(r.Context(), id)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}
