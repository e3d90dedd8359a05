package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"argus/internal/handlers"
	"argus/internal/logging"
	"argus/internal/store"
)

type Middleware struct {
	St        store.Store
	PerMinute int
	Log       *zap.Logger
}

func New(st store.Store, perMinute int, log *zap.Logger) *Middleware {
	return &Middleware{
		St:        st,
		PerMinute: perMinute,
		Log:       logging.OrNop(log),
	}
}

// RequestLogger logs one line per request after it is served.
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		m.Log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("client_ip", handlers.ClientIP(r)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

// RateLimiter rejects clients over PerMinute requests. Store errors fail open.
func (m *Middleware) RateLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := handlers.ClientIP(r)
		isLimited, err := m.St.IsRateLimited(r.Context(), identifier, m.PerMinute)
		if err != nil {
			m.Log.Warn("rate limiter check failed", zap.String("client_ip", identifier), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if isLimited {
			m.Log.Info("rate limit exceeded", zap.String("client_ip", identifier))
			w.Header().Set("Retry-After", "60")
			http.Error(w, "429 Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
