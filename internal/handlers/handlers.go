package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"argus/internal/automation"
	"argus/internal/collector"
	"argus/internal/host"
	"argus/internal/logging"
	"argus/internal/sensors"
	"argus/internal/store"
	"argus/internal/token"
)

// VerdictRecorder counts automation verdicts.
type VerdictRecorder interface {
	Verdict(isLikelyBot bool)
}

// Deps are shared by the collection endpoints.
type Deps struct {
	Store      store.Store
	Collector  *collector.Collector
	Tokens     *token.Issuer
	Geo        sensors.GeoResolver
	Verdicts   VerdictRecorder
	Automation automation.Options

	AudioSettle  time.Duration
	AudioBins    int
	NonceTTL     time.Duration
	SecureCookie bool
	Log          *zap.Logger
}

func (d *Deps) logger() *zap.Logger {
	return logging.OrNop(d.Log)
}

// ClientIP identifies the caller by RemoteAddr. Forwarded headers are never
// read here; behind a trusted proxy the router rewrites RemoteAddr first.
func ClientIP(r *http.Request) string {
	if ip := store.NormalizeIP(r.RemoteAddr); ip != "" {
		return ip
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Probe serves the embedded probe script.
func Probe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(host.ProbeScript))
	}
}

type nonceResponse struct {
	Nonce     string `json:"nonce"`
	ExpiresIn int    `json:"expiresIn"`
}

// Nonce issues a single-use collection nonce bound to the caller.
func Nonce(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		n, err := d.Store.IssueNonce(r.Context(), ip, d.NonceTTL)
		if err != nil {
			d.logger().Error("issue nonce", zap.String("client_ip", ip), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "nonce store unavailable")
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, nonceResponse{Nonce: n, ExpiresIn: int(d.NonceTTL.Seconds())})
	}
}

type sessionResponse struct {
	SignatureID string    `json:"signatureId"`
	IsLikelyBot bool      `json:"isLikelyBot"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Session reports the attestation carried by the caller's cookie.
func Session(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Tokens == nil {
			writeError(w, http.StatusNotImplemented, "sessions disabled")
			return
		}
		cookie, err := r.Cookie(token.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "no session")
			return
		}
		ip := ClientIP(r)
		claims, err := d.Tokens.Verify(cookie.Value, ip)
		if err != nil {
			d.logger().Debug("session rejected", zap.String("client_ip", ip), zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		resp := sessionResponse{SignatureID: claims.SignatureID, IsLikelyBot: claims.IsLikelyBot}
		if claims.ExpiresAt != nil {
			resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
