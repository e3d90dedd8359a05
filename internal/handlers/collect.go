package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"argus/internal/collector"
	"argus/internal/host"
	"argus/internal/sensors"
	"argus/internal/token"
	"argus/internal/types"
)

type collectRequest struct {
	Nonce    string          `json:"nonce"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type collectResponse struct {
	Record      *types.Record `json:"record"`
	SignatureID string        `json:"signatureId"`
	IsLikelyBot bool          `json:"isLikelyBot"`
}

type failureResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

// Collect redeems the nonce, runs the collector over the posted snapshot and
// answers with the record.
func Collect(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		log := d.logger().With(zap.String("client_ip", ip))

		r.Body = http.MaxBytesReader(w, r.Body, host.MaxSnapshotBytes+4096)
		var req collectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Debug("invalid collect payload", zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}

		ok, err := d.Store.ConsumeNonce(r.Context(), req.Nonce, ip)
		if err != nil {
			log.Error("consume nonce", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "nonce store unavailable")
			return
		}
		if !ok {
			log.Info("rejected collect with invalid nonce")
			writeError(w, http.StatusForbidden, "invalid nonce")
			return
		}

		if len(req.Snapshot) == 0 {
			writeError(w, http.StatusBadRequest, "missing snapshot")
			return
		}
		snap, err := host.Decode(bytes.NewReader(req.Snapshot))
		if err != nil {
			log.Debug("invalid snapshot", zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid snapshot")
			return
		}

		suite := sensors.NewSuite(snap, sensors.Deps{
			Network:     sensors.GeoIP{Resolver: d.Geo, ClientIP: ip},
			Automation:  d.Automation,
			AudioSettle: d.AudioSettle,
			AudioBins:   d.AudioBins,
		})
		d.Collector.Run(r.Context(), suite, snap.Origin(), &httpConsumer{w: w, d: d, clientIP: ip, log: log})
	}
}

// httpConsumer turns a collection outcome into the HTTP response.
type httpConsumer struct {
	w        http.ResponseWriter
	d        *Deps
	clientIP string
	log      *zap.Logger
}

func (c *httpConsumer) OnRecord(rec *types.Record) {
	sid, err := rec.SignatureID()
	if err != nil {
		c.log.Error("signature id", zap.Error(err))
		writeError(c.w, http.StatusInternalServerError, "internal error")
		return
	}
	bot := isLikelyBot(rec)
	if c.d.Verdicts != nil {
		c.d.Verdicts.Verdict(bot)
	}

	if c.d.Tokens != nil {
		raw, err := c.d.Tokens.Issue(sid, bot, c.clientIP)
		if err != nil {
			c.log.Error("issue token", zap.Error(err))
			writeError(c.w, http.StatusInternalServerError, "internal error")
			return
		}
		http.SetCookie(c.w, &http.Cookie{
			Name:     token.CookieName,
			Value:    raw,
			Path:     "/",
			HttpOnly: true,
			Secure:   c.d.SecureCookie,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   int(c.d.Tokens.TTL().Seconds()),
		})
	}

	c.log.Info("collection accepted",
		zap.String("collection_id", rec.Meta.CollectionID),
		zap.String("signature_id", sid),
		zap.Bool("is_likely_bot", bot))
	writeJSON(c.w, http.StatusOK, collectResponse{Record: rec, SignatureID: sid, IsLikelyBot: bot})
}

func (c *httpConsumer) OnError(err error) {
	var critical *collector.CriticalCollectionFailure
	var fault *collector.TransportFault
	switch {
	case errors.As(err, &critical):
		c.log.Info("collection rejected", zap.Strings("reasons", critical.Reasons))
		writeJSON(c.w, http.StatusUnprocessableEntity, failureResponse{Error: critical.Error(), Reasons: critical.Reasons})
	case errors.As(err, &fault):
		c.log.Warn("network collection failed", zap.Error(fault.Err))
		writeJSON(c.w, http.StatusBadGateway, failureResponse{Error: fault.Error()})
	default:
		c.log.Error("collection failed", zap.Error(err))
		writeError(c.w, http.StatusInternalServerError, "internal error")
	}
}

func isLikelyBot(rec *types.Record) bool {
	s, ok := types.AsSuccess(rec.Results[types.AutomationSignals])
	if !ok {
		return false
	}
	bot, _ := s.Fields["isLikelyBot"].(bool)
	return bot
}
