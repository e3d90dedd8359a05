package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/oschwald/geoip2-golang/v2"

	"argus/internal/automation"
	"argus/internal/collector"
	"argus/internal/host"
	"argus/internal/store"
	"argus/internal/token"
)

func ptr[T any](v T) *T { return &v }

type countingVerdicts struct{ bots, humans int }

func (c *countingVerdicts) Verdict(bot bool) {
	if bot {
		c.bots++
	} else {
		c.humans++
	}
}

type brokenGeo struct{}

func (brokenGeo) City(netip.Addr) (*geoip2.City, error) { return nil, errors.New("reader closed") }

func newDeps(t *testing.T) (*Deps, *countingVerdicts) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	v := &countingVerdicts{}
	return &Deps{
		Store:     st,
		Collector: collector.New(),
		Tokens:    token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour),
		Verdicts:  v,
		NonceTTL:  time.Minute,
	}, v
}

func snapshot() *host.Snapshot {
	return &host.Snapshot{
		Navigator: &host.Navigator{UserAgent: ptr("Mozilla/5.0 Firefox/128.0"), Languages: []string{"en-US"}},
		Screen:    &host.Screen{Width: ptr(1920), Height: ptr(1080)},
		Window:    &host.Window{OuterWidth: ptr(1920), OuterHeight: ptr(1040)},
		Timezone:  &host.Timezone{Zone: ptr("UTC"), Offset: ptr(0)},
		Storage:   &host.Storage{LocalStorage: ptr(true)},
		Automation: &automation.Snapshot{
			Webdriver:   ptr(false),
			UserAgent:   "Mozilla/5.0 Firefox/128.0",
			Languages:   []string{"en-US"},
			PluginCount: ptr(5),
			PixelProbe:  &automation.Pixel{R: 255, A: 255},
			OuterWidth:  ptr(1920),
			OuterHeight: ptr(1040),
		},
		Canvas: &host.Render{DataURL: "data:image/png;base64,Y2FudmFz"},
		WebGL:  &host.WebGL{Vendor: ptr("Mozilla"), DataURL: "data:image/png;base64,d2ViZ2w="},
		Audio:  &host.Audio{Bins: []*float64{ptr(-120.5), ptr(-99.25)}},
		Fonts: &host.FontMetrics{
			BaseWidths: map[string]float64{"monospace": 10, "sans-serif": 11, "serif": 12},
			Widths:     map[string]map[string]float64{"Arial": {"monospace": 13}},
		},
		Location: host.Location{URL: "https://shop.example/checkout"},
	}
}

func issueNonce(t *testing.T, d *Deps) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Nonce(d)(rec, httptest.NewRequest(http.MethodGet, "/argus/nonce", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nonce status %d", rec.Code)
	}
	var body nonceResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ExpiresIn != 60 {
		t.Fatalf("expiresIn = %d", body.ExpiresIn)
	}
	return body.Nonce
}

func postCollect(t *testing.T, d *Deps, nonce string, snap *host.Snapshot) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"nonce": nonce, "snapshot": snap})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	Collect(d)(rec, httptest.NewRequest(http.MethodPost, "/argus/collect", bytes.NewReader(raw)))
	return rec
}

func TestCollectSuccessIssuesToken(t *testing.T) {
	d, verdicts := newDeps(t)
	rec := postCollect(t, d, issueNonce(t, d), snapshot())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}

	var body struct {
		Record      map[string]json.RawMessage `json:"record"`
		SignatureID string                     `json:"signatureId"`
		IsLikelyBot bool                       `json:"isLikelyBot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.SignatureID == "" || body.IsLikelyBot {
		t.Fatalf("unexpected body: %+v", body)
	}
	for _, key := range []string{"network", "environment", "canvasRender", "graphicsRender", "audioRender", "fonts", "automationSignals", "meta"} {
		if _, ok := body.Record[key]; !ok {
			t.Fatalf("record missing %s", key)
		}
	}
	if verdicts.humans != 1 || verdicts.bots != 0 {
		t.Fatalf("verdicts = %+v", verdicts)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == token.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no attestation cookie")
	}
	if cookie.Secure || !cookie.HttpOnly {
		t.Fatalf("cookie flags: secure=%v httpOnly=%v", cookie.Secure, cookie.HttpOnly)
	}

	req := httptest.NewRequest(http.MethodGet, "/argus/session", nil)
	req.AddCookie(cookie)
	srec := httptest.NewRecorder()
	Session(d)(srec, req)
	if srec.Code != http.StatusOK {
		t.Fatalf("session status %d", srec.Code)
	}
	var sess sessionResponse
	_ = json.NewDecoder(srec.Body).Decode(&sess)
	if sess.SignatureID != body.SignatureID {
		t.Fatalf("session signature %q, want %q", sess.SignatureID, body.SignatureID)
	}
}

func TestCollectSecureCookie(t *testing.T) {
	d, _ := newDeps(t)
	d.SecureCookie = true
	rec := postCollect(t, d, issueNonce(t, d), snapshot())
	for _, c := range rec.Result().Cookies() {
		if c.Name == token.CookieName {
			if !c.Secure {
				t.Fatal("cookie should carry the Secure flag")
			}
			return
		}
	}
	t.Fatalf("no attestation cookie (status %d)", rec.Code)
}

func TestCollectFlagsAutomation(t *testing.T) {
	d, verdicts := newDeps(t)
	snap := snapshot()
	snap.Automation.Webdriver = ptr(true)
	rec := postCollect(t, d, issueNonce(t, d), snap)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"isLikelyBot":true`) || verdicts.bots != 1 {
		t.Fatalf("expected bot verdict: %s", rec.Body)
	}
}

func TestCollectRejectsReplayedNonce(t *testing.T) {
	d, _ := newDeps(t)
	n := issueNonce(t, d)
	if rec := postCollect(t, d, n, snapshot()); rec.Code != http.StatusOK {
		t.Fatalf("first status %d", rec.Code)
	}
	if rec := postCollect(t, d, n, snapshot()); rec.Code != http.StatusForbidden {
		t.Fatalf("replay status %d", rec.Code)
	}
	if rec := postCollect(t, d, "made-up", snapshot()); rec.Code != http.StatusForbidden {
		t.Fatalf("unknown nonce status %d", rec.Code)
	}
}

func TestCollectCriticalFailure(t *testing.T) {
	d, _ := newDeps(t)
	snap := snapshot()
	snap.Canvas = nil
	rec := postCollect(t, d, issueNonce(t, d), snap)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", rec.Code)
	}
	var body failureResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if len(body.Reasons) != 1 || !strings.HasPrefix(body.Reasons[0], "canvasRender") {
		t.Fatalf("reasons = %v", body.Reasons)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("no cookie expected on failure")
	}
}

func TestCollectTransportFault(t *testing.T) {
	d, _ := newDeps(t)
	d.Geo = brokenGeo{}
	rec := postCollect(t, d, issueNonce(t, d), snapshot())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestCollectBadPayload(t *testing.T) {
	d, _ := newDeps(t)
	rec := httptest.NewRecorder()
	Collect(d)(rec, httptest.NewRequest(http.MethodPost, "/argus/collect", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	body := `{"nonce":"` + issueNonce(t, d) + `"}`
	Collect(d)(rec, httptest.NewRequest(http.MethodPost, "/argus/collect", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing snapshot status %d", rec.Code)
	}
}

func TestSessionWithoutCookie(t *testing.T) {
	d, _ := newDeps(t)
	rec := httptest.NewRecorder()
	Session(d)(rec, httptest.NewRequest(http.MethodGet, "/argus/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestSessionWithoutIssuer(t *testing.T) {
	d, _ := newDeps(t)
	d.Tokens = nil
	req := httptest.NewRequest(http.MethodGet, "/argus/session", nil)
	req.AddCookie(&http.Cookie{Name: token.CookieName, Value: "x.y.z"})
	rec := httptest.NewRecorder()
	Session(d)(rec, req)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestProbeServesScript(t *testing.T) {
	rec := httptest.NewRecorder()
	Probe()(rec, httptest.NewRequest(http.MethodGet, "/argus/probe.js", nil))
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/javascript") {
		t.Fatalf("content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "argusCollectSnapshot") {
		t.Fatal("probe body missing entry point")
	}
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := APIKeyAuthMiddleware(ok, "s3cret")

	cases := []struct {
		header, value string
		want          int
	}{
		{"X-API-Key", "s3cret", http.StatusNoContent},
		{"Authorization", "Bearer s3cret", http.StatusNoContent},
		{"X-API-Key", "wrong", http.StatusUnauthorized},
		{"", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s=%q: status %d, want %d", tc.header, tc.value, rec.Code, tc.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	if got := ClientIP(req); got != "2001:db8::1" {
		t.Fatalf("ClientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := ClientIP(req); got != "2001:db8::1" {
		t.Fatalf("forwarded header must not override RemoteAddr, got %q", got)
	}
	req.RemoteAddr = "203.0.113.9"
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("ClientIP = %q", got)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health("v1.2.3")(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body HealthResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Status != "ok" || body.Version != "v1.2.3" {
		t.Fatalf("health = %+v", body)
	}
}
