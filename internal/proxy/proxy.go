package proxy

import (
	"bytes"
	"html"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"argus/internal/handlers"
	"argus/internal/logging"
	"argus/internal/store"
)

type Options struct {
	ScriptPath  string
	CollectPath string
	NonceTTL    time.Duration
	Log         *zap.Logger
}

// NewProxy forwards to backend and injects the probe script, carrying a fresh
// nonce for the client, into uncompressed HTML responses.
func NewProxy(backend string, st store.Store, opts Options) (http.Handler, error) {
	u, err := url.Parse(backend)
	if err != nil {
		return nil, err
	}
	log := logging.OrNop(opts.Log)
	rp := httputil.NewSingleHostReverseProxy(u)

	origDirector := rp.Director
	rp.Director = func(req *http.Request) {
		origDirector(req)
		req.Header.Set("X-Argus-Proxy", "argus/1.0")
	}

	rp.ModifyResponse = func(resp *http.Response) error {
		ct := resp.Header.Get("Content-Type")
		if !strings.Contains(strings.ToLower(ct), "text/html") {
			return nil
		}
		if resp.Header.Get("Content-Encoding") != "" {
			return nil
		}
		if resp.Request == nil {
			return nil
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		resp.Body.Close()

		ip := handlers.ClientIP(resp.Request)
		nonce, err := st.IssueNonce(resp.Request.Context(), ip, opts.NonceTTL)
		if err != nil {
			log.Warn("skipping probe injection", zap.String("client_ip", ip), zap.Error(err))
			setBody(resp, body)
			return nil
		}
		setBody(resp, Inject(body, ScriptTag(opts.ScriptPath, opts.CollectPath, nonce)))
		return nil
	}

	return rp, nil
}

// ScriptTag renders the probe tag carrying nonce.
func ScriptTag(scriptPath, collectPath, nonce string) string {
	return `<script src="` + html.EscapeString(scriptPath) +
		`" data-nonce="` + html.EscapeString(nonce) +
		`" data-endpoint="` + html.EscapeString(collectPath) + `" async></script>`
}

// Inject places script before </head>, else before </body>, else at the end.
func Inject(body []byte, script string) []byte {
	lower := bytes.ToLower(body)
	idx := bytes.Index(lower, []byte("</head>"))
	if idx == -1 {
		idx = bytes.Index(lower, []byte("</body>"))
	}
	if idx == -1 {
		idx = len(body)
	}
	out := make([]byte, 0, len(body)+len(script))
	out = append(out, body[:idx]...)
	out = append(out, script...)
	return append(out, body[idx:]...)
}

func setBody(resp *http.Response, body []byte) {
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
}
