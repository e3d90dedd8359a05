// Command argus-probe fingerprints a page in headless Chrome and prints the
// resulting record.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"argus/internal/automation"
	"argus/internal/collector"
	"argus/internal/config"
	"argus/internal/host"
	"argus/internal/host/chrome"
	"argus/internal/logging"
	"argus/internal/sensors"
	"argus/internal/types"
)

type flags struct {
	url        string
	configPath string
	ipinfo     string
	timeout    time.Duration
	timezone   string
	locale     string
	userAgent  string
	execPath   string
	verbose    bool
}

func main() {
	var f flags
	pflag.StringVarP(&f.url, "url", "u", "", "page to fingerprint (required)")
	pflag.StringVarP(&f.configPath, "config", "c", "", "optional YAML config for collection settings")
	pflag.StringVar(&f.ipinfo, "ipinfo", sensors.DefaultIPInfoEndpoint, "endpoint reporting the caller's network origin")
	pflag.DurationVar(&f.timeout, "timeout", 60*time.Second, "overall deadline")
	pflag.StringVar(&f.timezone, "timezone", "", "emulated IANA timezone")
	pflag.StringVar(&f.locale, "locale", "", "emulated locale")
	pflag.StringVar(&f.userAgent, "user-agent", "", "override the browser user agent")
	pflag.StringVar(&f.execPath, "chrome", "", "path to the Chrome binary")
	pflag.BoolVarP(&f.verbose, "verbose", "v", false, "log progress to stderr")
	pflag.Parse()

	if f.url == "" {
		fmt.Fprintln(os.Stderr, "argus-probe: --url is required")
		pflag.Usage()
		os.Exit(2)
	}
	if err := run(f, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "argus-probe: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags, out io.Writer) error {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(f.configPath); err != nil {
			return err
		}
		if err := cfg.ValidateCollection(); err != nil {
			return err
		}
	}
	critical, err := cfg.Critical()
	if err != nil {
		return err
	}

	log := zap.NewNop()
	if f.verbose {
		if log, err = logging.New("debug", "console"); err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	snap, err := chrome.Capture(ctx, f.url, chrome.Options{
		ExecPath:  f.execPath,
		UserAgent: f.userAgent,
		Timezone:  f.timezone,
		Locale:    f.locale,
		Log:       log,
	})
	if err != nil {
		return err
	}

	return collect(ctx, snap, cfg, critical, sensors.IPInfo{
		Client:   &http.Client{Timeout: 10 * time.Second},
		Endpoint: f.ipinfo,
	}, log, out)
}

type failureOutput struct {
	Status  string   `json:"status"`
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

// collect runs the collector over snap and writes the record, or the failure,
// as indented JSON. A failure is also returned.
func collect(ctx context.Context, snap *host.Snapshot, cfg *config.Config, critical []types.Category, network collector.NetworkSensor, log *zap.Logger, out io.Writer) error {
	c := collector.New(
		collector.WithCritical(critical...),
		collector.WithLogger(log),
		collector.WithReporter(func(step int, category types.Category) {
			log.Debug("collecting", zap.Int("step", step), zap.String("category", string(category)))
		}),
	)
	suite := sensors.NewSuite(snap, sensors.Deps{
		Network:     network,
		Automation:  automation.Options{InconsistencyThreshold: cfg.Collection.InconsistencyThreshold},
		AudioSettle: cfg.AudioSettle(),
		AudioBins:   cfg.Collection.AudioBins,
	})

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	var runErr error
	c.Run(ctx, suite, snap.Origin(), collector.ConsumerFuncs{
		Record: func(rec *types.Record) {
			runErr = enc.Encode(rec)
		},
		Error: func(err error) {
			res := failureOutput{Status: "failed", Error: err.Error()}
			var critical *collector.CriticalCollectionFailure
			if errors.As(err, &critical) {
				res.Reasons = critical.Reasons
			}
			_ = enc.Encode(res)
			runErr = err
		},
	})
	return runErr
}
