// Package chrome captures host snapshots from a headless Chrome.
package chrome

import (
	"bytes"
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"argus/internal/host"
	"argus/internal/logging"
)

type Options struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath  string
	Headful   bool
	UserAgent string
	Timezone  string
	Locale    string
	Width     int64
	Height    int64
	Log       *zap.Logger
}

// Expression evaluates to the snapshot promise.
const Expression = "\nargusCollectSnapshot()"

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if opts.Headful {
		out = append(out, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Width > 0 && opts.Height > 0 {
		out = append(out, chromedp.WindowSize(int(opts.Width), int(opts.Height)))
	}
	return out
}

func emulationTasks(opts Options) chromedp.Tasks {
	var tasks chromedp.Tasks
	if opts.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(opts.Timezone))
	}
	if opts.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(opts.Locale))
	}
	return tasks
}

// Capture loads url in a fresh browser and runs the probe script there.
func Capture(ctx context.Context, url string, opts Options) (*host.Snapshot, error) {
	log := logging.OrNop(opts.Log)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Sugar().Debugf))
	defer cancelTask()

	var raw []byte
	tasks := emulationTasks(opts)
	tasks = append(tasks,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(host.ProbeScript+Expression, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	log.Debug("capturing snapshot", zap.String("url", url))
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return nil, fmt.Errorf("capture %s: %w", url, err)
	}
	return host.Decode(bytes.NewReader(raw))
}
