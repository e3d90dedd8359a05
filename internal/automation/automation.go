// Package automation scores how likely a host is driven by automation
// tooling. No single check is authoritative: direct tool markers are strong
// evidence on their own, while environmental inconsistencies only count once
// enough of them pile up.
package automation

import (
	"strings"

	"argus/internal/types"
)

// DefaultInconsistencyThreshold is the number of indirect inconsistencies
// that flips the verdict without any direct flag. It trades false positives
// on privacy-hardened browsers against automation that clears one or two
// checks, and is meant to be tuned through configuration.
const DefaultInconsistencyThreshold = 3

// MarkerProperties are global or document properties left behind by
// Selenium-family drivers.
var MarkerProperties = []string{
	"webdriver",
	"_webdriver_script_fn",
	"_Selenium_IDE_Recorder",
	"_selenium",
	"__webdriver_script_fn",
	"__driver_evaluate",
	"__webdriver_evaluate",
	"__selenium_evaluate",
	"__fxdriver_evaluate",
	"__driver_unwrapped",
	"__webdriver_unwrapped",
	"__selenium_unwrapped",
	"__fxdriver_unwrapped",
	"__webdriver_script_func",
	"calledSelenium",
	"_WEBDRIVER_ELEM_CACHE",
	"ChromeDriverw",
	"driver-hierarchical",
	"domAutomation",
	"domAutomationController",
}

// Pixel is the RGBA read back from a 1x1 red fill.
type Pixel struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

type Connection struct {
	RTT *float64 `json:"rtt"`
}

// ChromeObject describes window.chrome when it exists.
type ChromeObject struct {
	HasRuntime bool `json:"hasRuntime"`
}

// Snapshot holds the host observations the heuristic needs. A nil pointer
// means the underlying API was not available on the host.
type Snapshot struct {
	Webdriver      *bool             `json:"webdriver"`
	UserAgent      string            `json:"userAgent"`
	Languages      []string          `json:"languages"`
	PluginCount    *int              `json:"pluginCount"`
	WindowProps    []string          `json:"windowProps"`
	DocumentProps  []string          `json:"documentProps"`
	PixelProbe     *Pixel            `json:"pixelProbe"`
	Connection     *Connection       `json:"connection"`
	OuterWidth     *int              `json:"outerWidth"`
	OuterHeight    *int              `json:"outerHeight"`
	Chrome         *ChromeObject     `json:"chrome"`
	RootAttributes map[string]string `json:"rootAttributes"`
	PermissionsAPI bool              `json:"permissionsApi"`
}

type Options struct {
	InconsistencyThreshold int
}

// Evidence is the heuristic output plus per-tool indicators.
type Evidence struct {
	types.AutomationEvidence

	Webdriver         bool
	Phantom           bool
	Nightmare         bool
	Selenium          bool
	Puppeteer         bool
	Playwright        bool
	HeadlessChrome    bool
	HasPermissionsAPI bool
	HasChrome         bool
}

// Fields renders the evidence as sensor result fields.
func (e Evidence) Fields() types.Fields {
	return types.Fields{
		"webdriver":         e.Webdriver,
		"phantom":           e.Phantom,
		"nightmare":         e.Nightmare,
		"selenium":          e.Selenium,
		"puppeteer":         e.Puppeteer,
		"playwright":        e.Playwright,
		"headlessChrome":    e.HeadlessChrome,
		"hasPermissionsAPI": e.HasPermissionsAPI,
		"hasChrome":         e.HasChrome,
		"automationFlags":   append([]string{}, e.AutomationFlags...),
		"inconsistencies":   append([]string{}, e.Inconsistencies...),
		"isLikelyBot":       e.IsLikelyBot,
	}
}

// Verdict applies the decision rule.
func Verdict(flags, inconsistencies, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultInconsistencyThreshold
	}
	return flags > 0 || inconsistencies >= threshold
}

// Detect runs every check against s.
func Detect(s *Snapshot, opts Options) Evidence {
	var ev Evidence
	if s == nil {
		s = &Snapshot{}
	}
	flags := &orderedSet{}
	inc := &orderedSet{}

	if s.Webdriver != nil && *s.Webdriver {
		ev.Webdriver = true
		flags.add("navigator.webdriver")
	}

	window := toSet(s.WindowProps)
	document := toSet(s.DocumentProps)
	for _, prop := range MarkerProperties {
		if window[prop] || document[prop] {
			ev.Selenium = true
			flags.add("window." + prop)
		}
	}
	if window["callPhantom"] || window["_phantom"] {
		ev.Phantom = true
		flags.add("PhantomJS")
	}
	if window["__nightmare"] {
		ev.Nightmare = true
		flags.add("Nightmare")
	}

	ua := strings.ToLower(s.UserAgent)
	if strings.Contains(ua, "headlesschrome") {
		ev.HeadlessChrome = true
		flags.add("HeadlessChrome UA")
	}

	if len(s.Languages) == 0 {
		inc.add("Empty languages")
	}
	if s.PluginCount != nil && *s.PluginCount == 0 {
		inc.add("No plugins")
	}
	if s.PixelProbe != nil && s.PixelProbe.R == 0 {
		inc.add("Canvas rendering anomaly")
	}

	ev.HasPermissionsAPI = s.PermissionsAPI

	if s.Chrome != nil {
		ev.HasChrome = true
		if !s.Chrome.HasRuntime {
			inc.add("Chrome object without runtime")
		}
	} else if strings.Contains(ua, "chrome") {
		inc.add("Chrome UA without chrome object")
		ev.Puppeteer = true
		ev.Playwright = true
	}

	if s.Connection != nil && s.Connection.RTT != nil && *s.Connection.RTT == 0 {
		inc.add("Zero RTT")
	}
	if isZero(s.OuterWidth) || isZero(s.OuterHeight) {
		inc.add("Zero outer dimensions")
	}
	if s.RootAttributes["webdriver"] != "" || s.RootAttributes["driver"] != "" {
		inc.add("DOM automation attribute")
	}

	ev.AutomationFlags = flags.list()
	ev.Inconsistencies = inc.list()
	ev.IsLikelyBot = Verdict(len(ev.AutomationFlags), len(ev.Inconsistencies), opts.InconsistencyThreshold)
	return ev
}

func isZero(v *int) bool {
	return v != nil && *v == 0
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}

type orderedSet struct {
	items []string
	seen  map[string]bool
}

func (o *orderedSet) add(tag string) {
	if o.seen == nil {
		o.seen = make(map[string]bool)
	}
	if o.seen[tag] {
		return
	}
	o.seen[tag] = true
	o.items = append(o.items, tag)
}

func (o *orderedSet) list() []string {
	if o.items == nil {
		return []string{}
	}
	return o.items
}
