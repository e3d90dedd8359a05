// Package host defines the raw host observations that sensors read from.
//
// A Snapshot is produced by the embedded probe script, either in a visitor's
// browser or in a headless Chrome driven by the chrome subpackage. Every part
// is optional: a nil part means the probe could not reach that capability, and
// parts carrying an Error describe a probe-side failure.
package host

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"argus/internal/automation"
	"argus/internal/types"
)

// ProbeScript collects a Snapshot in the browser. Loaded with a data-nonce
// attribute it posts the snapshot to the collect endpoint by itself.
//
//go:embed probe.js
var ProbeScript string

// MaxSnapshotBytes bounds a decoded snapshot.
const MaxSnapshotBytes = 1 << 20

type Snapshot struct {
	Navigator  *Navigator           `json:"navigator"`
	Screen     *Screen              `json:"screen"`
	Window     *Window              `json:"window"`
	Timezone   *Timezone            `json:"timezone"`
	Storage    *Storage             `json:"storage"`
	Automation *automation.Snapshot `json:"automation"`
	Canvas     *Render              `json:"canvas"`
	WebGL      *WebGL               `json:"webgl"`
	Audio      *Audio               `json:"audio"`
	Fonts      *FontMetrics         `json:"fonts"`
	Location   Location             `json:"location"`
}

type Navigator struct {
	UserAgent           *string     `json:"userAgent"`
	Platform            *string     `json:"platform"`
	Languages           []string    `json:"languages"`
	Language            *string     `json:"language"`
	HardwareConcurrency *int        `json:"hardwareConcurrency"`
	DeviceMemory        *float64    `json:"deviceMemory"`
	MaxTouchPoints      *int        `json:"maxTouchPoints"`
	CookieEnabled       *bool       `json:"cookieEnabled"`
	DoNotTrack          *string     `json:"doNotTrack"`
	Webdriver           *bool       `json:"webdriver"`
	PDFViewerEnabled    *bool       `json:"pdfViewerEnabled"`
	Vendor              *string     `json:"vendor"`
	VendorSub           *string     `json:"vendorSub"`
	ProductSub          *string     `json:"productSub"`
	Plugins             []Plugin    `json:"plugins"`
	MimeTypes           []MimeType  `json:"mimeTypes"`
	Connection          *Connection `json:"connection"`
}

type Plugin struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

type MimeType struct {
	Type     string `json:"type"`
	Suffixes string `json:"suffixes"`
}

type Connection struct {
	EffectiveType *string  `json:"effectiveType"`
	Downlink      *float64 `json:"downlink"`
	RTT           *float64 `json:"rtt"`
	SaveData      *bool    `json:"saveData"`
}

type Screen struct {
	Width       *int         `json:"width"`
	Height      *int         `json:"height"`
	AvailWidth  *int         `json:"availWidth"`
	AvailHeight *int         `json:"availHeight"`
	ColorDepth  *int         `json:"colorDepth"`
	PixelDepth  *int         `json:"pixelDepth"`
	Orientation *Orientation `json:"orientation"`
}

type Orientation struct {
	Type  string `json:"type"`
	Angle int    `json:"angle"`
}

type Window struct {
	InnerWidth       *int     `json:"innerWidth"`
	InnerHeight      *int     `json:"innerHeight"`
	OuterWidth       *int     `json:"outerWidth"`
	OuterHeight      *int     `json:"outerHeight"`
	DevicePixelRatio *float64 `json:"devicePixelRatio"`
}

type Timezone struct {
	Zone       *string `json:"zone"`
	Offset     *int    `json:"offset"`
	Locale     *string `json:"locale"`
	DateString *string `json:"dateString"`
}

type Storage struct {
	LocalStorage   *bool `json:"localStorage"`
	SessionStorage *bool `json:"sessionStorage"`
	IndexedDB      *bool `json:"indexedDB"`
	Cookies        *bool `json:"cookies"`
}

// Render is a rasterised scene encoded as a data URL.
type Render struct {
	DataURL string `json:"dataUrl"`
	Error   string `json:"error,omitempty"`
}

type WebGL struct {
	Vendor                    *string   `json:"vendor"`
	Renderer                  *string   `json:"renderer"`
	UnmaskedVendor            *string   `json:"unmaskedVendor"`
	UnmaskedRenderer          *string   `json:"unmaskedRenderer"`
	Version                   *string   `json:"version"`
	ShadingLanguageVersion    *string   `json:"shadingLanguageVersion"`
	MaxTextureSize            *int      `json:"maxTextureSize"`
	MaxViewportDims           []float64 `json:"maxViewportDims"`
	MaxRenderbufferSize       *int      `json:"maxRenderbufferSize"`
	MaxVertexAttribs          *int      `json:"maxVertexAttribs"`
	MaxVertexUniformVectors   *int      `json:"maxVertexUniformVectors"`
	MaxFragmentUniformVectors *int      `json:"maxFragmentUniformVectors"`
	MaxVaryingVectors         *int      `json:"maxVaryingVectors"`
	AliasedLineWidthRange     []float64 `json:"aliasedLineWidthRange"`
	AliasedPointSizeRange     []float64 `json:"aliasedPointSizeRange"`
	Extensions                []string  `json:"extensions"`
	DataURL                   string    `json:"dataUrl"`
	Error                     string    `json:"error,omitempty"`
}

// Audio carries the analyser output of the oscillator graph. Non-finite bins
// arrive as null.
type Audio struct {
	Bins            []*float64 `json:"bins"`
	SampleRate      *float64   `json:"sampleRate"`
	ChannelCount    *int       `json:"channelCount"`
	MaxChannelCount *int       `json:"maxChannelCount"`
	State           *string    `json:"state"`
	Error           string     `json:"error,omitempty"`
}

// FontMetrics holds text widths measured per font stack. Widths is keyed by
// test font, then by fallback base font.
type FontMetrics struct {
	BaseWidths map[string]float64            `json:"baseWidths"`
	Widths     map[string]map[string]float64 `json:"widths"`
	Error      string                        `json:"error,omitempty"`
}

type Location struct {
	URL      string `json:"url"`
	Referrer string `json:"referrer"`
}

// Decode reads a JSON snapshot, rejecting bodies over MaxSnapshotBytes.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(io.LimitReader(r, MaxSnapshotBytes+1))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Origin describes the reporting page.
func (s *Snapshot) Origin() types.Origin {
	o := types.Origin{URL: s.Location.URL, Referrer: s.Location.Referrer}
	if s.Navigator != nil && s.Navigator.UserAgent != nil {
		o.EnvironmentID = *s.Navigator.UserAgent
	}
	return o
}
