package sensors

import (
	"argus/internal/host"
	"argus/internal/types"
)

type Environment struct {
	Navigator *host.Navigator
}

func (s Environment) Collect() types.Result {
	return guard(func() types.Result {
		n := s.Navigator
		if n == nil {
			return types.Failure{Err: "navigator unavailable"}
		}
		var conn any
		if n.Connection != nil {
			conn = map[string]any{
				"effectiveType": opt(n.Connection.EffectiveType),
				"downlink":      opt(n.Connection.Downlink),
				"rtt":           opt(n.Connection.RTT),
				"saveData":      opt(n.Connection.SaveData),
			}
		}
		maxTouch := 0
		if n.MaxTouchPoints != nil {
			maxTouch = *n.MaxTouchPoints
		}
		return types.Success{Fields: types.Fields{
			"userAgent":           opt(n.UserAgent),
			"platform":            opt(n.Platform),
			"languages":           orEmpty(n.Languages),
			"language":            opt(n.Language),
			"hardwareConcurrency": opt(n.HardwareConcurrency),
			"deviceMemory":        opt(n.DeviceMemory),
			"maxTouchPoints":      maxTouch,
			"cookieEnabled":       opt(n.CookieEnabled),
			"doNotTrack":          opt(n.DoNotTrack),
			"webdriver":           n.Webdriver != nil && *n.Webdriver,
			"pdfViewerEnabled":    opt(n.PDFViewerEnabled),
			"vendor":              opt(n.Vendor),
			"vendorSub":           opt(n.VendorSub),
			"productSub":          opt(n.ProductSub),
			"plugins":             orEmpty(n.Plugins),
			"mimeTypes":           orEmpty(n.MimeTypes),
			"connection":          conn,
		}}
	})
}

type Display struct {
	Screen *host.Screen
	Window *host.Window
}

func (s Display) Collect() types.Result {
	return guard(func() types.Result {
		scr := s.Screen
		if scr == nil {
			return types.Failure{Err: "screen unavailable"}
		}
		w := s.Window
		if w == nil {
			w = &host.Window{}
		}
		var orientation any
		if scr.Orientation != nil {
			orientation = map[string]any{"type": scr.Orientation.Type, "angle": scr.Orientation.Angle}
		}
		pixelRatio := 1.0
		if w.DevicePixelRatio != nil && *w.DevicePixelRatio != 0 {
			pixelRatio = *w.DevicePixelRatio
		}
		return types.Success{Fields: types.Fields{
			"width":       opt(scr.Width),
			"height":      opt(scr.Height),
			"availWidth":  opt(scr.AvailWidth),
			"availHeight": opt(scr.AvailHeight),
			"colorDepth":  opt(scr.ColorDepth),
			"pixelDepth":  opt(scr.PixelDepth),
			"pixelRatio":  pixelRatio,
			"orientation": orientation,
			"innerWidth":  opt(w.InnerWidth),
			"innerHeight": opt(w.InnerHeight),
			"outerWidth":  opt(w.OuterWidth),
			"outerHeight": opt(w.OuterHeight),
		}}
	})
}

type Timezone struct {
	Zone *host.Timezone
}

func (s Timezone) Collect() types.Result {
	return guard(func() types.Result {
		tz := s.Zone
		if tz == nil {
			return types.Failure{Err: "date and locale information unavailable"}
		}
		return types.Success{Fields: types.Fields{
			"timezone":       opt(tz.Zone),
			"timezoneOffset": opt(tz.Offset),
			"locale":         opt(tz.Locale),
			"dateString":     opt(tz.DateString),
		}}
	})
}

// Storage reports which storage facilities accepted a write. Each value is
// null when the probe could not tell.
type Storage struct {
	Probe *host.Storage
}

func (s Storage) Collect() types.Result {
	return guard(func() types.Result {
		p := s.Probe
		if p == nil {
			return types.Failure{Err: "storage probe unavailable"}
		}
		return types.Success{Fields: types.Fields{
			"localStorage":   opt(p.LocalStorage),
			"sessionStorage": opt(p.SessionStorage),
			"indexedDB":      opt(p.IndexedDB),
			"cookies":        opt(p.Cookies),
		}}
	})
}
