package sensors

import (
	"context"
	"fmt"

	"argus/internal/host"
	"argus/internal/types"
)

// BaseFonts are the generic families every test font falls back to.
var BaseFonts = []string{"monospace", "sans-serif", "serif"}

// TestFonts are probed in this order; detected fonts keep it.
var TestFonts = []string{
	"Arial", "Arial Black", "Arial Narrow", "Calibri", "Cambria",
	"Cambria Math", "Comic Sans MS", "Consolas", "Courier", "Courier New",
	"Georgia", "Helvetica", "Impact", "Lucida Console", "Lucida Sans Unicode",
	"Microsoft Sans Serif", "Monaco", "Palatino Linotype", "Segoe UI",
	"Tahoma", "Times", "Times New Roman", "Trebuchet MS", "Verdana",
	"Wingdings", "Roboto", "Open Sans", "Lato", "Montserrat", "Source Sans Pro",
	"Ubuntu", "Fira Sans", "Droid Sans", "Noto Sans", "PT Sans",
	"Liberation Sans", "DejaVu Sans", "Cantarell", "Oxygen",
	"Menlo", "SF Pro", "SF Mono", "Avenir", "Avenir Next", "Optima",
	"Futura", "Gill Sans", "Baskerville", "American Typewriter", "Didot",
	"Apple Chancery", "Zapfino", "Papyrus", "Brush Script MT",
}

// Fonts detects installed fonts: a font is present when text set in it
// measures differently from the bare fallback family for any base font.
type Fonts struct {
	Metrics *host.FontMetrics
}

func (s Fonts) Collect(ctx context.Context) types.Result {
	return guard(func() types.Result {
		m := s.Metrics
		if m == nil {
			return types.Failure{Err: "Canvas 2D context not available"}
		}
		if m.Error != "" {
			return types.Failure{Err: m.Error}
		}
		for _, base := range BaseFonts {
			if _, ok := m.BaseWidths[base]; !ok {
				return types.Failure{Err: fmt.Sprintf("missing baseline width for %s", base)}
			}
		}

		detected := []string{}
		for _, font := range TestFonts {
			widths := m.Widths[font]
			for _, base := range BaseFonts {
				w, ok := widths[base]
				if ok && w != m.BaseWidths[base] {
					detected = append(detected, font)
					break
				}
			}
		}
		return types.Success{Fields: types.Fields{
			"detected": detected,
			"count":    len(detected),
		}}
	})
}
