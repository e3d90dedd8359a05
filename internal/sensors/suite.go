package sensors

import (
	"time"

	"argus/internal/automation"
	"argus/internal/collector"
	"argus/internal/digest"
	"argus/internal/host"
	"argus/internal/types"
)

// Automation runs the automation heuristic over the host observations.
type Automation struct {
	Snapshot *automation.Snapshot
	Options  automation.Options
}

func (s Automation) Collect() types.Result {
	return guard(func() types.Result {
		if s.Snapshot == nil {
			return types.Failure{Err: "automation signals unavailable"}
		}
		ev := automation.Detect(s.Snapshot, s.Options)
		return types.Success{Fields: ev.Fields()}
	})
}

// Deps configures the sensors built by NewSuite.
type Deps struct {
	Network     collector.NetworkSensor
	Digester    digest.Digester
	Automation  automation.Options
	AudioSettle time.Duration
	AudioBins   int
}

// NewSuite wires one sensor per category over snap.
func NewSuite(snap *host.Snapshot, d Deps) collector.Suite {
	if snap == nil {
		snap = &host.Snapshot{}
	}
	if d.Digester == nil {
		d.Digester = digest.SHA256{}
	}
	return collector.Suite{
		Network:     d.Network,
		Environment: Environment{Navigator: snap.Navigator},
		Display:     Display{Screen: snap.Screen, Window: snap.Window},
		Timezone:    Timezone{Zone: snap.Timezone},
		Storage:     Storage{Probe: snap.Storage},
		Automation:  Automation{Snapshot: snap.Automation, Options: d.Automation},
		Canvas:      Canvas{Render: snap.Canvas, Digester: d.Digester},
		Graphics:    Graphics{GL: snap.WebGL, Digester: d.Digester},
		Audio:       Audio{Sample: snap.Audio, Digester: d.Digester, Settle: d.AudioSettle, Bins: d.AudioBins},
		Fonts:       Fonts{Metrics: snap.Fonts},
	}
}
