package collector

import (
	"time"

	"argus/internal/types"
)

type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeCriticalFailure Outcome = "critical_failure"
	OutcomeTransportFault  Outcome = "transport_fault"
)

// Observer receives collection telemetry.
type Observer interface {
	SensorFinished(category types.Category, res types.Result)
	CollectionFinished(outcome Outcome, elapsed time.Duration)
}

type NopObserver struct{}

func (NopObserver) SensorFinished(types.Category, types.Result) {}
func (NopObserver) CollectionFinished(Outcome, time.Duration) {}
