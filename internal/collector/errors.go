package collector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSensorNotConfigured is recorded for suite slots left empty.
var ErrSensorNotConfigured = errors.New("sensor not configured")

// CriticalCollectionFailure reports every critical category that failed.
// All sensors have run by the time it is returned.
type CriticalCollectionFailure struct {
	Reasons []string
}

func (e *CriticalCollectionFailure) Error() string {
	return "critical fingerprint components failed: " + strings.Join(e.Reasons, "; ")
}

// TransportFault is returned when the network sensor errors out instead of
// producing a result. No other sensor runs after it.
type TransportFault struct {
	Err error
}

func (e *TransportFault) Error() string {
	return fmt.Sprintf("network collection aborted: %v", e.Err)
}

func (e *TransportFault) Unwrap() error { return e.Err }
