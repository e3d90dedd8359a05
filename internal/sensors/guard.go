// Package sensors implements the fingerprint sensors over a host snapshot.
//
// Every sensor except the network ones converts its own faults into a
// Failure result. Host values that are unavailable become explicit nulls.
package sensors

import (
	"fmt"

	"argus/internal/types"
)

func guard(fn func() types.Result) (res types.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = types.Failure{Err: fmt.Sprintf("%v", r)}
		}
	}()
	return fn()
}

func opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
