package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category names one slot of a fingerprint record.
type Category string

const (
	Network           Category = "network"
	Environment       Category = "environment"
	Display           Category = "display"
	Timezone          Category = "timezone"
	Storage           Category = "storage"
	AutomationSignals Category = "automationSignals"
	CanvasRender      Category = "canvasRender"
	GraphicsRender    Category = "graphicsRender"
	AudioRender       Category = "audioRender"
	Fonts             Category = "fonts"
)

// AllCategories lists every category in collection order.
var AllCategories = []Category{
	Network,
	Environment,
	Display,
	Timezone,
	Storage,
	AutomationSignals,
	CanvasRender,
	GraphicsRender,
	AudioRender,
	Fonts,
}

// ParseCategory maps a configured name onto a known category.
func ParseCategory(name string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", name)
}

const (
	FieldDigest       = "digest"
	FieldPairedDigest = "pairedDigest"
)

// Fields holds the sensor-specific values of a successful result.
// Unavailable host data is stored as an explicit nil.
type Fields map[string]any

// Result is either Success or Failure.
type Result interface {
	isResult()
}

type Success struct {
	Fields Fields
}

type Failure struct {
	Err string
}

func (Success) isResult() {}
func (Failure) isResult() {}

// Fail builds a Failure from an error.
func Fail(err error) Failure {
	if err == nil {
		return Failure{Err: "unknown error"}
	}
	return Failure{Err: err.Error()}
}

// With returns a copy of s with key set to value.
func (s Success) With(key string, value any) Success {
	fields := make(Fields, len(s.Fields)+1)
	for k, v := range s.Fields {
		fields[k] = v
	}
	fields[key] = value
	return Success{Fields: fields}
}

func (s Success) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+1)
	for k, v := range s.Fields {
		out[k] = v
	}
	out["status"] = "success"
	return json.Marshal(out)
}

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}{Status: "failed", Error: f.Err})
}

// AsSuccess reports whether r is a Success and returns it.
func AsSuccess(r Result) (Success, bool) {
	s, ok := r.(Success)
	return s, ok
}

// Origin describes the page that reported the snapshot.
type Origin struct {
	EnvironmentID string
	URL           string
	Referrer      string
}

type Meta struct {
	CollectionID  string    `json:"collectionId"`
	CollectedAt   time.Time `json:"collectedAt"`
	EnvironmentID string    `json:"environmentId"`
	URL           string    `json:"url"`
	Referrer      *string   `json:"referrer"`
}

// Record is a complete fingerprint. It is not mutated after the collector
// returns it.
type Record struct {
	Results map[Category]Result
	Meta    Meta
}

// Content returns the category results without meta.
func (r *Record) Content() map[Category]Result {
	out := make(map[Category]Result, len(r.Results))
	for k, v := range r.Results {
		out[k] = v
	}
	return out
}

func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Results)+1)
	for c, res := range r.Results {
		out[string(c)] = res
	}
	out["meta"] = r.Meta
	return json.Marshal(out)
}

// AutomationEvidence is the output of the automation heuristic.
type AutomationEvidence struct {
	AutomationFlags []string `json:"automationFlags"`
	Inconsistencies []string `json:"inconsistencies"`
	IsLikelyBot     bool     `json:"isLikelyBot"`
}
