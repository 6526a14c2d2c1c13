package models

import (
	"sort"
	"time"
)

// Feature is a scalar input tagged present or absent. Absent is a distinct
// state from zero: an unavailable upstream value must never bias scoring.
type Feature struct {
	Value   float64
	Present bool
}

// Present wraps a value as a present feature.
func PresentFeature(v float64) Feature { return Feature{Value: v, Present: true} }

// AbsentFeature marks a feature the upstream collaborator could not supply.
func AbsentFeature() Feature { return Feature{} }

// FeatureVector is the fused per-cycle input to signal interpretation:
// flattened smirk metrics joined with exogenous scalar features.
type FeatureVector struct {
	Symbol    string
	Timestamp time.Time
	Values    map[string]Feature
}

func NewFeatureVector(symbol string, ts time.Time) FeatureVector {
	return FeatureVector{Symbol: symbol, Timestamp: ts, Values: make(map[string]Feature)}
}

// Set records a present feature value.
func (fv FeatureVector) Set(name string, v float64) { fv.Values[name] = PresentFeature(v) }

// SetAbsent records that a feature was expected but unavailable.
func (fv FeatureVector) SetAbsent(name string) { fv.Values[name] = AbsentFeature() }

// Get returns the named feature; a name never recorded reads as absent.
func (fv FeatureVector) Get(name string) Feature { return fv.Values[name] }

// Completeness is the fraction of recorded features that are present.
func (fv FeatureVector) Completeness() float64 {
	if len(fv.Values) == 0 {
		return 0
	}
	present := 0
	for _, f := range fv.Values {
		if f.Present {
			present++
		}
	}
	return float64(present) / float64(len(fv.Values))
}

// Names returns all recorded feature names in sorted order.
func (fv FeatureVector) Names() []string {
	names := make([]string, 0, len(fv.Values))
	for k := range fv.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy, so downstream owners never share map state.
func (fv FeatureVector) Clone() FeatureVector {
	out := NewFeatureVector(fv.Symbol, fv.Timestamp)
	for k, v := range fv.Values {
		out.Values[k] = v
	}
	return out
}
