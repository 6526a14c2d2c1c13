package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/analytics"
)

// Smirk feature names, namespaced per monitored expiry label as
// "smirk.<label>.<name>".
const (
	SmirkSkew       = "skew"
	SmirkKurtosis   = "kurtosis"
	SmirkConfidence = "confidence"
	SmirkLean       = "regime_lean"
)

// External feature names with their declared bounds. A reported value
// outside its bound is marked absent, never clamped: silent clamping would
// bias scoring exactly when the upstream is most wrong.
const (
	FeatureSentiment    = "sentiment_score" // [-1, 1]
	FeatureStorageLevel = "storage_level"   // [0, 1]
	FeatureTankerCount  = "tanker_count"    // >= 0
	FeatureRSI          = "rsi"             // [0, 100]
	FeatureMACD         = "macd_hist"       // unbounded
	FeatureEMA          = "ema"             // > 0
	FeatureADX          = "adx"             // [0, 100]
)

// MonitoredExpiry selects one expiry from a snapshot by label:
// "nearest", or a tenor like "7d" / "30d" resolved to the listed expiry
// closest to evaluation time plus that tenor.
type MonitoredExpiry struct {
	Label string
	Tenor time.Duration // zero means nearest
}

// ParseMonitored parses configuration labels into monitored expiries.
func ParseMonitored(labels []string) ([]MonitoredExpiry, error) {
	out := make([]MonitoredExpiry, 0, len(labels))
	for _, l := range labels {
		if l == "nearest" {
			out = append(out, MonitoredExpiry{Label: l})
			continue
		}
		d, err := time.ParseDuration(l)
		if err != nil {
			// Allow day suffixes, which time.ParseDuration rejects.
			var days int
			if _, serr := fmt.Sscanf(l, "%dd", &days); serr != nil || days <= 0 {
				return nil, fmt.Errorf("monitored expiry %q: %w", l, err)
			}
			d = time.Duration(days) * 24 * time.Hour
		}
		out = append(out, MonitoredExpiry{Label: l, Tenor: d})
	}
	return out, nil
}

// Fuser merges per-expiry smirk metrics with exogenous scalar features into
// one feature vector per evaluation timestamp. Fusion is deterministic and
// never fabricates a value for an unavailable feature.
type Fuser struct {
	monitored []MonitoredExpiry
}

func NewFuser(monitored []MonitoredExpiry) *Fuser {
	return &Fuser{monitored: monitored}
}

// Fuse assembles the feature vector for one cycle. smirkByExpiry is keyed
// by expiry date (2006-01-02); failed expiries surface as absent smirk
// features under their monitored label.
func (f *Fuser) Fuse(snap models.OptionsChainSnapshot, smirkByExpiry map[string]analytics.ExpiryResult, external map[string]models.Feature) models.FeatureVector {
	fv := models.NewFeatureVector(snap.Symbol, snap.Timestamp)

	for _, mon := range f.monitored {
		key, ok := f.resolve(snap, mon)
		prefix := "smirk." + mon.Label + "."
		if !ok {
			markSmirkAbsent(fv, prefix)
			continue
		}
		res, found := smirkByExpiry[key]
		if !found || res.Err != nil {
			markSmirkAbsent(fv, prefix)
			continue
		}
		m := res.Metrics
		fv.Set(prefix+SmirkSkew, m.Skew)
		fv.Set(prefix+SmirkKurtosis, m.Kurtosis)
		fv.Set(prefix+SmirkConfidence, m.Confidence)
		fv.Set(prefix+SmirkLean, m.Regime.Lean())
	}

	// External features pass through with range validation only; internal
	// correctness is the producing collaborator's contract.
	names := make([]string, 0, len(external))
	for name := range external {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		feat := external[name]
		if !feat.Present || !inBounds(name, feat.Value) {
			fv.SetAbsent(name)
			continue
		}
		fv.Set(name, feat.Value)
	}
	return fv
}

// resolve picks the snapshot expiry for a monitored label.
func (f *Fuser) resolve(snap models.OptionsChainSnapshot, mon MonitoredExpiry) (string, bool) {
	if len(snap.Expiries) == 0 {
		return "", false
	}
	if mon.Tenor == 0 {
		return snap.Expiries[0].Expiry.UTC().Format("2006-01-02"), true
	}
	target := snap.Timestamp.Add(mon.Tenor)
	best := snap.Expiries[0].Expiry
	bestDist := absDuration(best.Sub(target))
	for _, e := range snap.Expiries[1:] {
		if d := absDuration(e.Expiry.Sub(target)); d < bestDist {
			best, bestDist = e.Expiry, d
		}
	}
	return best.UTC().Format("2006-01-02"), true
}

func markSmirkAbsent(fv models.FeatureVector, prefix string) {
	fv.SetAbsent(prefix + SmirkSkew)
	fv.SetAbsent(prefix + SmirkKurtosis)
	fv.SetAbsent(prefix + SmirkConfidence)
	fv.SetAbsent(prefix + SmirkLean)
}

func inBounds(name string, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	switch name {
	case FeatureSentiment:
		return v >= -1 && v <= 1
	case FeatureStorageLevel:
		return v >= 0 && v <= 1
	case FeatureTankerCount:
		return v >= 0
	case FeatureRSI, FeatureADX:
		return v >= 0 && v <= 100
	case FeatureEMA:
		return v > 0
	default:
		return true
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
