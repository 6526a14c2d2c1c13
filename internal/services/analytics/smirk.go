package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
)

// EngineConfig tunes smirk computation per expiry.
type EngineConfig struct {
	// TargetStrikes is the strike count at which no sparsity penalty
	// applies. Expiries with fewer valid-IV strikes lose confidence.
	TargetStrikes int
	// FallbackPenalty is subtracted from confidence once per fallback:
	// a missing exact OTM strike on either side, or a sparse chain.
	FallbackPenalty float64
	// SkewThreshold is the absolute skew above which the regime is
	// classified as skewed (put-minus-call convention).
	SkewThreshold float64
	// KurtosisThreshold marks the elevated-kurtosis regime.
	KurtosisThreshold float64
	// SmoothingWindow, when > 0, smooths the regime over the last N
	// classifications per expiry by majority vote.
	SmoothingWindow int
	// Workers bounds the per-expiry worker pool in ComputeAll.
	Workers int
}

// DefaultEngineConfig mirrors the shipped configuration defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TargetStrikes:     5,
		FallbackPenalty:   0.1,
		SkewThreshold:     0.05,
		KurtosisThreshold: 3.0,
		SmoothingWindow:   0,
		Workers:           4,
	}
}

// Engine computes per-expiry smirk metrics from a normalized snapshot.
// Computation is stateless across cycles except for the optional bounded
// regime-smoothing history.
type Engine struct {
	cfg EngineConfig

	mu      sync.Mutex
	history map[int64][]models.Regime // expiry unix -> recent regimes
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TargetStrikes < 3 {
		cfg.TargetStrikes = 3
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Engine{cfg: cfg, history: make(map[int64][]models.Regime)}
}

// ExpiryResult is either a computed SmirkMetrics or the reason the expiry
// was skipped. One failed expiry never aborts its siblings.
type ExpiryResult struct {
	Metrics models.SmirkMetrics
	Err     error
}

// Compute derives skew, kurtosis, fitted curve, regime and confidence for
// one expiry of the snapshot. Requires at least three distinct strikes with
// a valid implied volatility; otherwise returns ErrInsufficientData.
func (e *Engine) Compute(snap models.OptionsChainSnapshot, expiry time.Time) (models.SmirkMetrics, error) {
	slice, ok := snap.Slice(expiry)
	if !ok {
		return models.SmirkMetrics{}, fmt.Errorf("expiry %s: %w: not in snapshot",
			expiry.Format("2006-01-02"), ErrInsufficientData)
	}

	strikes, ivs := aggregateIV(slice)
	if len(strikes) < 3 {
		return models.SmirkMetrics{}, fmt.Errorf("expiry %s: %w: %d valid-IV strikes",
			expiry.Format("2006-01-02"), ErrInsufficientData, len(strikes))
	}

	confidence := 1.0
	if len(strikes) < e.cfg.TargetStrikes {
		confidence -= e.cfg.FallbackPenalty
	}

	atm := nearestStrike(strikes, snap.SpotPrice)
	putIV, putFellBack := sideIV(slice, strikes, atm, models.Put)
	callIV, callFellBack := sideIV(slice, strikes, atm, models.Call)
	if putFellBack {
		confidence -= e.cfg.FallbackPenalty
	}
	if callFellBack {
		confidence -= e.cfg.FallbackPenalty
	}
	if confidence < 0 {
		confidence = 0
	}
	skew := putIV - callIV

	curve := fitQuadratic(strikes, ivs)
	kurt := standardizedKurtosis(curve)

	regime := e.classify(skew, kurt)
	if e.cfg.SmoothingWindow > 0 {
		regime = e.smooth(expiry, regime)
	}

	return models.SmirkMetrics{
		Symbol:      snap.Symbol,
		Expiry:      expiry,
		Skew:        skew,
		Kurtosis:    kurt,
		FittedCurve: curve,
		Regime:      regime,
		Confidence:  confidence,
		ATMStrike:   atm,
		OTMPutIV:    putIV,
		OTMCallIV:   callIV,
	}, nil
}

// ComputeAll runs Compute for every expiry of the snapshot on a bounded
// worker pool. Per-expiry failures are absorbed into the result map; a
// cancelled context stops scheduling further expiries.
func (e *Engine) ComputeAll(ctx context.Context, snap models.OptionsChainSnapshot) map[string]ExpiryResult {
	type job struct {
		key    string
		expiry time.Time
	}
	jobs := make(chan job)
	results := make(map[string]ExpiryResult, len(snap.Expiries))

	var mu sync.Mutex
	var wg sync.WaitGroup
	workers := e.cfg.Workers
	if workers > len(snap.Expiries) {
		workers = len(snap.Expiries)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				m, err := e.Compute(snap, j.expiry)
				mu.Lock()
				results[j.key] = ExpiryResult{Metrics: m, Err: err}
				mu.Unlock()
			}
		}()
	}

	for _, ex := range snap.Expiries {
		key := ex.Expiry.UTC().Format("2006-01-02")
		select {
		case <-ctx.Done():
			mu.Lock()
			results[key] = ExpiryResult{Err: ctx.Err()}
			mu.Unlock()
		case jobs <- job{key: key, expiry: ex.Expiry}:
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// classify applies the fixed-priority rule table: skew magnitude first,
// kurtosis second, first matching rule wins.
func (e *Engine) classify(skew, kurtosis float64) models.Regime {
	switch {
	case skew >= e.cfg.SkewThreshold:
		return models.RegimeSkewedBearish
	case skew <= -e.cfg.SkewThreshold:
		return models.RegimeSkewedBullish
	case kurtosis >= e.cfg.KurtosisThreshold:
		return models.RegimeElevatedKurtosis
	default:
		return models.RegimeFlat
	}
}

// smooth folds the freshly classified regime into the bounded per-expiry
// history and returns the majority label; ties go to the current regime.
func (e *Engine) smooth(expiry time.Time, current models.Regime) models.Regime {
	key := expiry.UnixNano()
	e.mu.Lock()
	defer e.mu.Unlock()

	h := append(e.history[key], current)
	if len(h) > e.cfg.SmoothingWindow {
		h = h[len(h)-e.cfg.SmoothingWindow:]
	}
	e.history[key] = h

	counts := make(map[models.Regime]int, 4)
	for _, r := range h {
		counts[r]++
	}
	best, bestN := current, counts[current]
	for r, n := range counts {
		if n > bestN {
			best, bestN = r, n
		}
	}
	return best
}

// aggregateIV collapses the slice to distinct strikes with the mean valid
// implied volatility per strike, deterministic for identical input order.
func aggregateIV(slice models.ExpirySlice) (strikes, ivs []float64) {
	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	for _, q := range slice.Quotes {
		if !q.HasIV() {
			continue
		}
		sums[q.Strike] += q.ImpliedVol
		counts[q.Strike]++
	}
	strikes = make([]float64, 0, len(sums))
	for k := range sums {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)
	ivs = make([]float64, len(strikes))
	for i, k := range strikes {
		ivs[i] = sums[k] / float64(counts[k])
	}
	return strikes, ivs
}

// nearestStrike returns the listed strike closest to spot; the lower strike
// wins exact ties so the choice is stable.
func nearestStrike(strikes []float64, spot float64) float64 {
	best := strikes[0]
	for _, k := range strikes[1:] {
		if math.Abs(k-spot) < math.Abs(best-spot) {
			best = k
		}
	}
	return best
}

// sideIV picks the implied volatility for the nearest OTM strike on the put
// (below ATM) or call (above ATM) side. When no strike exists strictly on
// that side, or no quote of the wanted type trades at the chosen strike, it
// falls back to the nearest usable quote and reports the fallback.
func sideIV(slice models.ExpirySlice, strikes []float64, atm float64, want models.OptionType) (float64, bool) {
	var target float64
	found := false
	if want == models.Put {
		for _, k := range strikes {
			if k < atm {
				target, found = k, true // strikes ascend; last below ATM wins
			}
		}
	} else {
		for _, k := range strikes {
			if k > atm {
				target, found = k, true
				break
			}
		}
	}
	fellBack := false
	if !found {
		target = atm
		fellBack = true
	}

	// Prefer the quote of the wanted type at the target strike.
	var fallback float64
	var haveFallback bool
	for _, q := range slice.Quotes {
		if q.Strike != target || !q.HasIV() {
			continue
		}
		if q.Type == want {
			return q.ImpliedVol, fellBack
		}
		if !haveFallback {
			fallback, haveFallback = q.ImpliedVol, true
		}
	}
	if haveFallback {
		return fallback, true
	}

	// Target strike had no valid IV at all; walk outward to the nearest
	// usable quote on the same side.
	bestDist := math.MaxFloat64
	var bestIV float64
	for _, q := range slice.Quotes {
		if !q.HasIV() {
			continue
		}
		onSide := (want == models.Put && q.Strike < atm) || (want == models.Call && q.Strike > atm)
		if !onSide {
			continue
		}
		if d := math.Abs(q.Strike - atm); d < bestDist {
			bestDist, bestIV = d, q.ImpliedVol
		}
	}
	if bestDist < math.MaxFloat64 {
		return bestIV, true
	}
	// Last resort: ATM itself.
	for _, q := range slice.Quotes {
		if q.Strike == atm && q.HasIV() {
			return q.ImpliedVol, true
		}
	}
	return 0, true
}

// standardizedKurtosis is the fourth standardized moment of the fitted IVs
// across strikes, demeaned. A flat curve reads as zero.
func standardizedKurtosis(curve []models.CurvePoint) float64 {
	n := float64(len(curve))
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, p := range curve {
		mean += p.IV
	}
	mean /= n

	var m2, m4 float64
	for _, p := range curve {
		d := p.IV - mean
		m2 += d * d
		m4 += d * d * d * d
	}
	m2 /= n
	m4 /= n
	if m2 < 1e-12 {
		return 0
	}
	return m4 / (m2 * m2)
}
