package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domsvc "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/service"
)

// HistoricalPoint is one backtest observation: the feature vector and spot
// price a strategy would have seen, plus the realized return of the
// following period used to score its decision.
type HistoricalPoint struct {
	Features   models.FeatureVector
	Spot       float64
	NextReturn float64
}

// StrategyReport scores one candidate over a shared history.
type StrategyReport struct {
	Name      string
	Trades    int
	WinRate   float64
	MeanPnL   float64
	Sharpe    float64
	CVaR      float64
	FinalEdge float64
}

// Harness replays identical historical feature vectors through each
// candidate strategy and compares a declared scalar metric (realized
// Sharpe). Candidates hold no hidden mutable state: each point is evaluated
// through the same pure Evaluate contract the live pipeline uses.
type Harness struct {
	candidates []domsvc.Strategy
	cvarLevel  float64
}

func NewHarness(candidates []domsvc.Strategy, cvarLevel float64) *Harness {
	if cvarLevel <= 0 || cvarLevel >= 1 {
		cvarLevel = 0.95
	}
	return &Harness{candidates: candidates, cvarLevel: cvarLevel}
}

// Run scores every candidate over the history. Reports are ordered best
// Sharpe first.
func (h *Harness) Run(ctx context.Context, history []HistoricalPoint) ([]StrategyReport, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("backtest: empty history")
	}
	reports := make([]StrategyReport, 0, len(h.candidates))
	for _, c := range h.candidates {
		r, err := h.score(ctx, c, history)
		if err != nil {
			return nil, fmt.Errorf("backtest %s: %w", c.Name(), err)
		}
		reports = append(reports, r)
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Sharpe > reports[j].Sharpe })
	return reports, nil
}

// Best returns the top report, by realized Sharpe.
func (h *Harness) Best(ctx context.Context, history []HistoricalPoint) (StrategyReport, error) {
	reports, err := h.Run(ctx, history)
	if err != nil {
		return StrategyReport{}, err
	}
	return reports[0], nil
}

func (h *Harness) score(ctx context.Context, s domsvc.Strategy, history []HistoricalPoint) (StrategyReport, error) {
	var returns []float64
	wins := 0
	for _, pt := range history {
		sig, err := s.Evaluate(ctx, pt.Features, pt.Spot)
		if err != nil {
			return StrategyReport{}, err
		}
		if sig.Signal == models.Hold {
			continue
		}
		r := float64(sig.Signal) * pt.NextReturn
		returns = append(returns, r)
		if r > 0 {
			wins++
		}
	}

	report := StrategyReport{Name: s.Name(), Trades: len(returns)}
	if len(returns) == 0 {
		return report, nil
	}
	mean, std := meanStd(returns)
	report.MeanPnL = mean
	report.WinRate = float64(wins) / float64(len(returns))
	if std > 0 {
		report.Sharpe = mean / std
	}
	report.CVaR = ConditionalVaR(returns, h.cvarLevel)
	report.FinalEdge = mean * float64(len(returns))
	return report, nil
}

// ConditionalVaR is the mean of the worst (1-level) tail of returns: the
// expected loss beyond the VaR quantile.
func ConditionalVaR(returns []float64, level float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int((1 - level) * float64(len(sorted)))
	if idx < 1 {
		idx = 1
	}
	tail := sorted[:idx]
	sum := 0.0
	for _, r := range tail {
		sum += r
	}
	return sum / float64(len(tail))
}

// HistoryFromAudit joins persisted signals with candle history: each
// signal's fused feature vector becomes one observation, scored by the
// realized return of the candle bucket after the one containing the
// signal. Signals in any order; candles must be ascending.
func HistoryFromAudit(signals []models.TradingSignal, candles []models.Candle) []HistoricalPoint {
	if len(candles) < 2 {
		return nil
	}
	sorted := append([]models.TradingSignal(nil), signals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	out := make([]HistoricalPoint, 0, len(sorted))
	for _, sig := range sorted {
		// last bucket at or before the signal
		idx := sort.Search(len(candles), func(i int) bool {
			return candles[i].Bucket.After(sig.Timestamp)
		}) - 1
		if idx < 0 || idx+1 >= len(candles) {
			continue
		}
		cur, next := candles[idx].Close, candles[idx+1].Close
		if cur <= 0 {
			continue
		}
		out = append(out, HistoricalPoint{
			Features:   sig.Features,
			Spot:       sig.Price,
			NextReturn: (next - cur) / cur,
		})
	}
	return out
}

func meanStd(xs []float64) (mean, std float64) {
	n := float64(len(xs))
	for _, x := range xs {
		mean += x
	}
	mean /= n
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
