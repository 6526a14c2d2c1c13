package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domsvc "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/service"
)

type fixedStrategy struct {
	name      string
	direction models.Direction
}

func (s fixedStrategy) Name() string { return s.name }
func (s fixedStrategy) Evaluate(_ context.Context, fv models.FeatureVector, spot float64) (models.TradingSignal, error) {
	return models.TradingSignal{
		Timestamp:  fv.Timestamp,
		Symbol:     fv.Symbol,
		Price:      spot,
		Signal:     s.direction,
		Confidence: 1,
		Source:     s.name,
	}, nil
}

func trendHistory(returns []float64) []HistoricalPoint {
	pts := make([]HistoricalPoint, len(returns))
	for i, r := range returns {
		pts[i] = HistoricalPoint{
			Features:   models.NewFeatureVector("BTC-USD", cycleTime),
			Spot:       60500,
			NextReturn: r,
		}
	}
	return pts
}

func TestHarnessRanksByRealizedSharpe(t *testing.T) {
	h := NewHarness([]domsvc.Strategy{
		fixedStrategy{name: "always_buy", direction: models.Buy},
		fixedStrategy{name: "always_sell", direction: models.Sell},
		fixedStrategy{name: "always_hold", direction: models.Hold},
	}, 0.95)

	// An uptrend with mild noise: long wins, short loses, hold trades nothing.
	reports, err := h.Run(context.Background(), trendHistory([]float64{0.01, 0.02, -0.005, 0.015, 0.01}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	if reports[0].Name != "always_buy" {
		t.Fatalf("best = %s, want always_buy", reports[0].Name)
	}
	if reports[0].Sharpe <= reports[1].Sharpe {
		t.Fatalf("reports not ordered by Sharpe: %v vs %v", reports[0].Sharpe, reports[1].Sharpe)
	}

	for _, r := range reports {
		if r.Name == "always_hold" {
			if r.Trades != 0 || r.Sharpe != 0 {
				t.Fatalf("hold strategy must score zero trades, got %+v", r)
			}
		}
		if r.Name == "always_buy" {
			if r.Trades != 5 {
				t.Fatalf("buy trades = %d, want 5", r.Trades)
			}
			if math.Abs(r.WinRate-0.8) > 1e-9 {
				t.Fatalf("buy win rate = %v, want 0.8", r.WinRate)
			}
		}
	}
}

func TestHarnessBest(t *testing.T) {
	h := NewHarness([]domsvc.Strategy{
		fixedStrategy{name: "always_buy", direction: models.Buy},
		fixedStrategy{name: "always_sell", direction: models.Sell},
	}, 0.95)

	best, err := h.Best(context.Background(), trendHistory([]float64{-0.01, -0.02, -0.015}))
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if best.Name != "always_sell" {
		t.Fatalf("best = %s, want always_sell in a downtrend", best.Name)
	}
}

func TestHarnessEmptyHistory(t *testing.T) {
	h := NewHarness([]domsvc.Strategy{fixedStrategy{name: "always_buy", direction: models.Buy}}, 0.95)
	if _, err := h.Run(context.Background(), nil); err == nil {
		t.Fatalf("empty history must fail")
	}
}

func TestConditionalVaR(t *testing.T) {
	returns := []float64{-0.10, -0.02, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07, 0.08}
	// At the 95% level the tail keeps at least one observation: the worst.
	if got := ConditionalVaR(returns, 0.95); got != -0.10 {
		t.Fatalf("CVaR(0.95) = %v, want -0.10", got)
	}
	// At 80% the tail is the worst two observations.
	want := (-0.10 + -0.02) / 2
	if got := ConditionalVaR(returns, 0.80); math.Abs(got-want) > 1e-12 {
		t.Fatalf("CVaR(0.80) = %v, want %v", got, want)
	}
	if got := ConditionalVaR(nil, 0.95); got != 0 {
		t.Fatalf("CVaR of no returns = %v, want 0", got)
	}
}

func TestHistoryFromAudit(t *testing.T) {
	base := cycleTime.Truncate(time.Hour)
	candles := []models.Candle{
		{Bucket: base, Symbol: "BTC-USD", Close: 100},
		{Bucket: base.Add(time.Hour), Symbol: "BTC-USD", Close: 110},
		{Bucket: base.Add(2 * time.Hour), Symbol: "BTC-USD", Close: 99},
	}
	signals := []models.TradingSignal{
		// inside the second bucket: scored by the 110 -> 99 move
		{Timestamp: base.Add(90 * time.Minute), Symbol: "BTC-USD", Price: 109,
			Features: models.NewFeatureVector("BTC-USD", base.Add(90*time.Minute))},
		// inside the first bucket: scored by the 100 -> 110 move
		{Timestamp: base.Add(10 * time.Minute), Symbol: "BTC-USD", Price: 101,
			Features: models.NewFeatureVector("BTC-USD", base.Add(10*time.Minute))},
		// before any candle: dropped
		{Timestamp: base.Add(-time.Hour), Symbol: "BTC-USD", Price: 95,
			Features: models.NewFeatureVector("BTC-USD", base.Add(-time.Hour))},
		// inside the last bucket, no following return: dropped
		{Timestamp: base.Add(2*time.Hour + time.Minute), Symbol: "BTC-USD", Price: 98,
			Features: models.NewFeatureVector("BTC-USD", base.Add(2*time.Hour+time.Minute))},
	}

	history := HistoryFromAudit(signals, candles)
	if len(history) != 2 {
		t.Fatalf("expected 2 points, got %d", len(history))
	}
	if history[0].Spot != 101 || math.Abs(history[0].NextReturn-0.10) > 1e-9 {
		t.Fatalf("first point got spot=%v ret=%v", history[0].Spot, history[0].NextReturn)
	}
	wantRet := (99.0 - 110.0) / 110.0
	if history[1].Spot != 109 || math.Abs(history[1].NextReturn-wantRet) > 1e-9 {
		t.Fatalf("second point got spot=%v ret=%v", history[1].Spot, history[1].NextReturn)
	}
}

func TestHistoryFromAuditTooFewCandles(t *testing.T) {
	signals := []models.TradingSignal{{Timestamp: cycleTime, Symbol: "BTC-USD"}}
	if got := HistoryFromAudit(signals, []models.Candle{{Bucket: cycleTime, Close: 100}}); got != nil {
		t.Fatalf("expected nil history, got %v", got)
	}
}
