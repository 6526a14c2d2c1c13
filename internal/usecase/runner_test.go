package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/indicators"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
)

type memCandles struct {
	candles []models.Candle
}

func (m *memCandles) GetCandles(context.Context, string, time.Time, time.Time, domrepo.Timeframe) ([]models.Candle, error) {
	return m.candles, nil
}
func (m *memCandles) GetLatestNCandles(context.Context, string, int, domrepo.Timeframe) ([]models.Candle, error) {
	return m.candles, nil
}

func hourlyCandles(n int) *memCandles {
	base := cycleTime.Add(-time.Duration(n) * time.Hour)
	out := make([]models.Candle, n)
	px := 100.0
	for i := range out {
		px += 0.5
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Hour),
			Symbol: "BTC-USD",
			Open:   px - 0.5,
			High:   px + 1.5,
			Low:    px - 1.5,
			Close:  px,
			Volume: 10,
		}
	}
	return &memCandles{candles: out}
}

func newTestRunner(store *memStore, pub *memPublisher, account AccountProvider) *CycleRunner {
	return NewCycleRunner(
		newTestPipeline(store, pub),
		nil,
		hourlyCandles(40),
		account,
		nopMetrics{},
		xlogger.Nop(),
		RunnerConfig{Timeframe: domrepo.TF1h, CandleLookback: 40, ATRPeriod: 14, Indicators: indicators.DefaultConfig()},
	)
}

// The collector's consume loop and the middleware's retry flush both drive
// Process against the shared account, so risk accounting must hold up under
// concurrent cycles: no lost updates, exposure equal to the sized decisions.
func TestProcessConcurrentCyclesRiskAccounting(t *testing.T) {
	store := &memStore{}
	account := NewPaperAccount(100_000, 0)
	runner := newTestRunner(store, &memPublisher{}, account)

	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = runner.Process(context.Background(), bearishChain())
			}
		}()
	}
	wg.Wait()

	state, err := account.Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decisions := store.decisionCount()
	if decisions == 0 {
		t.Fatal("expected at least one sized decision")
	}
	want := 0.02 * float64(decisions)
	if math.Abs(state.OpenRisk-want) > 1e-9 {
		t.Fatalf("open risk %v does not match %d sized decisions (want %v)", state.OpenRisk, decisions, want)
	}
}

func TestPaperAccountReleasesRiskAfterHoldPeriod(t *testing.T) {
	account := NewPaperAccount(100_000, time.Hour)
	now := cycleTime
	account.now = func() time.Time { return now }

	account.AddOpenRisk(0.02)
	account.AddOpenRisk(0.04)
	state, _ := account.Current(context.Background())
	if math.Abs(state.OpenRisk-0.06) > 1e-9 {
		t.Fatalf("open risk got %v, want 0.06", state.OpenRisk)
	}

	now = now.Add(2 * time.Hour)
	state, _ = account.Current(context.Background())
	if state.OpenRisk != 0 {
		t.Fatalf("open risk not released, got %v", state.OpenRisk)
	}
}

func TestPaperAccountZeroHoldNeverReleases(t *testing.T) {
	account := NewPaperAccount(100_000, 0)
	now := cycleTime
	account.now = func() time.Time { return now }

	account.AddOpenRisk(0.02)
	now = now.Add(1000 * time.Hour)
	state, _ := account.Current(context.Background())
	if math.Abs(state.OpenRisk-0.02) > 1e-9 {
		t.Fatalf("open risk got %v, want 0.02", state.OpenRisk)
	}
}

func TestPaperAccountNegativeDeltaReleasesOldestFirst(t *testing.T) {
	account := NewPaperAccount(100_000, 0)
	account.AddOpenRisk(0.02)
	account.AddOpenRisk(0.04)

	account.AddOpenRisk(-0.03)
	state, _ := account.Current(context.Background())
	if math.Abs(state.OpenRisk-0.03) > 1e-9 {
		t.Fatalf("open risk got %v, want 0.03", state.OpenRisk)
	}

	// releasing more than is open floors at zero
	account.AddOpenRisk(-1)
	state, _ = account.Current(context.Background())
	if state.OpenRisk != 0 {
		t.Fatalf("open risk got %v, want 0", state.OpenRisk)
	}
}
