package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/analytics"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
)

// --- fakes ---

type memStore struct {
	mu        sync.Mutex
	signals   []models.TradingSignal
	decisions []models.PositionSizeDecision
	failWith  error
}

func (m *memStore) Init(context.Context) error { return nil }
func (m *memStore) StoreSignal(_ context.Context, s *models.TradingSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.signals = append(m.signals, *s)
	return nil
}
func (m *memStore) StoreDecision(_ context.Context, d *models.PositionSizeDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.decisions = append(m.decisions, *d)
	return nil
}
func (m *memStore) LatestSignals(context.Context, string, int) ([]models.TradingSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals, nil
}
func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

func (m *memStore) decisionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.decisions)
}

type memPublisher struct {
	mu        sync.Mutex
	published []models.PositionSizeDecision
}

func (m *memPublisher) Publish(_ context.Context, d *models.PositionSizeDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, *d)
	return nil
}
func (m *memPublisher) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordCycle(string, string)              {}
func (nopMetrics) RecordError(string)                      {}
func (nopMetrics) RecordLastSignal(string, float64, float64) {}
func (nopMetrics) RecordLatency(string, float64)           {}

// --- fixtures ---

var pipeExpiry = time.Date(2026, 9, 4, 8, 0, 0, 0, time.UTC)

func pipeQuote(expiry time.Time, strike float64, typ models.OptionType, iv float64) models.OptionQuote {
	return models.OptionQuote{
		Expiry:     expiry,
		Strike:     strike,
		Type:       typ,
		ImpliedVol: iv,
		Volume:     10,
		ObservedAt: cycleTime,
	}
}

// bearishChain carries a +0.20 put-minus-call skew at spot 60500.
func bearishChain() *models.RawChain {
	return &models.RawChain{
		Symbol:    "BTC-USD",
		SpotPrice: 60500,
		Timestamp: cycleTime,
		Quotes: []models.OptionQuote{
			pipeQuote(pipeExpiry, 58000, models.Put, 0.70),
			pipeQuote(pipeExpiry, 59000, models.Put, 0.65),
			pipeQuote(pipeExpiry, 60000, models.Call, 0.55),
			pipeQuote(pipeExpiry, 61000, models.Call, 0.45),
			pipeQuote(pipeExpiry, 63000, models.Call, 0.42),
		},
	}
}

func flatChain() *models.RawChain {
	quotes := make([]models.OptionQuote, 0, 5)
	for _, k := range []float64{58000, 59000, 60000, 61000, 63000} {
		typ := models.Put
		if k > 60000 {
			typ = models.Call
		}
		quotes = append(quotes, pipeQuote(pipeExpiry, k, typ, 0.50))
	}
	return &models.RawChain{Symbol: "BTC-USD", SpotPrice: 60500, Timestamp: cycleTime, Quotes: quotes}
}

func newTestPipeline(store *memStore, pub *memPublisher) *Pipeline {
	monitored, _ := features.ParseMonitored([]string{"nearest"})
	return NewPipeline(
		analytics.NewNormalizer(5, xlogger.Nop()),
		analytics.NewEngine(analytics.DefaultEngineConfig()),
		features.NewFuser(monitored),
		NewInterpreter(DefaultThresholds(), DefaultWeights()),
		NewSizer(DefaultSizerConfig()),
		store,
		pub,
		nopMetrics{},
		xlogger.Nop(),
		5*time.Second,
	)
}

// --- tests ---

func TestRunCycleBearishChainSellsAndPublishes(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	p := newTestPipeline(store, pub)

	res, err := p.RunCycle(context.Background(), CycleInput{
		Chain:           bearishChain(),
		Account:         models.AccountState{Balance: 100_000},
		VolatilityProxy: 2.0,
	})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Signal.Signal != models.Sell {
		t.Fatalf("signal = %s, want SELL", res.Signal.Signal)
	}
	if res.Decision == nil {
		t.Fatalf("non-HOLD signal must carry a sizing decision")
	}
	if len(store.signals) != 1 || len(store.decisions) != 1 {
		t.Fatalf("store holds %d signals / %d decisions, want 1 / 1",
			len(store.signals), len(store.decisions))
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d orders, want 1", len(pub.published))
	}
	if got, ok := p.Latest("BTC-USD"); !ok || got != res {
		t.Fatalf("Latest must return the completed cycle")
	}
}

func TestRunCycleHoldSkipsSizing(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	p := newTestPipeline(store, pub)

	res, err := p.RunCycle(context.Background(), CycleInput{
		Chain:           flatChain(),
		Account:         models.AccountState{Balance: 100_000},
		VolatilityProxy: 2.0,
	})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Signal.Signal != models.Hold {
		t.Fatalf("signal = %s, want HOLD for a flat chain", res.Signal.Signal)
	}
	if res.Decision != nil {
		t.Fatalf("HOLD must not be sized")
	}
	// The signal itself is still on record.
	if len(store.signals) != 1 {
		t.Fatalf("store holds %d signals, want 1", len(store.signals))
	}
	if len(pub.published) != 0 {
		t.Fatalf("HOLD must not publish an order")
	}
}

func TestRunCycleRiskRejectionKeepsSignal(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	p := newTestPipeline(store, pub)

	res, err := p.RunCycle(context.Background(), CycleInput{
		Chain:           bearishChain(),
		Account:         models.AccountState{Balance: 100_000, OpenRisk: 0.2},
		VolatilityProxy: 2.0,
	})
	if err != nil {
		t.Fatalf("risk rejection must not fail the cycle: %v", err)
	}
	if res.Decision != nil {
		t.Fatalf("rejected sizing must not produce a decision")
	}
	if len(store.signals) != 1 {
		t.Fatalf("rejected sizing must still record the signal")
	}
	if len(pub.published) != 0 {
		t.Fatalf("rejected sizing must not publish an order")
	}
}

func TestRunCycleDataQualityFails(t *testing.T) {
	p := newTestPipeline(&memStore{}, &memPublisher{})

	sparse := &models.RawChain{
		Symbol:    "BTC-USD",
		SpotPrice: 60500,
		Timestamp: cycleTime,
		Quotes: []models.OptionQuote{
			pipeQuote(pipeExpiry, 59000, models.Put, 0.6),
			pipeQuote(pipeExpiry, 61000, models.Call, 0.5),
		},
	}
	_, err := p.RunCycle(context.Background(), CycleInput{
		Chain:   sparse,
		Account: models.AccountState{Balance: 100_000},
	})
	if !errors.Is(err, analytics.ErrDataQuality) {
		t.Fatalf("err = %v, want ErrDataQuality", err)
	}
}

func TestRunCycleTimeout(t *testing.T) {
	p := newTestPipeline(&memStore{}, &memPublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.RunCycle(ctx, CycleInput{
		Chain:           bearishChain(),
		Account:         models.AccountState{Balance: 100_000},
		VolatilityProxy: 2.0,
	})
	if !errors.Is(err, ErrPipelineTimeout) {
		t.Fatalf("err = %v, want ErrPipelineTimeout", err)
	}
}

func TestRunCyclePartialExpiryFailure(t *testing.T) {
	store := &memStore{}
	p := newTestPipeline(store, &memPublisher{})

	farExpiry := pipeExpiry.AddDate(0, 1, 0)
	chain := bearishChain()
	// A second expiry with too few valid-IV strikes is skipped, not fatal.
	chain.Quotes = append(chain.Quotes,
		pipeQuote(farExpiry, 59000, models.Put, 0.6),
		pipeQuote(farExpiry, 61000, models.Call, 0.5),
	)

	res, err := p.RunCycle(context.Background(), CycleInput{
		Chain:           chain,
		Account:         models.AccountState{Balance: 100_000},
		VolatilityProxy: 2.0,
	})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	key := farExpiry.UTC().Format("2006-01-02")
	if _, ok := res.SkippedExpiries[key]; !ok {
		t.Fatalf("expiry %s must be reported skipped, got %v", key, res.SkippedExpiries)
	}
	if res.Signal.Signal != models.Sell {
		t.Fatalf("nearest expiry still drives the signal, got %s", res.Signal.Signal)
	}
}

func TestLatestSurvivesFailedCycle(t *testing.T) {
	p := newTestPipeline(&memStore{}, &memPublisher{})

	good, err := p.RunCycle(context.Background(), CycleInput{
		Chain:           bearishChain(),
		Account:         models.AccountState{Balance: 100_000},
		VolatilityProxy: 2.0,
	})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	_, err = p.RunCycle(context.Background(), CycleInput{
		Chain:   &models.RawChain{Symbol: "BTC-USD", Timestamp: cycleTime},
		Account: models.AccountState{Balance: 100_000},
	})
	if err == nil {
		t.Fatalf("empty chain must fail the cycle")
	}
	if got, ok := p.Latest("BTC-USD"); !ok || got != good {
		t.Fatalf("failed cycle must not replace the last completed one")
	}
}
