package usecase

import (
	"errors"
	"testing"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
)

func buySignal(symbol string, price float64) models.TradingSignal {
	return models.TradingSignal{
		Timestamp:  cycleTime,
		Symbol:     symbol,
		Price:      price,
		Signal:     models.Buy,
		Confidence: 0.9,
		Source:     "volatility_smirk",
		Features:   models.NewFeatureVector(symbol, cycleTime),
	}
}

func TestSizeFloorsToTradeUnit(t *testing.T) {
	cfg := DefaultSizerConfig()
	s := NewSizer(cfg)

	// Balance 100_000 at 2% risk gives risk amount 2000; with vol proxy
	// 2.0 and multiplier 1.5 the raw quantity is 666.67.
	account := models.AccountState{Balance: 100_000, OpenRisk: 0}
	dec, err := s.Size(buySignal("BTC-USD", 60500), account, 2.0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if dec.Quantity != 666 {
		t.Fatalf("quantity = %v, want 666 (floored, never rounded up)", dec.Quantity)
	}
	if dec.RiskAmount != 2000 {
		t.Fatalf("risk amount = %v, want 2000", dec.RiskAmount)
	}
}

func TestSizePortfolioRiskCap(t *testing.T) {
	s := NewSizer(DefaultSizerConfig())

	// Open risk already at the cap: adding one more trade's risk must fail.
	account := models.AccountState{Balance: 100_000, OpenRisk: 0.2}
	_, err := s.Size(buySignal("BTC-USD", 60500), account, 2.0)
	if !errors.Is(err, ErrRiskLimitExceeded) {
		t.Fatalf("err = %v, want ErrRiskLimitExceeded", err)
	}

	// Just under the cap still sizes.
	account.OpenRisk = 0.17
	if _, err := s.Size(buySignal("BTC-USD", 60500), account, 2.0); err != nil {
		t.Fatalf("Size below cap: %v", err)
	}
}

func TestSizeRejectsHold(t *testing.T) {
	s := NewSizer(DefaultSizerConfig())
	sig := buySignal("BTC-USD", 60500)
	sig.Signal = models.Hold
	_, err := s.Size(sig, models.AccountState{Balance: 100_000}, 2.0)
	if !errors.Is(err, ErrInvalidSignal) {
		t.Fatalf("err = %v, want ErrInvalidSignal", err)
	}
}

func TestSizeRejectsNonPositiveVol(t *testing.T) {
	s := NewSizer(DefaultSizerConfig())
	for _, proxy := range []float64{0, -1.5} {
		_, err := s.Size(buySignal("BTC-USD", 60500), models.AccountState{Balance: 100_000}, proxy)
		if !errors.Is(err, ErrRiskLimitExceeded) {
			t.Fatalf("proxy %v: err = %v, want ErrRiskLimitExceeded", proxy, err)
		}
	}
}

func TestSizeBelowMinimumFails(t *testing.T) {
	cfg := DefaultSizerConfig()
	cfg.MinQuantity = 1
	s := NewSizer(cfg)

	// Tiny balance against a large vol proxy floors to zero.
	account := models.AccountState{Balance: 50}
	_, err := s.Size(buySignal("BTC-USD", 60500), account, 10)
	if !errors.Is(err, ErrRiskLimitExceeded) {
		t.Fatalf("err = %v, want ErrRiskLimitExceeded", err)
	}
}

// Holding risk amount fixed, quantity must never increase with volatility.
func TestSizeMonotonicInVolatility(t *testing.T) {
	s := NewSizer(DefaultSizerConfig())
	account := models.AccountState{Balance: 100_000}

	prev := -1.0
	for _, proxy := range []float64{0.5, 1.0, 2.0, 4.0, 8.0} {
		dec, err := s.Size(buySignal("BTC-USD", 60500), account, proxy)
		if err != nil {
			t.Fatalf("proxy %v: %v", proxy, err)
		}
		if prev >= 0 && dec.Quantity > prev {
			t.Fatalf("quantity grew with volatility: %v -> %v at proxy %v", prev, dec.Quantity, proxy)
		}
		prev = dec.Quantity
	}
}

func TestSizeSentimentDampening(t *testing.T) {
	s := NewSizer(DefaultSizerConfig())
	account := models.AccountState{Balance: 100_000}

	calm := buySignal("BTC-USD", 60500)
	calm.Features.Set(features.FeatureSentiment, 0.5)

	euphoric := buySignal("BTC-USD", 60500)
	euphoric.Features.Set(features.FeatureSentiment, 0.9)

	base, err := s.Size(calm, account, 2.0)
	if err != nil {
		t.Fatalf("Size calm: %v", err)
	}
	damped, err := s.Size(euphoric, account, 2.0)
	if err != nil {
		t.Fatalf("Size euphoric: %v", err)
	}
	if base.Quantity != 666 {
		t.Fatalf("calm quantity = %v, want 666", base.Quantity)
	}
	if damped.Quantity != 333 {
		t.Fatalf("damped quantity = %v, want 333", damped.Quantity)
	}
	if damped.Inputs.SentimentDampening != 0.5 {
		t.Fatalf("dampening factor = %v, want 0.5", damped.Inputs.SentimentDampening)
	}

	// Panic sentiment dampens just like euphoria.
	panicked := buySignal("BTC-USD", 60500)
	panicked.Features.Set(features.FeatureSentiment, -0.95)
	dec, err := s.Size(panicked, account, 2.0)
	if err != nil {
		t.Fatalf("Size panicked: %v", err)
	}
	if dec.Quantity != 333 {
		t.Fatalf("panic quantity = %v, want 333", dec.Quantity)
	}
}

func TestSizeProtectiveLevels(t *testing.T) {
	s := NewSizer(DefaultSizerConfig())
	account := models.AccountState{Balance: 100_000}

	buy, err := s.Size(buySignal("WTI-USD", 100), account, 2.0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if buy.StopLoss != 98 || buy.TakeProfit != 105 {
		t.Fatalf("BUY levels = (%v, %v), want (98, 105)", buy.StopLoss, buy.TakeProfit)
	}

	sell := buySignal("WTI-USD", 100)
	sell.Signal = models.Sell
	dec, err := s.Size(sell, account, 2.0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if dec.StopLoss != 102 || dec.TakeProfit != 95 {
		t.Fatalf("SELL levels = (%v, %v), want (102, 95)", dec.StopLoss, dec.TakeProfit)
	}
}
