package usecase

import (
	"context"
	"testing"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domsvc "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/service"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
)

func TestNewStrategyKinds(t *testing.T) {
	for kind, name := range map[domsvc.StrategyKind]string{
		domsvc.StrategySmirk:     "volatility_smirk",
		domsvc.StrategySentiment: "sentiment",
		domsvc.StrategyComposite: "composite",
	} {
		s, err := NewStrategy(kind, DefaultThresholds(), DefaultWeights())
		if err != nil {
			t.Fatalf("NewStrategy(%s): %v", kind, err)
		}
		if s.Name() != name {
			t.Fatalf("NewStrategy(%s).Name() = %s, want %s", kind, s.Name(), name)
		}
	}
	if _, err := NewStrategy("martingale", DefaultThresholds(), DefaultWeights()); err == nil {
		t.Fatalf("unknown kind must fail")
	}
}

func TestSentimentStrategy(t *testing.T) {
	s := &SentimentStrategy{thresholds: DefaultThresholds()}

	fv := models.NewFeatureVector("BTC-USD", cycleTime)
	fv.Set(features.FeatureSentiment, 0.9)
	sig, err := s.Evaluate(context.Background(), fv, 60500)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Signal != models.Buy {
		t.Fatalf("signal = %s, want BUY", sig.Signal)
	}

	// Missing sentiment means no view at all.
	empty := models.NewFeatureVector("BTC-USD", cycleTime)
	sig, err = s.Evaluate(context.Background(), empty, 60500)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Signal != models.Hold || sig.Confidence != 0 {
		t.Fatalf("absent sentiment must HOLD at zero confidence, got %s/%v", sig.Signal, sig.Confidence)
	}
}

func TestCompositeVetoOnDisagreement(t *testing.T) {
	s, err := NewStrategy(domsvc.StrategyComposite, DefaultThresholds(), DefaultWeights())
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	// Bearish smirk against strongly bullish sentiment: the composite holds.
	fv := bearishVector(1.0)
	fv.Set(features.FeatureSentiment, 0.95)
	sig, err := s.Evaluate(context.Background(), fv, 60500)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Signal != models.Hold {
		t.Fatalf("signal = %s, want HOLD on disagreement", sig.Signal)
	}
	if sig.HasLimitPrice() {
		t.Fatalf("vetoed signal must not carry a limit price")
	}
}

func TestCompositeAgreementKeepsDirection(t *testing.T) {
	s, err := NewStrategy(domsvc.StrategyComposite, DefaultThresholds(), DefaultWeights())
	if err != nil {
		t.Fatalf("NewStrategy: %v", err)
	}

	fv := bearishVector(1.0)
	fv.Set(features.FeatureSentiment, -0.9)
	sig, err := s.Evaluate(context.Background(), fv, 60500)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Signal != models.Sell {
		t.Fatalf("signal = %s, want SELL when both agree", sig.Signal)
	}
	if sig.Source != "composite" {
		t.Fatalf("source = %s, want composite", sig.Source)
	}
}
