package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
)

var cycleTime = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

// bearishVector reflects a fully computed smirk with skew +0.20 at the
// nearest expiry and no contradicting external features.
func bearishVector(conf float64) models.FeatureVector {
	fv := models.NewFeatureVector("BTC-USD", cycleTime)
	fv.Set("smirk.nearest."+features.SmirkSkew, 0.20)
	fv.Set("smirk.nearest."+features.SmirkKurtosis, 2.0)
	fv.Set("smirk.nearest."+features.SmirkConfidence, conf)
	fv.Set("smirk.nearest."+features.SmirkLean, models.RegimeSkewedBearish.Lean())
	return fv
}

func bullishVector(conf float64) models.FeatureVector {
	fv := models.NewFeatureVector("BTC-USD", cycleTime)
	fv.Set("smirk.nearest."+features.SmirkSkew, -0.20)
	fv.Set("smirk.nearest."+features.SmirkKurtosis, 2.0)
	fv.Set("smirk.nearest."+features.SmirkConfidence, conf)
	fv.Set("smirk.nearest."+features.SmirkLean, models.RegimeSkewedBullish.Lean())
	return fv
}

func TestInterpretBearishSmirkSells(t *testing.T) {
	i := NewInterpreter(DefaultThresholds(), DefaultWeights())
	sig := i.Interpret(bearishVector(1.0), 60500)
	if sig.Signal != models.Sell {
		t.Fatalf("signal = %s, want SELL", sig.Signal)
	}
	if sig.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0 for complete vector", sig.Confidence)
	}
}

func TestInterpretLimitPriceOffsets(t *testing.T) {
	th := DefaultThresholds()
	th.LimitOffsetPercent = 0.5
	i := NewInterpreter(th, DefaultWeights())

	buy := i.Interpret(bullishVector(1.0), 70.00)
	if buy.Signal != models.Buy {
		t.Fatalf("signal = %s, want BUY", buy.Signal)
	}
	if math.Abs(buy.LimitPrice-69.65) > 1e-9 {
		t.Fatalf("buy limit = %v, want 69.65", buy.LimitPrice)
	}

	sell := i.Interpret(bearishVector(1.0), 70.00)
	if math.Abs(sell.LimitPrice-70.35) > 1e-9 {
		t.Fatalf("sell limit = %v, want 70.35", sell.LimitPrice)
	}
}

func TestInterpretHoldCarriesNoLimitPrice(t *testing.T) {
	i := NewInterpreter(DefaultThresholds(), DefaultWeights())
	fv := models.NewFeatureVector("BTC-USD", cycleTime)
	fv.Set("smirk.nearest."+features.SmirkSkew, 0.0)
	fv.Set("smirk.nearest."+features.SmirkKurtosis, 1.0)
	fv.Set("smirk.nearest."+features.SmirkConfidence, 1.0)
	fv.Set("smirk.nearest."+features.SmirkLean, 0)

	sig := i.Interpret(fv, 60500)
	if sig.Signal != models.Hold {
		t.Fatalf("signal = %s, want HOLD", sig.Signal)
	}
	if sig.HasLimitPrice() {
		t.Fatalf("HOLD must not carry a limit price, got %v", sig.LimitPrice)
	}
}

func TestInterpretAbsentFeatureLowersConfidence(t *testing.T) {
	i := NewInterpreter(DefaultThresholds(), DefaultWeights())

	complete := bearishVector(1.0)
	complete.Set(features.FeatureSentiment, -0.4)

	partial := bearishVector(1.0)
	partial.SetAbsent(features.FeatureSentiment)

	full := i.Interpret(complete, 60500)
	degraded := i.Interpret(partial, 60500)
	if full.Confidence != 1.0 {
		t.Fatalf("complete vector confidence = %v, want 1.0", full.Confidence)
	}
	if degraded.Confidence >= full.Confidence {
		t.Fatalf("absent feature must strictly lower confidence: %v >= %v",
			degraded.Confidence, full.Confidence)
	}
}

func TestInterpretLowConfidenceDegradesToHold(t *testing.T) {
	i := NewInterpreter(DefaultThresholds(), DefaultWeights())
	sig := i.Interpret(bearishVector(0.3), 60500)
	if sig.Signal != models.Hold {
		t.Fatalf("signal = %s, want HOLD below min confidence", sig.Signal)
	}
	if sig.HasLimitPrice() {
		t.Fatalf("degraded HOLD must not carry a limit price")
	}
}

func TestInterpretSentimentAdjustsScore(t *testing.T) {
	i := NewInterpreter(DefaultThresholds(), DefaultWeights())

	fv := models.NewFeatureVector("BTC-USD", cycleTime)
	fv.Set("smirk.nearest."+features.SmirkSkew, 0.0)
	fv.Set("smirk.nearest."+features.SmirkKurtosis, 1.0)
	fv.Set("smirk.nearest."+features.SmirkConfidence, 1.0)
	fv.Set("smirk.nearest."+features.SmirkLean, 0)
	fv.Set(features.FeatureSentiment, 0.9)

	sig := i.Interpret(fv, 60500)
	if sig.Signal != models.Buy {
		t.Fatalf("signal = %s, want BUY on strong sentiment over flat smirk", sig.Signal)
	}
}

func TestInterpretStorageLevelBearish(t *testing.T) {
	i := NewInterpreter(DefaultThresholds(), DefaultWeights())

	fv := models.NewFeatureVector("WTI-USD", cycleTime)
	fv.Set("smirk.nearest."+features.SmirkSkew, 0.0)
	fv.Set("smirk.nearest."+features.SmirkKurtosis, 1.0)
	fv.Set("smirk.nearest."+features.SmirkConfidence, 1.0)
	fv.Set("smirk.nearest."+features.SmirkLean, 0)
	fv.Set(features.FeatureStorageLevel, 1.0)

	sig := i.Interpret(fv, 70.00)
	if sig.Signal != models.Sell {
		t.Fatalf("signal = %s, want SELL on full storage", sig.Signal)
	}
}
