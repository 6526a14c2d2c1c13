package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
)

func candles(closes ...float64) []models.Candle {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Bucket: start.Add(time.Duration(i) * time.Hour),
			Symbol: "BTC-USD",
			Open:   c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: 100,
		}
	}
	return out
}

func TestRSIAllGainsSaturates(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi, ok := RSI(closes, 14)
	if !ok {
		t.Fatalf("expected RSI to be computable")
	}
	if rsi != 100 {
		t.Fatalf("rsi = %v, want 100 for monotone gains", rsi)
	}
}

func TestRSIInsufficientHistory(t *testing.T) {
	if _, ok := RSI([]float64{1, 2, 3}, 14); ok {
		t.Fatalf("expected RSI to report insufficient history")
	}
}

func TestEMAConstantSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 42
	}
	ema, ok := EMA(closes, 20)
	if !ok {
		t.Fatalf("expected EMA to be computable")
	}
	if math.Abs(ema-42) > 1e-9 {
		t.Fatalf("ema = %v, want 42", ema)
	}
}

func TestMACDHistogramFlatIsZero(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 70
	}
	hist, ok := MACDHistogram(closes, 12, 26, 9)
	if !ok {
		t.Fatalf("expected MACD to be computable")
	}
	if math.Abs(hist) > 1e-9 {
		t.Fatalf("histogram = %v, want 0 for flat series", hist)
	}
}

func TestATRPositiveForMovingSeries(t *testing.T) {
	cs := candles(70, 71, 69, 72, 68, 73, 67, 74, 66, 75, 70, 71, 69, 72, 68, 73)
	atr, ok := ATR(cs, 14)
	if !ok {
		t.Fatalf("expected ATR to be computable")
	}
	if atr <= 0 {
		t.Fatalf("atr = %v, want > 0", atr)
	}
}

func TestBuildMarksShortHistoryAbsent(t *testing.T) {
	out := Build(candles(70, 71, 72), DefaultConfig())
	for _, name := range []string{features.FeatureRSI, features.FeatureEMA, features.FeatureMACD, features.FeatureADX} {
		if out[name].Present {
			t.Fatalf("%s must be absent with 3 candles", name)
		}
	}
}

func TestBuildComputesWithHistory(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 70 + 3*math.Sin(float64(i)/5)
	}
	out := Build(candles(closes...), DefaultConfig())
	for _, name := range []string{features.FeatureRSI, features.FeatureEMA, features.FeatureMACD, features.FeatureADX} {
		if !out[name].Present {
			t.Fatalf("%s must be present with 80 candles", name)
		}
	}
	rsi := out[features.FeatureRSI].Value
	if rsi < 0 || rsi > 100 {
		t.Fatalf("rsi out of range: %v", rsi)
	}
}
