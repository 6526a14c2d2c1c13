package indicators

import (
	"math"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
)

// Config names the indicator parameter set supplied by configuration.
type Config struct {
	RSIPeriod  int
	EMAPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ADXPeriod  int
}

func DefaultConfig() Config {
	return Config{RSIPeriod: 14, EMAPeriod: 20, MACDFast: 12, MACDSlow: 26, MACDSignal: 9, ADXPeriod: 14}
}

// Build computes the technical feature set from candle history. Indicators
// whose lookback exceeds the available history come back absent rather than
// defaulted, so fusion can tell "not enough data" from "neutral".
func Build(candles []models.Candle, cfg Config) map[string]models.Feature {
	out := map[string]models.Feature{
		features.FeatureRSI:  models.AbsentFeature(),
		features.FeatureEMA:  models.AbsentFeature(),
		features.FeatureMACD: models.AbsentFeature(),
		features.FeatureADX:  models.AbsentFeature(),
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	if rsi, ok := RSI(closes, cfg.RSIPeriod); ok {
		out[features.FeatureRSI] = models.PresentFeature(rsi)
	}
	if ema, ok := EMA(closes, cfg.EMAPeriod); ok {
		out[features.FeatureEMA] = models.PresentFeature(ema)
	}
	if hist, ok := MACDHistogram(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal); ok {
		out[features.FeatureMACD] = models.PresentFeature(hist)
	}
	if adx, ok := ADX(candles, cfg.ADXPeriod); ok {
		out[features.FeatureADX] = models.PresentFeature(adx)
	}
	return out
}

// RSI computes the Wilder relative strength index over the final period.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// EMA computes the exponential moving average of closes, seeded with the
// simple average of the first period values.
func EMA(closes []float64, period int) (float64, bool) {
	series, ok := emaSeries(closes, period)
	if !ok {
		return 0, false
	}
	return series[len(series)-1], true
}

func emaSeries(closes []float64, period int) ([]float64, bool) {
	if period <= 0 || len(closes) < period {
		return nil, false
	}
	k := 2.0 / (float64(period) + 1)
	seed := 0.0
	for _, c := range closes[:period] {
		seed += c
	}
	seed /= float64(period)
	out := make([]float64, 0, len(closes)-period+1)
	out = append(out, seed)
	for _, c := range closes[period:] {
		out = append(out, c*k+out[len(out)-1]*(1-k))
	}
	return out, true
}

// MACDHistogram returns the final MACD histogram value
// (MACD line minus its signal EMA).
func MACDHistogram(closes []float64, fast, slow, signal int) (float64, bool) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal {
		return 0, false
	}
	fastS, ok1 := emaSeries(closes, fast)
	slowS, ok2 := emaSeries(closes, slow)
	if !ok1 || !ok2 {
		return 0, false
	}
	// Align tails: both series end at the last close.
	n := len(slowS)
	macd := make([]float64, n)
	off := len(fastS) - n
	for i := 0; i < n; i++ {
		macd[i] = fastS[i+off] - slowS[i]
	}
	sig, ok := emaSeries(macd, signal)
	if !ok {
		return 0, false
	}
	return macd[len(macd)-1] - sig[len(sig)-1], true
}

// ADX computes Wilder's average directional index over the final period.
func ADX(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < 2*period+1 {
		return 0, false
	}
	var trs, plusDMs, minusDMs []float64
	for i := 1; i < len(candles); i++ {
		cur, prev := candles[i], candles[i-1]
		tr := math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		plus, minus := 0.0, 0.0
		if up > down && up > 0 {
			plus = up
		}
		if down > up && down > 0 {
			minus = down
		}
		trs = append(trs, tr)
		plusDMs = append(plusDMs, plus)
		minusDMs = append(minusDMs, minus)
	}

	smTR := wilderSmooth(trs, period)
	smPlus := wilderSmooth(plusDMs, period)
	smMinus := wilderSmooth(minusDMs, period)

	var dxs []float64
	for i := range smTR {
		if smTR[i] == 0 {
			dxs = append(dxs, 0)
			continue
		}
		pdi := 100 * smPlus[i] / smTR[i]
		mdi := 100 * smMinus[i] / smTR[i]
		if pdi+mdi == 0 {
			dxs = append(dxs, 0)
			continue
		}
		dxs = append(dxs, 100*math.Abs(pdi-mdi)/(pdi+mdi))
	}
	if len(dxs) < period {
		return 0, false
	}
	adx := 0.0
	for _, d := range dxs[:period] {
		adx += d
	}
	adx /= float64(period)
	for _, d := range dxs[period:] {
		adx = (adx*float64(period-1) + d) / float64(period)
	}
	return adx, true
}

func wilderSmooth(xs []float64, period int) []float64 {
	if len(xs) < period {
		return nil
	}
	sum := 0.0
	for _, x := range xs[:period] {
		sum += x
	}
	out := []float64{sum}
	for _, x := range xs[period:] {
		prev := out[len(out)-1]
		out = append(out, prev-prev/float64(period)+x)
	}
	return out
}

// ATR computes Wilder's average true range over the final period, used as
// a volatility proxy for risk sizing when candle history is available.
func ATR(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	var trs []float64
	for i := 1; i < len(candles); i++ {
		cur, prev := candles[i], candles[i-1]
		tr := math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
		trs = append(trs, tr)
	}
	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, true
}
