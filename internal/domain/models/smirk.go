package models

import "time"

// Regime labels the shape of the volatility smirk at one expiry.
type Regime string

const (
	RegimeSkewedBearish    Regime = "skewed-bearish"
	RegimeSkewedBullish    Regime = "skewed-bullish"
	RegimeElevatedKurtosis Regime = "elevated-kurtosis"
	RegimeFlat             Regime = "flat"
)

// Lean maps a regime to its directional lean: -1 bearish, +1 bullish, 0 neutral.
func (r Regime) Lean() float64 {
	switch r {
	case RegimeSkewedBearish:
		return -1
	case RegimeSkewedBullish:
		return 1
	default:
		return 0
	}
}

// CurvePoint is one sample of a fitted implied-volatility curve.
type CurvePoint struct {
	Strike float64
	IV     float64
}

// SmirkMetrics is the per-expiry analytic output of the smirk engine.
// Skew is OTM-put IV minus OTM-call IV: positive skew means puts are bid,
// the bearish convention used everywhere in this system. FittedCurve strikes
// are strictly increasing and never extend past the observed strike range.
type SmirkMetrics struct {
	Symbol      string
	Expiry      time.Time
	Skew        float64
	Kurtosis    float64
	FittedCurve []CurvePoint
	Regime      Regime
	Confidence  float64

	// Audit detail behind the skew number.
	ATMStrike float64
	OTMPutIV  float64
	OTMCallIV float64
}
