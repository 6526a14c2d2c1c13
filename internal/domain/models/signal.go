package models

import "time"

// Direction is the trading action of a signal.
type Direction int

const (
	Sell Direction = -1
	Hold Direction = 0
	Buy  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// TradingSignal is the immutable per-cycle output of signal interpretation.
// LimitPrice is zero for HOLD signals; for BUY/SELL it is offset from Price
// in the direction that favors entry. Features carries the exact fused
// vector that produced the signal, for audit. A correction is a new signal
// with a new timestamp, never a mutation.
type TradingSignal struct {
	Timestamp  time.Time
	Symbol     string
	Price      float64
	Signal     Direction
	Confidence float64
	LimitPrice float64
	Source     string
	Features   FeatureVector
}

// HasLimitPrice reports whether the signal carries a limit price.
func (s TradingSignal) HasLimitPrice() bool { return s.LimitPrice > 0 }
