package usecase

import (
	"errors"
	"fmt"
	"math"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
)

var (
	// ErrRiskLimitExceeded means sizing would violate configured risk
	// bounds; no order is emitted but the signal is still logged for audit.
	ErrRiskLimitExceeded = errors.New("risk limit exceeded")

	// ErrInvalidSignal is a contract violation: HOLD signals must be
	// filtered before the sizer.
	ErrInvalidSignal = errors.New("invalid signal for sizing")
)

// SizerConfig is the risk configuration surface.
type SizerConfig struct {
	RiskPerTrade     float64 // fraction of balance risked per trade
	MaxPortfolioRisk float64 // cap on aggregate open risk, fraction of balance
	RiskMultiplier   float64 // scales the volatility proxy in the denominator
	TradeUnit        float64 // quantity granularity; computed size floors to it
	MinQuantity      float64 // smallest tradable size; below it sizing fails

	StopLossPercent   float64
	TakeProfitPercent float64

	// Sentiment dampening: when |sentiment| >= Threshold the quantity is
	// multiplied by Factor (< 1). Extreme sentiment in either direction is
	// treated as crowding risk, not conviction.
	SentimentDampenThreshold float64
	SentimentDampenFactor    float64
}

func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		RiskPerTrade:             0.02,
		MaxPortfolioRisk:         0.2,
		RiskMultiplier:           1.5,
		TradeUnit:                1,
		MinQuantity:              1,
		StopLossPercent:          2.0,
		TakeProfitPercent:        5.0,
		SentimentDampenThreshold: 0.8,
		SentimentDampenFactor:    0.5,
	}
}

// Sizer converts a signal plus account state into a bounded position size.
// Holding risk amount fixed, quantity never increases with volatility:
// quantity = risk_amount / (volatility_proxy × risk_multiplier), floored to
// the tradable unit and rejected (never rounded up) below the minimum.
type Sizer struct {
	cfg SizerConfig
}

func NewSizer(cfg SizerConfig) *Sizer {
	if cfg.TradeUnit <= 0 {
		cfg.TradeUnit = 1
	}
	if cfg.RiskMultiplier <= 0 {
		cfg.RiskMultiplier = 1
	}
	return &Sizer{cfg: cfg}
}

// Size computes the position size decision for one non-HOLD signal.
func (s *Sizer) Size(sig models.TradingSignal, account models.AccountState, volProxy float64) (models.PositionSizeDecision, error) {
	if sig.Signal == models.Hold {
		return models.PositionSizeDecision{}, fmt.Errorf("size %s: %w: HOLD signal", sig.Symbol, ErrInvalidSignal)
	}
	if volProxy <= 0 {
		return models.PositionSizeDecision{}, fmt.Errorf("size %s: %w: non-positive volatility proxy %v",
			sig.Symbol, ErrRiskLimitExceeded, volProxy)
	}
	if account.OpenRisk+s.cfg.RiskPerTrade > s.cfg.MaxPortfolioRisk {
		return models.PositionSizeDecision{}, fmt.Errorf(
			"size %s: %w: open risk %.4f + trade risk %.4f exceeds portfolio cap %.4f",
			sig.Symbol, ErrRiskLimitExceeded, account.OpenRisk, s.cfg.RiskPerTrade, s.cfg.MaxPortfolioRisk)
	}

	riskAmount := account.Balance * s.cfg.RiskPerTrade
	qty := riskAmount / (volProxy * s.cfg.RiskMultiplier)

	dampening := 1.0
	if sent := sig.Features.Get(features.FeatureSentiment); sent.Present &&
		math.Abs(sent.Value) >= s.cfg.SentimentDampenThreshold {
		dampening = s.cfg.SentimentDampenFactor
		qty *= dampening
	}

	qty = math.Floor(qty/s.cfg.TradeUnit) * s.cfg.TradeUnit
	if qty < s.cfg.MinQuantity {
		return models.PositionSizeDecision{}, fmt.Errorf(
			"size %s: %w: computed quantity %v below minimum %v",
			sig.Symbol, ErrRiskLimitExceeded, qty, s.cfg.MinQuantity)
	}

	stop, take := s.protectiveLevels(sig)
	return models.PositionSizeDecision{
		Signal:         sig,
		AccountBalance: account.Balance,
		Quantity:       qty,
		RiskAmount:     riskAmount,
		StopLoss:       stop,
		TakeProfit:     take,
		Inputs: models.SizingInputs{
			VolatilityProxy:    volProxy,
			RiskMultiplier:     s.cfg.RiskMultiplier,
			SentimentDampening: dampening,
		},
	}, nil
}

// protectiveLevels derives stop-loss and take-profit from the entry price
// against the signal direction.
func (s *Sizer) protectiveLevels(sig models.TradingSignal) (stop, take float64) {
	sl := s.cfg.StopLossPercent / 100
	tp := s.cfg.TakeProfitPercent / 100
	if sig.Signal == models.Buy {
		return sig.Price * (1 - sl), sig.Price * (1 + tp)
	}
	return sig.Price * (1 + sl), sig.Price * (1 - tp)
}
