package usecase

import (
	"context"
	"fmt"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domsvc "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/service"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
)

// NewStrategy builds the configured strategy from the closed kind set.
func NewStrategy(kind domsvc.StrategyKind, thresholds Thresholds, weights Weights) (domsvc.Strategy, error) {
	switch kind {
	case domsvc.StrategySmirk:
		return NewInterpreter(thresholds, weights), nil
	case domsvc.StrategySentiment:
		return &SentimentStrategy{thresholds: thresholds}, nil
	case domsvc.StrategyComposite:
		return &CompositeStrategy{
			smirk:     NewInterpreter(thresholds, weights),
			sentiment: &SentimentStrategy{thresholds: thresholds},
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", kind)
	}
}

// SentimentStrategy trades on the sentiment score alone. It exists mainly
// as a backtest baseline against the smirk strategy.
type SentimentStrategy struct {
	thresholds Thresholds
}

func (s *SentimentStrategy) Name() string { return "sentiment" }

func (s *SentimentStrategy) Evaluate(_ context.Context, fv models.FeatureVector, spot float64) (models.TradingSignal, error) {
	sig := models.TradingSignal{
		Timestamp: fv.Timestamp,
		Symbol:    fv.Symbol,
		Price:     spot,
		Signal:    models.Hold,
		Source:    s.Name(),
		Features:  fv.Clone(),
	}
	sent := fv.Get(features.FeatureSentiment)
	if !sent.Present {
		return sig, nil
	}
	confidence := abs(sent.Value) * fv.Completeness()
	sig.Confidence = confidence
	if confidence < s.thresholds.MinConfidence {
		return sig, nil
	}
	switch {
	case sent.Value > s.thresholds.BullishScore:
		sig.Signal = models.Buy
	case sent.Value < s.thresholds.BearishScore:
		sig.Signal = models.Sell
	}
	sig.LimitPrice = limitPrice(spot, sig.Signal, s.thresholds.LimitOffsetPercent)
	return sig, nil
}

// CompositeStrategy blends the smirk and sentiment strategies: both must
// agree for a directional signal, with confidence averaged. Disagreement
// degrades to HOLD.
type CompositeStrategy struct {
	smirk     *Interpreter
	sentiment *SentimentStrategy
}

func (c *CompositeStrategy) Name() string { return "composite" }

func (c *CompositeStrategy) Evaluate(ctx context.Context, fv models.FeatureVector, spot float64) (models.TradingSignal, error) {
	a, err := c.smirk.Evaluate(ctx, fv, spot)
	if err != nil {
		return models.TradingSignal{}, err
	}
	b, err := c.sentiment.Evaluate(ctx, fv, spot)
	if err != nil {
		return models.TradingSignal{}, err
	}

	out := a
	out.Source = c.Name()
	out.Confidence = (a.Confidence + b.Confidence) / 2
	// Sentiment only vetoes when it produced a directional view.
	if b.Signal != models.Hold && b.Signal != a.Signal {
		out.Signal = models.Hold
		out.LimitPrice = 0
	}
	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var (
	_ domsvc.Strategy = (*SentimentStrategy)(nil)
	_ domsvc.Strategy = (*CompositeStrategy)(nil)
)
