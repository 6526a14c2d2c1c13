package usecase

import (
	"context"
	"strings"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domsvc "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/service"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
)

// Thresholds is the configuration surface of signal interpretation.
type Thresholds struct {
	BullishScore       float64 // directional score above which the signal is BUY
	BearishScore       float64 // directional score below which the signal is SELL
	MinConfidence      float64 // below this the signal degrades to HOLD
	LimitOffsetPercent float64 // limit price offset against direction, in percent
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BullishScore:       0.2,
		BearishScore:       -0.2,
		MinConfidence:      0.6,
		LimitOffsetPercent: 0.5,
	}
}

// Weights tune how each exogenous feature nudges the directional score.
// Adjustments are additive on top of the smirk regime lean; dampening of
// position size stays multiplicative and lives in the sizer.
type Weights struct {
	RSI       float64
	MACD      float64
	Sentiment float64
	Storage   float64
	Tanker    float64
}

func DefaultWeights() Weights {
	return Weights{RSI: 0.2, MACD: 0.1, Sentiment: 0.3, Storage: 0.4, Tanker: 0.1}
}

// Interpreter converts a fused feature vector into exactly one trading
// signal per cycle. It is the "smirk" strategy: the regime lean of the
// monitored expiries anchors the score, technical / sentiment / satellite
// features adjust it, and confidence is the product of smirk confidence
// and feature completeness, so an incomplete vector can never reach 1.0.
type Interpreter struct {
	thresholds Thresholds
	weights    Weights
}

func NewInterpreter(thresholds Thresholds, weights Weights) *Interpreter {
	return &Interpreter{thresholds: thresholds, weights: weights}
}

func (i *Interpreter) Name() string { return "volatility_smirk" }

// Evaluate implements service.Strategy.
func (i *Interpreter) Evaluate(_ context.Context, fv models.FeatureVector, spot float64) (models.TradingSignal, error) {
	return i.Interpret(fv, spot), nil
}

// Interpret scores the feature vector and emits the cycle's signal.
func (i *Interpreter) Interpret(fv models.FeatureVector, spot float64) models.TradingSignal {
	score := i.directionalScore(fv)
	confidence := smirkConfidence(fv) * fv.Completeness()

	direction := models.Hold
	switch {
	case confidence < i.thresholds.MinConfidence:
		direction = models.Hold
	case score > i.thresholds.BullishScore:
		direction = models.Buy
	case score < i.thresholds.BearishScore:
		direction = models.Sell
	}

	sig := models.TradingSignal{
		Timestamp:  fv.Timestamp,
		Symbol:     fv.Symbol,
		Price:      spot,
		Signal:     direction,
		Confidence: confidence,
		Source:     i.Name(),
		Features:   fv.Clone(),
	}
	sig.LimitPrice = limitPrice(spot, direction, i.thresholds.LimitOffsetPercent)
	return sig
}

// directionalScore combines the smirk lean with additive feature
// adjustments, clamped to [-1, 1].
func (i *Interpreter) directionalScore(fv models.FeatureVector) float64 {
	score := meanSmirkLean(fv)

	if rsi := fv.Get(features.FeatureRSI); rsi.Present {
		switch {
		case rsi.Value >= 70:
			score -= i.weights.RSI
		case rsi.Value <= 30:
			score += i.weights.RSI
		}
	}
	if macd := fv.Get(features.FeatureMACD); macd.Present {
		switch {
		case macd.Value > 0:
			score += i.weights.MACD
		case macd.Value < 0:
			score -= i.weights.MACD
		}
	}
	if sent := fv.Get(features.FeatureSentiment); sent.Present {
		score += i.weights.Sentiment * sent.Value
	}
	// High storage utilization is a bearish supply signal; below-midpoint
	// storage reads bullish.
	if storage := fv.Get(features.FeatureStorageLevel); storage.Present {
		score -= i.weights.Storage * (storage.Value - 0.5) * 2
	}
	if tankers := fv.Get(features.FeatureTankerCount); tankers.Present {
		loading := tankers.Value / 50
		if loading > 1 {
			loading = 1
		}
		score -= i.weights.Tanker * loading
	}

	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

// meanSmirkLean averages the regime lean across monitored expiries,
// weighting each by its smirk confidence. Expiries whose metrics are
// absent contribute nothing.
func meanSmirkLean(fv models.FeatureVector) float64 {
	var sum, weight float64
	for _, name := range fv.Names() {
		if !strings.HasPrefix(name, "smirk.") || !strings.HasSuffix(name, "."+features.SmirkLean) {
			continue
		}
		lean := fv.Get(name)
		if !lean.Present {
			continue
		}
		confName := strings.TrimSuffix(name, features.SmirkLean) + features.SmirkConfidence
		w := 1.0
		if conf := fv.Get(confName); conf.Present {
			w = conf.Value
		}
		sum += lean.Value * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// smirkConfidence is the mean confidence of the monitored expiries whose
// metrics were computed. No computed expiry means zero confidence.
func smirkConfidence(fv models.FeatureVector) float64 {
	var sum float64
	n := 0
	for _, name := range fv.Names() {
		if !strings.HasPrefix(name, "smirk.") || !strings.HasSuffix(name, "."+features.SmirkConfidence) {
			continue
		}
		conf := fv.Get(name)
		if !conf.Present {
			continue
		}
		sum += conf.Value
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// limitPrice offsets spot against the signal direction: below spot for BUY,
// above for SELL. HOLD carries no limit price.
func limitPrice(spot float64, d models.Direction, offsetPercent float64) float64 {
	switch d {
	case models.Buy:
		return spot * (1 - offsetPercent/100)
	case models.Sell:
		return spot * (1 + offsetPercent/100)
	default:
		return 0
	}
}

var _ domsvc.Strategy = (*Interpreter)(nil)
