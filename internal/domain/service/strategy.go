package service

import (
	"context"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
)

// StrategyKind is the closed set of selectable strategy implementations.
// Strategies are chosen by configuration, never by runtime reflection.
type StrategyKind string

const (
	StrategySmirk     StrategyKind = "smirk"
	StrategySentiment StrategyKind = "sentiment"
	StrategyComposite StrategyKind = "composite"
)

// Valid reports whether k names a known strategy.
func (k StrategyKind) Valid() bool {
	switch k {
	case StrategySmirk, StrategySentiment, StrategyComposite:
		return true
	default:
		return false
	}
}

// Strategy turns a fused feature vector into exactly one trading signal.
// Implementations are pure with respect to their inputs: identical vectors
// and spot prices yield identical signals.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, fv models.FeatureVector, spot float64) (models.TradingSignal, error)
}
