package repository

import (
	"context"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
)

// ChainStream is a live options-chain feed (ingestion collaborator).
type ChainStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawChain, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// OrderPublisher hands sized order intents to the execution collaborator.
type OrderPublisher interface {
	Publish(ctx context.Context, d *models.PositionSizeDecision) error
	Close() error
}

// SignalStore persists signals and sizing decisions for audit.
type SignalStore interface {
	Init(ctx context.Context) error
	StoreSignal(ctx context.Context, s *models.TradingSignal) error
	StoreDecision(ctx context.Context, d *models.PositionSizeDecision) error
	LatestSignals(ctx context.Context, symbol string, limit int) ([]models.TradingSignal, error)
	Health(ctx context.Context) error
	Close() error
}

// FeatureSource supplies the latest exogenous scalar features
// (sentiment, satellite, technicals) tagged present/absent per name.
type FeatureSource interface {
	Latest(ctx context.Context, symbol string) (map[string]models.Feature, error)
	Put(ctx context.Context, symbol, name string, value float64, ttl time.Duration) error
}

// Metrics records operational telemetry for the pipeline.
type Metrics interface {
	RecordCycle(symbol, outcome string)
	RecordError(kind string)
	RecordLastSignal(symbol string, direction, confidence float64)
	RecordLatency(op string, seconds float64)
}
