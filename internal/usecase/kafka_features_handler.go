package usecase

import (
	"context"
	"encoding/json"
	"time"

	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	pkgkafka "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/kafka"
)

// KafkaFeaturesHandler consumes exogenous feature updates published by the
// sentiment / satellite / indicator collaborators and writes them into the
// feature cache for the next evaluation cycle.
type KafkaFeaturesHandler struct {
	topic   string
	source  domrepo.FeatureSource
	metrics domrepo.Metrics
	ttl     time.Duration
}

func NewKafkaFeaturesHandler(topic string, source domrepo.FeatureSource, metrics domrepo.Metrics, ttl time.Duration) *KafkaFeaturesHandler {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &KafkaFeaturesHandler{topic: topic, source: source, metrics: metrics, ttl: ttl}
}

func (h *KafkaFeaturesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, name, value, observed_at}
func (h *KafkaFeaturesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol     string  `json:"symbol"`
		Name       string  `json:"name"`
		Value      float64 `json:"value"`
		ObservedAt int64   `json:"observed_at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("feature_unmarshal")
		return err
	}
	if m.ObservedAt > 1e11 { // ms
		m.ObservedAt = m.ObservedAt / 1000
	}
	if m.ObservedAt > 0 {
		h.metrics.RecordLatency("feature_e2e_seconds", time.Since(time.Unix(m.ObservedAt, 0)).Seconds())
	}

	if err := h.source.Put(ctx, m.Symbol, m.Name, m.Value, h.ttl); err != nil {
		h.metrics.RecordError("feature_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaFeaturesHandler)(nil)
