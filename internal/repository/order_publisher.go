package repository

import (
	"context"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	pkgkafka "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/kafka"
)

// KafkaOrderPublisher hands sized order intents to the execution service.
// Keyed by symbol so per-symbol ordering is preserved across partitions.
type KafkaOrderPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaOrderPublisher(producer *pkgkafka.Producer, topic string) domrepo.OrderPublisher {
	return &KafkaOrderPublisher{producer: producer, topic: topic}
}

func (p *KafkaOrderPublisher) Publish(ctx context.Context, d *models.PositionSizeDecision) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.Signal.Symbol), map[string]interface{}{
		"ts":          d.Signal.Timestamp.UnixMilli(),
		"symbol":      d.Signal.Symbol,
		"direction":   d.Signal.Signal.String(),
		"quantity":    d.Quantity,
		"limit_price": d.Signal.LimitPrice,
		"stop_loss":   d.StopLoss,
		"take_profit": d.TakeProfit,
		"confidence":  d.Signal.Confidence,
		"source":      d.Signal.Source,
	})
}

func (p *KafkaOrderPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
