package usecase

import (
	"context"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	mid "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/middleware"
)

// ChainCollector reads options chains from the market stream and feeds
// them through the throttling middleware into the evaluation cycle.
type ChainCollector struct {
	stream  domrepo.ChainStream
	runner  *CycleRunner
	metrics domrepo.Metrics
	pipe    *mid.ChainPipeline
}

func NewChainCollector(stream domrepo.ChainStream, runner *CycleRunner, metrics domrepo.Metrics, pipe *mid.ChainPipeline) *ChainCollector {
	return &ChainCollector{stream: stream, runner: runner, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the chain stream is connected.
func (c *ChainCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *ChainCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	chainCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, chainCh, errCh)
	return nil
}

func (c *ChainCollector) consume(ctx context.Context, chainCh <-chan *models.RawChain, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case chain := <-chainCh:
			if chain == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, chain)
			} else {
				_ = c.runner.Process(ctx, chain)
			}
		}
	}
}

// Runner returns the underlying CycleRunner for lifecycle management.
func (c *ChainCollector) Runner() *CycleRunner { return c.runner }

// Shutdown stops the pipeline and closes the stream.
func (c *ChainCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
