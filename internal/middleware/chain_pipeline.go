package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/service/ratelimit"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, chain *models.RawChain) error
}

// ChainPipeline sits between the options-chain stream and the evaluation
// cycle. It validates incoming chains, throttles evaluations per symbol
// (a fresh chain every tick is noise, not information), and buffers when
// the downstream cycle is temporarily failing.
type ChainPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	limiter *ratelimit.Limiter
	maxRPS  float64
	bufSize int
	bufCh   chan *models.RawChain
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*ChainPipeline)

// WithMaxEvalPerSec caps evaluation cycles per second per symbol.
func WithMaxEvalPerSec(n float64) PipelineOption {
	return func(p *ChainPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size for failed downstream cycles.
func WithBufferSize(n int) PipelineOption {
	return func(p *ChainPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewChainPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *ChainPipeline {
	p := &ChainPipeline{
		proc:    proc,
		metrics: metrics,
		limiter: ratelimit.New(),
		maxRPS:  1,
		bufSize: 64,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.RawChain, p.bufSize)
	return p
}

// Start launches background flushing of buffered chains.
func (p *ChainPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 100 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case c := <-p.bufCh:
				if c == nil {
					continue
				}
				if err := p.proc.Process(ctx, c); err != nil {
					if backoff < 5*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// A buffered chain is superseded by any newer one for
					// the same symbol, so dropping on a full buffer is safe.
					select {
					case p.bufCh <- c:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 100 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *ChainPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a chain to the evaluation
// cycle, buffering on downstream failure.
func (p *ChainPipeline) Process(ctx context.Context, c *models.RawChain) error {
	start := time.Now()
	if err := validateChain(c); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.limiter.Allow(c.Symbol, 1, p.maxRPS) {
		// throttled; drop silently, a fresher chain follows shortly
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, c); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- c:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateChain(c *models.RawChain) error {
	if c == nil {
		return fmt.Errorf("chain nil")
	}
	if c.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("timestamp missing")
	}
	if c.SpotPrice <= 0 {
		return fmt.Errorf("non-positive spot price")
	}
	if len(c.Quotes) == 0 {
		return fmt.Errorf("empty chain")
	}
	return nil
}
