package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	domsvc "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/service"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/analytics"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
)

// ErrPipelineTimeout means one evaluation cycle exceeded its wall-clock
// budget. The caller skips the cycle; the prior signal stays the last
// known state.
var ErrPipelineTimeout = errors.New("pipeline timeout")

// CycleInput is everything one evaluation cycle consumes. The pipeline
// never reads ambient state: account and external features arrive by value.
type CycleInput struct {
	Chain           *models.RawChain
	External        map[string]models.Feature
	Account         models.AccountState
	VolatilityProxy float64
}

// CycleResult is the auditable outcome of one cycle. Decision is nil for
// HOLD signals and for sizing rejected on risk limits; SkippedExpiries maps
// each failed expiry to its reason.
type CycleResult struct {
	Snapshot        models.OptionsChainSnapshot
	Smirk           map[string]analytics.ExpiryResult
	Signal          models.TradingSignal
	Decision        *models.PositionSizeDecision
	SkippedExpiries map[string]string
}

// Pipeline chains Normalizer -> Engine -> Fuser -> Strategy -> Sizer for
// one instrument per cycle. Each stage hands its output by value to the
// next; cycles for different instruments are independent and may run
// concurrently without coordination.
type Pipeline struct {
	norm     *analytics.Normalizer
	engine   *analytics.Engine
	fuser    *features.Fuser
	strategy domsvc.Strategy
	sizer    *Sizer

	store   domrepo.SignalStore
	pub     domrepo.OrderPublisher
	metrics domrepo.Metrics
	log     *xlogger.Logger
	timeout time.Duration

	mu     sync.RWMutex
	latest map[string]*CycleResult
}

func NewPipeline(
	norm *analytics.Normalizer,
	engine *analytics.Engine,
	fuser *features.Fuser,
	strategy domsvc.Strategy,
	sizer *Sizer,
	store domrepo.SignalStore,
	pub domrepo.OrderPublisher,
	metrics domrepo.Metrics,
	log *xlogger.Logger,
	timeout time.Duration,
) *Pipeline {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pipeline{
		norm:     norm,
		engine:   engine,
		fuser:    fuser,
		strategy: strategy,
		sizer:    sizer,
		store:    store,
		pub:      pub,
		metrics:  metrics,
		log:      log,
		timeout:  timeout,
		latest:   make(map[string]*CycleResult),
	}
}

// RunCycle executes one full evaluation cycle. Cycle-level failures
// (DataQualityError, PipelineTimeoutError) are returned to the caller and
// never swallowed; per-expiry failures are absorbed into the result.
func (p *Pipeline) RunCycle(ctx context.Context, in CycleInput) (*CycleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()

	snap, err := p.norm.Normalize(in.Chain)
	if err != nil {
		p.metrics.RecordCycle(symbolOf(in.Chain), "data_quality")
		return nil, err
	}

	smirk := p.engine.ComputeAll(ctx, snap)
	if err := ctx.Err(); err != nil {
		p.metrics.RecordCycle(snap.Symbol, "timeout")
		return nil, fmt.Errorf("cycle %s: %w: %v", snap.Symbol, ErrPipelineTimeout, err)
	}
	skipped := make(map[string]string)
	for key, res := range smirk {
		if res.Err != nil {
			skipped[key] = res.Err.Error()
		}
	}

	fv := p.fuser.Fuse(snap, smirk, in.External)
	sig, err := p.strategy.Evaluate(ctx, fv, snap.SpotPrice)
	if err != nil {
		p.metrics.RecordCycle(snap.Symbol, "strategy_error")
		return nil, fmt.Errorf("cycle %s: strategy: %w", snap.Symbol, err)
	}

	result := &CycleResult{
		Snapshot:        snap,
		Smirk:           smirk,
		Signal:          sig,
		SkippedExpiries: skipped,
	}

	if p.store != nil {
		if serr := p.store.StoreSignal(ctx, &sig); serr != nil {
			p.metrics.RecordError("store_signal")
			p.log.Warn("signal not persisted", xlogger.String("symbol", sig.Symbol), xlogger.Error(serr))
		}
	}

	// HOLD never reaches the sizer.
	if sig.Signal != models.Hold {
		decision, derr := p.sizer.Size(sig, in.Account, in.VolatilityProxy)
		switch {
		case derr == nil:
			result.Decision = &decision
			if p.store != nil {
				if serr := p.store.StoreDecision(ctx, &decision); serr != nil {
					p.metrics.RecordError("store_decision")
					p.log.Warn("decision not persisted", xlogger.String("symbol", sig.Symbol), xlogger.Error(serr))
				}
			}
			if p.pub != nil {
				if perr := p.pub.Publish(ctx, &decision); perr != nil {
					p.metrics.RecordError("publish_order")
					p.log.Error("order intent not published", xlogger.String("symbol", sig.Symbol), xlogger.Error(perr))
				}
			}
		case errors.Is(derr, ErrRiskLimitExceeded):
			// No order, but the signal stays on record for audit.
			p.metrics.RecordError("risk_limit")
			p.log.Warn("sizing rejected", xlogger.String("symbol", sig.Symbol), xlogger.Error(derr))
		default:
			p.metrics.RecordCycle(snap.Symbol, "sizing_error")
			return nil, fmt.Errorf("cycle %s: sizing: %w", snap.Symbol, derr)
		}
	}

	if err := ctx.Err(); err != nil {
		p.metrics.RecordCycle(snap.Symbol, "timeout")
		return nil, fmt.Errorf("cycle %s: %w: %v", snap.Symbol, ErrPipelineTimeout, err)
	}

	p.mu.Lock()
	p.latest[snap.Symbol] = result
	p.mu.Unlock()

	p.metrics.RecordCycle(snap.Symbol, "ok")
	p.metrics.RecordLastSignal(snap.Symbol, float64(sig.Signal), sig.Confidence)
	p.metrics.RecordLatency("cycle", time.Since(start).Seconds())
	return result, nil
}

// Latest returns the most recent completed cycle for a symbol, if any.
// A failed cycle never replaces it.
func (p *Pipeline) Latest(symbol string) (*CycleResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.latest[symbol]
	return r, ok
}

func symbolOf(c *models.RawChain) string {
	if c == nil {
		return ""
	}
	return c.Symbol
}
