package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/analytics"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/indicators"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
)

// AccountProvider supplies the account state for sizing. The core never
// reads ambient balance; paper mode uses a fixed configured account, live
// mode asks the execution collaborator.
type AccountProvider interface {
	Current(ctx context.Context) (models.AccountState, error)
}

// PaperAccount is a fixed-balance AccountProvider for paper trading. Open
// risk accumulates as decisions are emitted and is released when the hold
// period elapses (a paper stand-in for positions closing) or explicitly via
// a negative delta. Safe for concurrent cycles: the chain collector and the
// middleware retry flush both size against the same account.
type PaperAccount struct {
	mu         sync.Mutex
	balance    float64
	holdPeriod time.Duration // 0 means risk is never auto-released
	lots       []riskLot
	now        func() time.Time
}

type riskLot struct {
	amount float64
	at     time.Time
}

func NewPaperAccount(balance float64, holdPeriod time.Duration) *PaperAccount {
	return &PaperAccount{balance: balance, holdPeriod: holdPeriod, now: time.Now}
}

func (p *PaperAccount) Current(_ context.Context) (models.AccountState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireLocked()
	return models.AccountState{Balance: p.balance, OpenRisk: p.openLocked()}, nil
}

// AddOpenRisk moves the tracked aggregate exposure; negative deltas release
// the oldest lots first.
func (p *PaperAccount) AddOpenRisk(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireLocked()
	if delta > 0 {
		p.lots = append(p.lots, riskLot{amount: delta, at: p.now()})
		return
	}
	release := -delta
	for len(p.lots) > 0 && release > 0 {
		if p.lots[0].amount <= release {
			release -= p.lots[0].amount
			p.lots = p.lots[1:]
			continue
		}
		p.lots[0].amount -= release
		release = 0
	}
}

func (p *PaperAccount) expireLocked() {
	if p.holdPeriod <= 0 {
		return
	}
	cutoff := p.now().Add(-p.holdPeriod)
	i := 0
	for i < len(p.lots) && !p.lots[i].at.After(cutoff) {
		i++
	}
	p.lots = p.lots[i:]
}

func (p *PaperAccount) openLocked() float64 {
	var sum float64
	for _, l := range p.lots {
		sum += l.amount
	}
	return sum
}

// RunnerConfig tunes the per-cycle input gathering.
type RunnerConfig struct {
	Timeframe      domrepo.Timeframe
	CandleLookback int
	ATRPeriod      int
	Indicators     indicators.Config
}

// CycleRunner gathers one cycle's inputs (external features, candle-derived
// technicals, volatility proxy, account state) and drives the pipeline. It
// is the downstream processor behind the chain middleware.
type CycleRunner struct {
	pipeline *Pipeline
	source   domrepo.FeatureSource
	candles  domrepo.CandleStore
	account  AccountProvider
	metrics  domrepo.Metrics
	log      *xlogger.Logger
	cfg      RunnerConfig
}

func NewCycleRunner(
	pipeline *Pipeline,
	source domrepo.FeatureSource,
	candles domrepo.CandleStore,
	account AccountProvider,
	metrics domrepo.Metrics,
	log *xlogger.Logger,
	cfg RunnerConfig,
) *CycleRunner {
	if cfg.CandleLookback <= 0 {
		cfg.CandleLookback = 200
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	return &CycleRunner{
		pipeline: pipeline, source: source, candles: candles,
		account: account, metrics: metrics, log: log, cfg: cfg,
	}
}

// Process runs one evaluation cycle for an incoming chain. Per-cycle
// failures are logged and counted, never retried here: the core is
// deterministic, so retrying without new input is pointless.
func (r *CycleRunner) Process(ctx context.Context, chain *models.RawChain) error {
	external := r.gatherExternal(ctx, chain.Symbol)
	volProxy := r.volatilityProxy(ctx, chain.Symbol)

	account, err := r.account.Current(ctx)
	if err != nil {
		r.metrics.RecordError("account_state")
		return fmt.Errorf("account state: %w", err)
	}

	result, err := r.pipeline.RunCycle(ctx, CycleInput{
		Chain:           chain,
		External:        external,
		Account:         account,
		VolatilityProxy: volProxy,
	})
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrDataQuality):
			r.log.Warn("cycle skipped on data quality", xlogger.String("symbol", chain.Symbol), xlogger.Error(err))
		case errors.Is(err, ErrPipelineTimeout):
			r.log.Error("cycle exceeded time budget", xlogger.String("symbol", chain.Symbol), xlogger.Error(err))
		default:
			r.log.Error("cycle failed", xlogger.String("symbol", chain.Symbol), xlogger.Error(err))
		}
		return err
	}

	if result.Decision != nil {
		if pa, ok := r.account.(*PaperAccount); ok {
			pa.AddOpenRisk(result.Decision.RiskAmount / result.Decision.AccountBalance)
		}
	}
	r.log.Info("cycle complete",
		xlogger.String("symbol", chain.Symbol),
		xlogger.String("signal", result.Signal.Signal.String()),
		xlogger.Float64("confidence", result.Signal.Confidence),
		xlogger.Int("skipped_expiries", len(result.SkippedExpiries)),
	)
	return nil
}

// gatherExternal merges cached collaborator features with candle-derived
// technicals. A missing source degrades to absent features, never to an
// aborted cycle.
func (r *CycleRunner) gatherExternal(ctx context.Context, symbol string) map[string]models.Feature {
	external := make(map[string]models.Feature)
	if r.source != nil {
		cached, err := r.source.Latest(ctx, symbol)
		if err != nil {
			r.metrics.RecordError("feature_source")
			r.log.Warn("feature source unavailable", xlogger.String("symbol", symbol), xlogger.Error(err))
		} else {
			for k, v := range cached {
				external[k] = v
			}
		}
	}
	if r.candles != nil {
		cs, err := r.candles.GetLatestNCandles(ctx, symbol, r.cfg.CandleLookback, r.cfg.Timeframe)
		if err != nil {
			r.metrics.RecordError("candle_store")
			r.log.Warn("candle store unavailable", xlogger.String("symbol", symbol), xlogger.Error(err))
		} else {
			for k, v := range indicators.Build(cs, r.cfg.Indicators) {
				external[k] = v
			}
		}
	}
	return external
}

// volatilityProxy prefers ATR from candle history and falls back to
// annualized realized volatility of log returns.
func (r *CycleRunner) volatilityProxy(ctx context.Context, symbol string) float64 {
	if r.candles == nil {
		return 0
	}
	cs, err := r.candles.GetLatestNCandles(ctx, symbol, r.cfg.CandleLookback, r.cfg.Timeframe)
	if err != nil || len(cs) == 0 {
		return 0
	}
	if atr, ok := indicators.ATR(cs, r.cfg.ATRPeriod); ok && atr > 0 {
		return atr
	}
	rets := features.ComputeLogReturns(cs)
	window := r.cfg.ATRPeriod
	if window > len(rets) {
		window = len(rets)
	}
	return features.RealizedVolatility(rets, window, features.BarsPerYearForTF(string(r.cfg.Timeframe)))
}
