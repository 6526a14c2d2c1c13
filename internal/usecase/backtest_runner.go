package usecase

import (
	"context"
	"fmt"

	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
)

// BacktestConfig selects the replay window.
type BacktestConfig struct {
	Symbols   []string
	Timeframe domrepo.Timeframe
	Lookback  int // signals and candle buckets to load per symbol
}

// BacktestRunner replays the persisted audit trail through the harness:
// each strategy re-evaluates the exact feature vectors live cycles saw,
// scored against realized candle returns.
type BacktestRunner struct {
	store   domrepo.SignalStore
	candles domrepo.CandleStore
	harness *Harness
	log     *xlogger.Logger
	cfg     BacktestConfig
}

func NewBacktestRunner(
	store domrepo.SignalStore,
	candles domrepo.CandleStore,
	harness *Harness,
	log *xlogger.Logger,
	cfg BacktestConfig,
) *BacktestRunner {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 1000
	}
	return &BacktestRunner{store: store, candles: candles, harness: harness, log: log, cfg: cfg}
}

// Run scores every candidate strategy per symbol and logs the ranked reports.
func (b *BacktestRunner) Run(ctx context.Context) error {
	if b.store == nil || b.candles == nil {
		return fmt.Errorf("backtest: signal and candle stores are required")
	}
	for _, symbol := range b.cfg.Symbols {
		signals, err := b.store.LatestSignals(ctx, symbol, b.cfg.Lookback)
		if err != nil {
			return fmt.Errorf("backtest %s: load signals: %w", symbol, err)
		}
		candles, err := b.candles.GetLatestNCandles(ctx, symbol, b.cfg.Lookback, b.cfg.Timeframe)
		if err != nil {
			return fmt.Errorf("backtest %s: load candles: %w", symbol, err)
		}

		history := HistoryFromAudit(signals, candles)
		if len(history) == 0 {
			b.log.Warn("no replayable history", xlogger.String("symbol", symbol),
				xlogger.Int("signals", len(signals)), xlogger.Int("candles", len(candles)))
			continue
		}

		reports, err := b.harness.Run(ctx, history)
		if err != nil {
			return fmt.Errorf("backtest %s: %w", symbol, err)
		}
		for rank, r := range reports {
			b.log.Info("backtest report",
				xlogger.String("symbol", symbol),
				xlogger.Int("rank", rank+1),
				xlogger.String("strategy", r.Name),
				xlogger.Int("trades", r.Trades),
				xlogger.Float64("win_rate", r.WinRate),
				xlogger.Float64("sharpe", r.Sharpe),
				xlogger.Float64("cvar", r.CVaR),
				xlogger.Float64("final_edge", r.FinalEdge),
			)
		}
	}
	return nil
}
