package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	pkgch "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/clickhouse"
)

// Idempotent schema for the audit tables. Every emitted signal is kept,
// including HOLDs and signals whose sizing was rejected.
var auditSchema = []string{
	`CREATE DATABASE IF NOT EXISTS smirk`,
	`CREATE TABLE IF NOT EXISTS smirk.signals (
        ts          DateTime64(3, 'UTC'),
        symbol      LowCardinality(String),
        direction   Int8,
        confidence  Float64,
        price       Float64,
        limit_price Float64,
        source      LowCardinality(String),
        features    String
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(ts)
    ORDER BY (symbol, ts)`,
	`CREATE TABLE IF NOT EXISTS smirk.decisions (
        ts              DateTime64(3, 'UTC'),
        symbol          LowCardinality(String),
        direction       Int8,
        quantity        Float64,
        risk_amount     Float64,
        account_balance Float64,
        stop_loss       Float64,
        take_profit     Float64,
        vol_proxy       Float64,
        risk_multiplier Float64,
        dampening       Float64
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(ts)
    ORDER BY (symbol, ts)`,
}

// CHSignalStore implements SignalStore backed by ClickHouse.
type CHSignalStore struct {
	client *pkgch.Client
	db     *sql.DB
}

func NewCHSignalStore(ch *pkgch.Client) *CHSignalStore {
	return &CHSignalStore{client: ch, db: ch.DB()}
}

func (s *CHSignalStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, auditSchema)
}

func (s *CHSignalStore) StoreSignal(ctx context.Context, sig *models.TradingSignal) error {
	features, err := json.Marshal(sig.Features.Values)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	const q = `INSERT INTO smirk.signals
        (ts, symbol, direction, confidence, price, limit_price, source, features)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		sig.Timestamp,
		sig.Symbol,
		int8(sig.Signal),
		sig.Confidence,
		sig.Price,
		sig.LimitPrice,
		sig.Source,
		string(features),
	)
	if err != nil {
		return fmt.Errorf("store signal %s: %w", sig.Symbol, err)
	}
	return nil
}

func (s *CHSignalStore) StoreDecision(ctx context.Context, d *models.PositionSizeDecision) error {
	const q = `INSERT INTO smirk.decisions
        (ts, symbol, direction, quantity, risk_amount, account_balance,
         stop_loss, take_profit, vol_proxy, risk_multiplier, dampening)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		d.Signal.Timestamp,
		d.Signal.Symbol,
		int8(d.Signal.Signal),
		d.Quantity,
		d.RiskAmount,
		d.AccountBalance,
		d.StopLoss,
		d.TakeProfit,
		d.Inputs.VolatilityProxy,
		d.Inputs.RiskMultiplier,
		d.Inputs.SentimentDampening,
	)
	if err != nil {
		return fmt.Errorf("store decision %s: %w", d.Signal.Symbol, err)
	}
	return nil
}

func (s *CHSignalStore) LatestSignals(ctx context.Context, symbol string, limit int) ([]models.TradingSignal, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ts, symbol, direction, confidence, price, limit_price, source, features
        FROM smirk.signals
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("latest signals %s: %w", symbol, err)
	}
	defer rows.Close()

	out := make([]models.TradingSignal, 0, limit)
	for rows.Next() {
		var sig models.TradingSignal
		var ts time.Time
		var direction int8
		var features string
		if err := rows.Scan(&ts, &sig.Symbol, &direction, &sig.Confidence,
			&sig.Price, &sig.LimitPrice, &sig.Source, &features); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Timestamp = ts
		sig.Signal = models.Direction(direction)
		sig.Features = models.FeatureVector{Symbol: sig.Symbol, Timestamp: ts, Values: make(map[string]models.Feature)}
		if features != "" {
			if err := json.Unmarshal([]byte(features), &sig.Features.Values); err != nil {
				return nil, fmt.Errorf("unmarshal features: %w", err)
			}
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSignalStore) Close() error {
	return nil // connection pool managed by pkg client
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)
