package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	domrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	domsvc "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/service"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/handler/api"
	mid "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/middleware"
	internalrepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/repository"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/service/deribit"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/service/featurecache"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/analytics"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/indicators"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/usecase"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/cache"
	pkgch "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/clickhouse"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/config"
	xhttp "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/http"
	pkgkafka "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/kafka"
	applogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/metrics"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when no host
// is configured (paper mode runs without persistence).
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the ClickHouse signal audit store and
// initializes its schema.
func ProvideSignalStore(chClient *pkgch.Client) (domrepo.SignalStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSignalStore(chClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("signal store schema: %w", err)
	}
	return store, nil
}

// ProvideCandleStore creates the ClickHouse candle history store.
func ProvideCandleStore(chClient *pkgch.Client) domrepo.CandleStore {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewCHCandleStore(chClient)
}

// ProvideKafkaProducer creates the order-intent producer, or nil when no
// brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideOrderPublisher wraps the producer for order-intent publishing.
func ProvideOrderPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.OrderPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaOrderPublisher(producer, cfg.Kafka.OrdersTopic)
}

// ProvideKafkaConsumer creates the external-features consumer, or nil when
// no brokers are configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCache selects the feature cache backend: Redis when enabled,
// in-process LRU otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(redisCache, 10000), nil
}

// ProvideFeatureSource exposes the cache as the exogenous feature source.
func ProvideFeatureSource(c cache.Service, cfg *config.Config) domrepo.FeatureSource {
	return featurecache.New(c, cfg.Runner.FeatureTTL)
}

// ProvideChainStream creates the Deribit options chain stream.
func ProvideChainStream(cfg *config.Config, log *applogger.Logger) domrepo.ChainStream {
	return deribit.New(
		cfg.Deribit.WebSocketURL,
		cfg.Deribit.Currencies,
		cfg.Deribit.SnapshotInterval,
		cfg.Deribit.ReconnectDelay,
		cfg.Deribit.PingInterval,
		log,
	)
}

func thresholdsFromConfig(cfg *config.Config) usecase.Thresholds {
	return usecase.Thresholds{
		BullishScore:       cfg.Strategy.BullishScore,
		BearishScore:       cfg.Strategy.BearishScore,
		MinConfidence:      cfg.Strategy.MinConfidence,
		LimitOffsetPercent: cfg.Strategy.LimitOffsetPercent,
	}
}

// ProvideStrategy builds the configured strategy implementation.
func ProvideStrategy(cfg *config.Config) (domsvc.Strategy, error) {
	return usecase.NewStrategy(domsvc.StrategyKind(cfg.Strategy.Kind), thresholdsFromConfig(cfg), usecase.DefaultWeights())
}

// ProvidePipeline assembles the per-cycle evaluation chain.
func ProvidePipeline(
	cfg *config.Config,
	strategy domsvc.Strategy,
	store domrepo.SignalStore,
	pub domrepo.OrderPublisher,
	m domrepo.Metrics,
	log *applogger.Logger,
) (*usecase.Pipeline, error) {
	monitored, err := features.ParseMonitored(cfg.Pipeline.MonitoredExpiries)
	if err != nil {
		return nil, fmt.Errorf("monitored expiries: %w", err)
	}

	norm := analytics.NewNormalizer(cfg.Pipeline.MinStrikes, log)
	engine := analytics.NewEngine(analytics.EngineConfig{
		TargetStrikes:     cfg.Pipeline.Engine.TargetStrikes,
		FallbackPenalty:   cfg.Pipeline.Engine.FallbackPenalty,
		SkewThreshold:     cfg.Pipeline.Engine.SkewThreshold,
		KurtosisThreshold: cfg.Pipeline.Engine.KurtosisThreshold,
		SmoothingWindow:   cfg.Pipeline.Engine.SmoothingWindow,
		Workers:           cfg.Pipeline.Engine.Workers,
	})
	fuser := features.NewFuser(monitored)
	sizer := usecase.NewSizer(usecase.SizerConfig{
		RiskPerTrade:             cfg.Risk.RiskPerTrade,
		MaxPortfolioRisk:         cfg.Risk.MaxPortfolioRisk,
		RiskMultiplier:           cfg.Risk.RiskMultiplier,
		TradeUnit:                cfg.Risk.TradeUnit,
		MinQuantity:              cfg.Risk.MinQuantity,
		StopLossPercent:          cfg.Risk.StopLossPercent,
		TakeProfitPercent:        cfg.Risk.TakeProfitPercent,
		SentimentDampenThreshold: cfg.Risk.SentimentDampenThreshold,
		SentimentDampenFactor:    cfg.Risk.SentimentDampenFactor,
	})

	return usecase.NewPipeline(norm, engine, fuser, strategy, sizer,
		store, pub, m, log, cfg.Pipeline.CycleTimeout), nil
}

// ProvideAccount supplies the account state for sizing. Live execution sits
// behind the order-intents topic, so both modes track the paper account.
func ProvideAccount(cfg *config.Config) usecase.AccountProvider {
	return usecase.NewPaperAccount(cfg.Risk.PaperBalance, cfg.Risk.PaperHoldPeriod)
}

// ProvideCycleRunner builds the per-cycle input gathering around the pipeline.
func ProvideCycleRunner(
	pipeline *usecase.Pipeline,
	source domrepo.FeatureSource,
	candles domrepo.CandleStore,
	account usecase.AccountProvider,
	m domrepo.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.CycleRunner {
	return usecase.NewCycleRunner(pipeline, source, candles, account, m, log, usecase.RunnerConfig{
		Timeframe:      domrepo.Timeframe(cfg.Runner.Timeframe),
		CandleLookback: cfg.Runner.CandleLookback,
		ATRPeriod:      cfg.Runner.ATRPeriod,
		Indicators:     indicators.DefaultConfig(),
	})
}

// ProvideChainCollector wires the stream into the runner through the
// throttling middleware.
func ProvideChainCollector(
	stream domrepo.ChainStream,
	runner *usecase.CycleRunner,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.ChainCollector {
	pipe := mid.NewChainPipeline(runner, m,
		mid.WithMaxEvalPerSec(cfg.Pipeline.MaxEvalPerSec),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
	)
	return usecase.NewChainCollector(stream, runner, m, pipe)
}

// ProvideFeaturesHandler registers the handler for the external-features topic.
func ProvideFeaturesHandler(source domrepo.FeatureSource, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaFeaturesHandler {
	return usecase.NewKafkaFeaturesHandler(cfg.Kafka.Consumer.FeaturesTopic, source, m, cfg.Runner.FeatureTTL)
}

// ProvideHTTPHandler builds the inspection API handler.
func ProvideHTTPHandler(
	log *applogger.Logger,
	pipeline *usecase.Pipeline,
	store domrepo.SignalStore,
	candles domrepo.CandleStore,
) xhttp.Handler {
	return api.NewInspectHandler(log, pipeline, store, candles)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.ChainCollector,
	consumer *pkgkafka.Consumer,
	fh *usecase.KafkaFeaturesHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	handler xhttp.Handler,
) *server.App {
	var features pkgkafka.MessageHandler
	if fh != nil {
		features = fh
	}
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, log, collector, consumer, features, chClient, producer, handler)
}

// InitializeBacktest assembles the offline replay harness: every strategy
// kind re-evaluated over the persisted audit trail.
func InitializeBacktest(cfg *config.Config) (*usecase.BacktestRunner, error) {
	log, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	chClient, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	store, err := ProvideSignalStore(chClient)
	if err != nil {
		return nil, err
	}
	candles := ProvideCandleStore(chClient)

	kinds := []domsvc.StrategyKind{domsvc.StrategySmirk, domsvc.StrategySentiment, domsvc.StrategyComposite}
	candidates := make([]domsvc.Strategy, 0, len(kinds))
	for _, k := range kinds {
		s, err := usecase.NewStrategy(k, thresholdsFromConfig(cfg), usecase.DefaultWeights())
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, s)
	}
	harness := usecase.NewHarness(candidates, cfg.Risk.CVaRLevel)

	symbols := make([]string, 0, len(cfg.Deribit.Currencies))
	for _, cur := range cfg.Deribit.Currencies {
		symbols = append(symbols, strings.ToUpper(cur)+"-USD")
	}
	return usecase.NewBacktestRunner(store, candles, harness, log, usecase.BacktestConfig{
		Symbols:   symbols,
		Timeframe: domrepo.Timeframe(cfg.Runner.Timeframe),
		Lookback:  cfg.Runner.CandleLookback,
	}), nil
}
