package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/usecase"
	pkgch "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/clickhouse"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/config"
	xhttp "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/http"
	pkgkafka "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/kafka"
	applogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
)

// App encapsulates the application lifecycle: the chain collector feeding
// evaluation cycles, the Kafka features consumer, and the inspection API.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	collector  *usecase.ChainCollector
	consumer   *pkgkafka.Consumer
	features   pkgkafka.MessageHandler
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	handler    xhttp.Handler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. Consumer, producer
// and ClickHouse client may be nil in paper mode; the app starts only what
// it is given.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.ChainCollector,
	consumer *pkgkafka.Consumer,
	features pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		collector: collector,
		consumer:  consumer,
		features:  features,
		chClient:  chClient,
		producer:  producer,
		handler:   handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.collector.Start(ctx); err != nil {
		a.log.Error("collector start error", applogger.Error(err))
		return err
	}
	a.log.Info("chain collector started",
		applogger.Strings("currencies", a.cfg.Deribit.Currencies),
		applogger.String("mode", a.cfg.Mode),
	)

	if a.consumer != nil && a.features != nil {
		a.consumer.RegisterHandler(a.features)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.features.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
