package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SMCFlow/internal/domain/repository"
	"SMCFlow/internal/handler/api"
	"SMCFlow/internal/storage/postgres"
	"SMCFlow/internal/usecase"
	pkgch "SMCFlow/pkg/clickhouse"
	"SMCFlow/pkg/config"
	xhttp "SMCFlow/pkg/http"
	pkgkafka "SMCFlow/pkg/kafka"
	applogger "SMCFlow/pkg/logger"
)

// Resources groups the infrastructure clients the app owns and must close
// on shutdown.
type Resources struct {
	ClickHouse *pkgch.Client
	Postgres   *postgres.Pool
	Publisher  repository.SignalPublisher
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	engine     *usecase.Engine
	collector  *usecase.CandleCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	handler    *api.ReportingHandler
	res        Resources
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	engine *usecase.Engine,
	collector *usecase.CandleCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	handler *api.ReportingHandler,
	res Resources,
) *App {
	a := &App{
		cfg:       cfg,
		logger:    lgr,
		engine:    engine,
		collector: collector,
		consumer:  consumer,
		handler:   handler,
		res:       res,
	}
	if kh != nil {
		a.kh = kh
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Recover open signals and equity state before any candles flow
	if err := a.engine.Start(ctx); err != nil {
		l.Error("engine start error", applogger.Error(err))
		return err
	}

	switch a.cfg.Feed.Type {
	case "websocket":
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("assets", a.cfg.Engine.Assets))
	case "kafka":
		if a.consumer != nil && a.kh != nil {
			a.consumer.RegisterHandler(a.kh)
			go func() {
				if err := a.consumer.Start(); err != nil {
					l.Error("kafka consumer error", applogger.Error(err))
				}
			}()
			l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	// Stop the feed first so nothing new enters the pipeline
	if a.collector != nil && a.cfg.Feed.Type == "websocket" {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Drain the engine workers; open signals stay OPEN in the store and
	// are re-tracked on the next start
	a.engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.res.Publisher != nil {
		if err := a.res.Publisher.Close(); err != nil {
			l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.res.ClickHouse != nil {
		if err := a.res.ClickHouse.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.res.Postgres != nil {
		a.res.Postgres.Close()
	}

	l.Info("shutdown complete")
	return nil
}
