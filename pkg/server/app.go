package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"OrdreBook/internal/usecase"
	xhttp "OrdreBook/pkg/http"
	pkgkafka "OrdreBook/pkg/kafka"
	applogger "OrdreBook/pkg/logger"
)

// Closer is an infrastructure client released last on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	log       *applogger.Logger
	collector *usecase.MarketCollector
	assembler *usecase.MarketAssembler
	pipeline  *usecase.SignalPipeline
	router    *usecase.DecisionRouter
	engine    *usecase.ExecutionEngine

	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	httpServer *xhttp.Server
	closers    []Closer

	shutdownTimeout time.Duration
}

type AppOption func(*App)

// WithKafkaConsumer feeds externally produced trade signals to the engine.
func WithKafkaConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) AppOption {
	return func(a *App) {
		a.consumer = c
		a.kh = h
	}
}

func WithHTTPServer(s *xhttp.Server) AppOption {
	return func(a *App) { a.httpServer = s }
}

// WithClosers registers infrastructure to release after everything else has stopped.
func WithClosers(cs ...Closer) AppOption {
	return func(a *App) { a.closers = append(a.closers, cs...) }
}

func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// New creates a new App instance with all dependencies.
func New(
	log *applogger.Logger,
	collector *usecase.MarketCollector,
	assembler *usecase.MarketAssembler,
	pipeline *usecase.SignalPipeline,
	router *usecase.DecisionRouter,
	engine *usecase.ExecutionEngine,
	opts ...AppOption,
) *App {
	a := &App{
		log:             log.With(applogger.String("component", "app")),
		collector:       collector,
		assembler:       assembler,
		pipeline:        pipeline,
		router:          router,
		engine:          engine,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until SIGINT/SIGTERM or a fatal
// error. The returned error is non-nil when the app stopped because of a
// failure, so main can exit non-zero.
func (a *App) Run() error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(sigCtx)
}

func (a *App) run(sigCtx context.Context) error {
	// components drain on their own during shutdown, so they do not get the signal context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.engine.Start(ctx)
	a.router.Start(ctx)
	a.pipeline.Start(ctx)

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
			a.shutdown()
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	var httpErrs <-chan error
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.shutdown()
			return fmt.Errorf("http server: %w", err)
		}
		httpErrs = a.httpServer.Errors()
	}

	a.assembler.Start(ctx)
	a.collector.Start(ctx)

	var fatal error
	select {
	case <-sigCtx.Done():
		a.log.Info("shutdown signal received")
	case err := <-a.collector.Errors():
		fatal = err
	case err := <-httpErrs:
		fatal = fmt.Errorf("http server: %w", err)
	}
	if fatal != nil {
		a.log.Error("fatal error, shutting down", applogger.Error(fatal))
	}

	if err := a.shutdown(); err != nil && fatal == nil {
		a.log.Warn("shutdown finished with errors", applogger.Error(err))
	}
	return fatal
}

// shutdown stops producers before consumers: streams, assembler, pipeline,
// router, external signal sources, engine, then infrastructure.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	a.log.Info("shutting down...")

	var errs []error
	if err := a.collector.Shutdown(ctx); err != nil {
		errs = append(errs, err)
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	a.assembler.Stop()
	a.pipeline.Stop()
	a.router.Wait()

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, err)
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	a.engine.Stop()

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.Name, err))
			a.log.Warn("close error", applogger.String("client", c.Name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
