package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EpiPulse/internal/service/ratelimit"
	"EpiPulse/pkg/config"
	xhttp "EpiPulse/pkg/http"
	pkgkafka "EpiPulse/pkg/kafka"
	applogger "EpiPulse/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	limiter    *ratelimit.Limiter
	closers    []closer
	stop       chan struct{}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *App {
	if l == nil {
		l = applogger.NewNop()
	}
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: httpServer,
		stop:       make(chan struct{}),
	}
}

// SetConsumer runs kh on messages from consumer while the app is up.
func (a *App) SetConsumer(consumer *pkgkafka.Consumer, kh pkgkafka.MessageHandler) {
	a.consumer = consumer
	a.kh = kh
}

// SetLimiter sweeps idle limiter entries while the app is up.
func (a *App) SetLimiter(l *ratelimit.Limiter) { a.limiter = l }

// OnClose registers a resource released during shutdown, in registration
// order, after the server and consumer have stopped.
func (a *App) OnClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.limiter != nil {
		go a.limiter.RunSweeper(time.Minute, a.stop)
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("epipulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("addr", a.cfg.Addr()),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	close(a.stop)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server first so no new analyses start
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// flush aggregated logs while the producer is still open
	a.log.RemoveCollector()

	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
