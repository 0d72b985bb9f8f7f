package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/supplierbot/internal/catalog"
	"github.com/dmitrijs2005/supplierbot/internal/config"
	"github.com/dmitrijs2005/supplierbot/internal/filex"
	"github.com/dmitrijs2005/supplierbot/internal/imagehost"
	"github.com/dmitrijs2005/supplierbot/internal/logging"
	"github.com/dmitrijs2005/supplierbot/internal/metrics"
	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/sessions"
	"github.com/dmitrijs2005/supplierbot/internal/tabular"
	"github.com/dmitrijs2005/supplierbot/internal/transport"
	"github.com/dmitrijs2005/supplierbot/internal/transport/console"
	"github.com/dmitrijs2005/supplierbot/internal/transport/telegram"
	"github.com/dmitrijs2005/supplierbot/internal/web"
	"github.com/dmitrijs2005/supplierbot/internal/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App wires the transport, the dispatcher and the optional HTTP server and
// runs the event loop.
type App struct {
	logger     logging.Logger
	transport  transport.Transport
	dispatcher *Dispatcher
	cache      *catalog.Cache
	staging    *filex.Staging
	server     *web.Server
	closers    []io.Closer
}

// NewApp builds every component selected by cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logOut := os.Stdout
	if cfg.Transport == config.TransportConsole {
		logOut = os.Stderr
	}
	logger := logging.New(logOut, cfg.LogFormat, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := tabular.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	var closers []io.Closer
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}

	images, err := imagehost.Open(ctx, cfg)
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("image host init error: %w", err)
	}

	staging, err := filex.NewStaging(cfg.StagingDir)
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("staging init error: %w", err)
	}

	var server *web.Server
	if cfg.ListenAddr != "" {
		server = web.New(cfg.ListenAddr, reg, logger)
	}

	var tr transport.Transport
	switch cfg.Transport {
	case config.TransportConsole:
		tr = console.New(os.Stdin, os.Stdout)
	default:
		httpClient := &http.Client{Timeout: cfg.RequestTimeout + cfg.PollTimeout}
		client := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramToken, httpClient, cfg.SendRate)
		opts := telegram.Options{PollTimeout: cfg.PollTimeout}
		if cfg.TelegramMode == config.ModeWebhook {
			opts.WebhookURL = cfg.WebhookURL
			opts.WebhookSecret = cfg.WebhookSecret
		}
		tg := telegram.NewTransport(client, opts, logger)
		if opts.WebhookURL != "" {
			server.Handle(telegram.WebhookPath, tg.WebhookHandler())
		}
		tr = tg
	}

	cache := catalog.NewCache(store, logger, m)
	exec := workflow.NewExecutor(store, images, cache, logger, m)
	sess := sessions.NewStore(cfg.SessionTTL, cfg.SessionSweepInterval, staging, logger)

	d := NewDispatcher(Deps{
		Cache:     cache,
		Workflows: exec,
		Sessions:  sess,
		Staging:   staging,
		Images:    tr,
		Logger:    logger,
		Metrics:   m,
	})

	return &App{
		logger:     logger,
		transport:  tr,
		dispatcher: d,
		cache:      cache,
		staging:    staging,
		server:     server,
		closers:    closers,
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run starts the transport and the HTTP server and handles events one at a
// time until ctx is cancelled, a signal arrives or the transport stops.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer closeAll(app.closers)

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(ctx, cancelFunc)

	if n, err := app.staging.Purge(); err != nil {
		app.logger.Warn(ctx, "staging purge failed", "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "stale staged images removed", "count", n)
	}

	// a failed first build is logged by the cache; the bot starts anyway
	if n, err := app.cache.Rebuild(ctx); err == nil {
		app.logger.Info(ctx, "catalog loaded", "entries", n)
	}

	events := make(chan models.Event)
	errCh := make(chan error, 2)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancelFunc()
		if err := app.transport.Run(ctx, events); err != nil {
			app.logger.Error(ctx, "transport stopped", "error", err)
			errCh <- err
		}
	}()

	if app.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.server.Run(ctx); err != nil {
				app.logger.Error(ctx, "http server stopped", "error", err)
				errCh <- err
				cancelFunc()
			}
		}()
	}

	app.loop(ctx, events)
	wg.Wait()

	app.logger.Info(ctx, "App stopped")

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// loop is the single consumer of events, so one event is fully handled
// before the next is read.
func (app *App) loop(ctx context.Context, events <-chan models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			for _, r := range app.dispatcher.Handle(ctx, ev) {
				if err := app.transport.Send(ctx, ev.SenderID, r); err != nil {
					app.logger.Error(ctx, "send reply failed", "sender", ev.SenderID, "error", err)
				}
			}
		}
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
