package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/adapter"
	"github.com/pithecene-io/vpd/adapter/nats"
	"github.com/pithecene-io/vpd/adapter/redis"
	"github.com/pithecene-io/vpd/adapter/webhook"
	"github.com/pithecene-io/vpd/api"
	"github.com/pithecene-io/vpd/cli/config"
	"github.com/pithecene-io/vpd/eventlog"
	"github.com/pithecene-io/vpd/ipc"
	"github.com/pithecene-io/vpd/log"
	"github.com/pithecene-io/vpd/manager"
	"github.com/pithecene-io/vpd/metrics"
	"github.com/pithecene-io/vpd/worker"
)

// shutdownTimeout bounds draining collections and queued fault records.
const shutdownTimeout = 15 * time.Second

// ServeCommand returns the serve command, which runs the daemon until
// SIGINT or SIGTERM.
func ServeCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:  "system-config",
			Usage: "Path to the system config JSON (overrides system_config)",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "API listen address (overrides api.listen)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "parser",
			Usage: "Parser backend: process or memory",
		},
		&cli.StringFlag{
			Name:  "parser-path",
			Usage: "Path to the parser binary (process backend)",
		},
		&cli.StringFlag{
			Name:  "images",
			Usage: "EEPROM image YAML (memory backend)",
		},
		&cli.StringFlag{
			Name:  "transport",
			Usage: "Fault record transport: stub, redis, webhook, nats, lode",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Keep fault records in memory; ignore transport and archive settings",
		},
		&cli.BoolFlag{
			Name:  "no-collect",
			Usage: "Skip bring-up collection at start",
		},
	}
	flags = append(flags, archiveFlags()...)

	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the VPD manager daemon",
		Flags:  flags,
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyServeFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return usageError("invalid configuration: %v", err)
	}
	if cfg.SystemConfig == "" {
		return usageError("system config is required (system_config or --system-config)")
	}

	logger := log.NewLogger("daemon")
	if cfg.Log.Level != "" {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			return usageError("%v", err)
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			return err
		}
		return cli.Exit(fmt.Sprintf("serve: %v", err), ExitFailure)
	}
	if err := d.run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("serve: %v", err), ExitFailure)
	}
	return nil
}

// applyServeFlags overlays explicitly set flags on cfg.
func applyServeFlags(c *cli.Context, cfg *config.Config) {
	set := func(name string, dst *string) {
		if v := c.String(name); v != "" {
			*dst = v
		}
	}
	set("system-config", &cfg.SystemConfig)
	set("listen", &cfg.API.Listen)
	set("log-level", &cfg.Log.Level)
	set("parser", &cfg.Parser.Backend)
	set("parser-path", &cfg.Parser.Path)
	set("images", &cfg.Parser.Images)
	set("transport", &cfg.Transport.Type)
	applyArchiveFlags(c, cfg)

	if c.Bool("dry-run") {
		cfg.Transport = config.TransportConfig{Type: config.TransportStub}
		cfg.Archive = config.ArchiveConfig{}
	}
	if c.Bool("no-collect") {
		off := false
		cfg.Workers.CollectOnStart = &off
	}
}

// daemon is the assembled vpd-manager.
type daemon struct {
	logger  *log.Logger
	events  *eventlog.Logger
	manager *manager.Manager
	server  *api.Server
	// listener, when set, replaces listening on api.listen.
	listener net.Listener
}

// newDaemon wires parser, worker, transport, event logger, manager and API
// from cfg. Nothing runs until run.
func newDaemon(ctx context.Context, cfg *config.Config, logger *log.Logger) (*daemon, error) {
	level := cfg.Log.Level
	component := func(name string) *log.Logger {
		l := log.NewLogger(name)
		if level != "" {
			_ = l.SetLevel(level)
		}
		return l
	}

	system, err := worker.LoadSystemConfig(cfg.SystemConfig)
	if err != nil {
		return nil, usageError("%v", err)
	}

	parserName := cfg.Parser.Backend
	if parserName == "" {
		parserName = config.ParserProcess
	}
	collector := metrics.NewCollector(transportName(cfg), parserName)

	parser, err := newParser(cfg, parserName, collector, component("parser"))
	if err != nil {
		return nil, err
	}
	w, err := worker.New(worker.Config{System: system, Parser: parser, Logger: component("worker")})
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(ctx, cfg, collector)
	if err != nil {
		return nil, err
	}
	events, err := eventlog.New(eventlog.Config{
		Transport:     transport,
		Resolver:      w,
		QueueSize:     cfg.Transport.QueueSize,
		SubmitTimeout: cfg.Transport.Timeout.Duration,
		Logger:        component("eventlog"),
		Collector:     collector,
	})
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	inventory := worker.NewMemoryInventory()
	mgr, err := manager.New(manager.Config{
		Worker:               w,
		Publisher:            inventory,
		Events:               events,
		MaxConcurrent:        cfg.Workers.MaxConcurrent,
		PollInterval:         cfg.Timers.CollectionPoll.Duration,
		SystemVPDInterval:    cfg.Timers.SystemVPDPoll.Duration,
		SystemVPDMaxAttempts: cfg.Timers.SystemVPDMaxAttempts,
		CollectOnStart:       cfg.CollectOnStart(),
		Logger:               component("manager"),
		Collector:            collector,
	})
	if err != nil {
		_ = events.Close(ctx)
		return nil, err
	}

	server, err := api.New(api.Config{
		Service:   mgr,
		Listen:    cfg.API.Listen,
		Collector: collector,
		Logger:    component("api"),
	})
	if err != nil {
		_ = events.Close(ctx)
		return nil, err
	}

	logger.Info("daemon configured", map[string]any{
		"system_config": cfg.SystemConfig,
		"parser":        parserName,
		"transport":     transportName(cfg),
		"frus":          len(w.Frus()),
	})
	return &daemon{
		logger:  logger,
		events:  events,
		manager: mgr,
		server:  server,
	}, nil
}

// run starts the manager and serves the API until ctx ends, then shuts
// everything down in reverse order.
func (d *daemon) run(ctx context.Context) error {
	if err := d.manager.Start(ctx); err != nil {
		return err
	}
	var serveErr error
	if d.listener != nil {
		serveErr = d.server.ServeListener(ctx, d.listener)
	} else {
		serveErr = d.server.Serve(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := errors.Join(
		serveErr,
		d.manager.Stop(shutdownCtx),
		d.events.Close(shutdownCtx),
	)
	stats := d.events.Stats()
	d.logger.Info("daemon stopped", map[string]any{
		"pels_delivered": stats.Delivered,
		"pels_failed":    stats.Failed,
		"pels_dropped":   stats.Dropped,
	})
	_ = d.logger.Sync()
	return err
}

func newParser(cfg *config.Config, backend string, collector *metrics.Collector, logger *log.Logger) (worker.Parser, error) {
	switch backend {
	case config.ParserMemory:
		p := worker.NewMemoryParser()
		if cfg.Parser.Images == "" {
			return p, nil
		}
		f, err := os.Open(cfg.Parser.Images)
		if err != nil {
			return nil, usageError("cannot open images: %v", err)
		}
		defer func() { _ = f.Close() }()
		if err := p.LoadImages(f); err != nil {
			return nil, usageError("%s: %v", cfg.Parser.Images, err)
		}
		return p, nil
	default:
		if cfg.Parser.Path == "" {
			return nil, usageError("parser.path is required for the process backend")
		}
		return ipc.NewProcessParser(ipc.ProcessConfig{
			Path:      cfg.Parser.Path,
			Args:      cfg.Parser.Args,
			Timeout:   cfg.Parser.Timeout.Duration,
			Logger:    logger,
			Collector: collector,
		})
	}
}

// newTransport builds the configured fault record transport. With an
// archive configured alongside a non-lode transport, records go to both.
func newTransport(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (adapter.Transport, error) {
	tc := cfg.Transport
	retries := func(def int) int {
		if tc.Retries != nil {
			return *tc.Retries
		}
		return def
	}

	var primary adapter.Transport
	var err error
	switch tc.Type {
	case "", config.TransportStub:
		primary = adapter.NewStubTransport()
	case config.TransportRedis:
		primary, err = redis.New(redis.Config{
			URL:     tc.URL,
			Channel: tc.Channel,
			Codec:   redis.Codec(tc.Codec),
			Timeout: tc.Timeout.Duration,
			Retries: retries(redis.DefaultRetries),
		})
	case config.TransportWebhook:
		primary, err = webhook.New(webhook.Config{
			URL:     tc.URL,
			Headers: tc.Headers,
			Timeout: tc.Timeout.Duration,
			Retries: retries(webhook.DefaultRetries),
		})
	case config.TransportNATS:
		primary, err = nats.New(nats.Config{
			URL:                  tc.URL,
			Subject:              tc.Subject,
			ConnectTimeout:       tc.Timeout.Duration,
			RetryOnFailedConnect: true,
		})
	case config.TransportLode:
		// The archive below is the only transport.
	default:
		return nil, usageError("unknown transport type %q", tc.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s transport: %w", tc.Type, err)
	}

	if !cfg.ArchiveEnabled() {
		return primary, nil
	}
	archive, err := openArchive(ctx, archiveFromConfig(cfg.Archive), collector)
	if err != nil {
		if primary != nil {
			_ = primary.Close()
		}
		return nil, fmt.Errorf("fault archive: %w", err)
	}
	if primary == nil {
		return archive, nil
	}
	return adapter.NewFanout(primary, archive), nil
}

// transportName labels the metrics collector.
func transportName(cfg *config.Config) string {
	name := orDefault(cfg.Transport.Type, config.TransportStub)
	if cfg.ArchiveEnabled() && name != config.TransportLode {
		name += "+lode"
	}
	return name
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
