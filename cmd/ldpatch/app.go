package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360studio/ldpatch/config"
	"github.com/c360studio/ldpatch/ldpatch"
	patchapi "github.com/c360studio/ldpatch/processor/patch-api"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// App wires the patch service to NATS and the metrics endpoint.
type App struct {
	cfg     *config.Config
	patcher *ldpatch.Patcher
	logger  *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsClient     *natsclient.Client
	natsURL        string

	// Service
	service  *patchapi.Component
	registry *prometheus.Registry

	// Metrics
	metricsServer   *http.Server
	metricsListener net.Listener
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, patcher *ldpatch.Patcher, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if patcher == nil {
		return nil, fmt.Errorf("patcher required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		cfg:      cfg,
		patcher:  patcher,
		logger:   logger,
		registry: registry,
	}, nil
}

// Start connects to NATS, starts the patch service and the metrics endpoint.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	registry := component.NewRegistry()
	if err := patchapi.Register(registry); err != nil {
		return fmt.Errorf("register patch service: %w", err)
	}
	a.logger.Debug("Component factories registered", "count", len(registry.ListFactories()))

	apiConfig := patchapi.ConfigForPrefix(a.cfg.NATS.SubjectPrefix)
	if a.cfg.NATS.RequestTimeout > 0 {
		apiConfig.TimeoutSecs = int(math.Ceil(a.cfg.NATS.RequestTimeout.Seconds()))
	}
	apiConfig.Defaults = a.cfg.ProcessorOptions()

	deps := component.Dependencies{
		NATSClient: a.natsClient,
		Logger:     a.logger,
	}
	comp, err := patchapi.New(apiConfig, deps,
		patchapi.WithPatcher(a.patcher),
		patchapi.WithMetrics(patchapi.NewMetrics(a.registry)),
	)
	if err != nil {
		return fmt.Errorf("create patch service: %w", err)
	}
	if err := comp.Initialize(); err != nil {
		return fmt.Errorf("initialize patch service: %w", err)
	}
	if err := comp.Start(ctx); err != nil {
		return fmt.Errorf("start patch service: %w", err)
	}
	a.service = comp

	if a.cfg.Metrics.Enabled {
		if err := a.startMetrics(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	a.logger.Info("ldpatch service ready",
		"version", Version,
		"nats_url", a.natsURL,
		"subject_prefix", a.cfg.NATS.SubjectPrefix)
	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	url := a.cfg.NATS.URL
	if url == "" || a.cfg.NATS.Embedded {
		a.logger.Info("Starting embedded NATS server")
		opts := &server.Options{
			Host:   "127.0.0.1",
			Port:   -1, // Random available port
			NoLog:  true,
			NoSigs: true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns
		url = ns.ClientURL()
	}

	a.logger.Info("Connecting to NATS", "url", url)
	client, err := natsclient.NewClient(url,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("wait for NATS connection: %w", err)
	}

	a.natsClient = client
	a.natsURL = url
	return nil
}

func (a *App) startMetrics() error {
	listener, err := net.Listen("tcp", a.cfg.Metrics.Address)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if a.service == nil || !a.service.Health().Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	a.metricsListener = listener
	a.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("Metrics server stopped", "error", err)
		}
	}()

	a.logger.Info("Metrics endpoint listening", "address", listener.Addr().String())
	return nil
}

// ClientURL returns the URL clients use to reach the service's NATS server.
func (a *App) ClientURL() string {
	return a.natsURL
}

// MetricsAddress returns the bound metrics address, or "" when disabled.
func (a *App) MetricsAddress() string {
	if a.metricsListener == nil {
		return ""
	}
	return a.metricsListener.Addr().String()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	a.logger.Info("Shutting down")

	if a.service != nil {
		if err := a.service.Stop(timeout); err != nil {
			a.logger.Warn("Failed to stop patch service", "error", err)
		}
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to stop metrics server", "error", err)
		}
		cancel()
	}

	if a.natsClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.natsClient.Close(ctx); err != nil {
			a.logger.Warn("Failed to close NATS client", "error", err)
		}
		cancel()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (c *cli) serveCmd() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve apply, diff and project over NATS",
		Long: `Serve subscribes to <prefix>.apply, <prefix>.diff and <prefix>.project.

An embedded NATS server is started unless nats.url is configured. When
metrics are enabled, Prometheus metrics are exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patcher, err := c.newPatcher()
			if err != nil {
				return err
			}
			app, err := NewApp(c.cfg, patcher, c.logger)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if err := app.Start(ctx); err != nil {
				app.Shutdown(shutdownTimeout)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ldpatch serving on %s (subjects %s.*)\n", app.ClientURL(), c.cfg.NATS.SubjectPrefix)

			<-ctx.Done()
			app.Shutdown(shutdownTimeout)
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")
	return cmd
}
