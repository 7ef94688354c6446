package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/boostsync/internal/admin"
	"github.com/stacklok/boostsync/internal/api"
	"github.com/stacklok/boostsync/internal/bot"
	"github.com/stacklok/boostsync/internal/config"
	"github.com/stacklok/boostsync/internal/discord"
	"github.com/stacklok/boostsync/internal/httpclient"
	"github.com/stacklok/boostsync/internal/reconcile"
	"github.com/stacklok/boostsync/internal/telemetry"
	"github.com/stacklok/boostsync/internal/vanity"
	"github.com/stacklok/boostsync/internal/versions"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultProbeTimeout   = 10 * time.Second
)

// Options configures the application builder
type Options func(*appConfig) error

type appConfig struct {
	config      *config.Config
	credentials *config.Credentials

	// Overrides, primarily for tests
	gateway   Gateway
	prober    vanity.Prober
	telemetry *telemetry.Telemetry

	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...Options) (*appConfig, error) {
	cfg := &appConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.API.GetAddress()
	}

	return cfg, nil
}

// New assembles the bot from configuration. Nothing connects until Start.
func New(ctx context.Context, opts ...Options) (*App, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.telemetry == nil {
		telCfg := cfg.config.Telemetry
		if telCfg != nil && telCfg.ServiceVersion == "" {
			telCfg.ServiceVersion = versions.GetVersionInfo().Version
		}
		cfg.telemetry, err = telemetry.New(ctx, telCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	if cfg.gateway == nil {
		if cfg.credentials == nil {
			return nil, fmt.Errorf("credentials are required to connect the gateway")
		}
		client, err := discord.New(cfg.credentials.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create gateway client: %w", err)
		}
		cfg.gateway = client
	}

	reconciler, err := buildReconciler(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build reconciler: %w", err)
	}

	poller, err := buildPoller(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build vanity poller: %w", err)
	}

	processor := admin.NewProcessor(
		cfg.config.Admin.OperatorID,
		cfg.config.Admin.GetPrefix(),
		poller,
		reconciler,
	)

	dispatcher := bot.NewDispatcher(
		cfg.config.Guilds.Source,
		cfg.config.Guilds.Target,
		reconciler,
		processor,
		cfg.gateway,
		bot.WithTracerProvider(cfg.telemetry.TracerProvider()),
	)

	httpServer, err := buildHTTPServer(cfg, poller)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return &App{
		config: cfg.config,
		components: &Components{
			Gateway:    cfg.gateway,
			Dispatcher: dispatcher,
			Poller:     poller,
			Reconciler: reconciler,
		},
		httpServer: httpServer,
		telemetry:  cfg.telemetry,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) Options {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithCredentials sets the bot token used for the gateway and invite lookups
func WithCredentials(creds *config.Credentials) Options {
	return func(cfg *appConfig) error {
		cfg.credentials = creds
		return nil
	}
}

// WithAddress sets the HTTP server address, overriding api.address
func WithAddress(addr string) Options {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Options {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithGateway injects the platform connection (for testing)
func WithGateway(g Gateway) Options {
	return func(cfg *appConfig) error {
		cfg.gateway = g
		return nil
	}
}

// WithProber injects the vanity prober (for testing)
func WithProber(p vanity.Prober) Options {
	return func(cfg *appConfig) error {
		cfg.prober = p
		return nil
	}
}

// WithTelemetry injects already initialized telemetry providers
func WithTelemetry(t *telemetry.Telemetry) Options {
	return func(cfg *appConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// ReconcileConfig maps the file configuration onto the reconciler's
func ReconcileConfig(c *config.Config) reconcile.Config {
	return reconcile.Config{
		SourceGuildID: c.Guilds.Source,
		TargetGuildID: c.Guilds.Target,
		BoosterRoleID: c.Roles.Booster,
		CustomRoleID:  c.Roles.Custom,
		AccessRoleID:  c.Roles.Access,
		DeniedRoleID:  c.Roles.Denied,
		PageSize:      c.Reconcile.GetPageSize(),
	}
}

func buildReconciler(b *appConfig) (reconcile.Reconciler, error) {
	metrics, err := telemetry.NewReconcileMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create reconcile metrics: %w", err)
	}

	return reconcile.New(
		ReconcileConfig(b.config),
		b.gateway,
		b.gateway,
		reconcile.WithMetrics(metrics),
	), nil
}

// NewProber builds the HTTP invite prober authenticated with token
func NewProber(c *config.Config, token string) vanity.Prober {
	client := httpclient.NewDefaultClient(defaultProbeTimeout,
		httpclient.WithAuthorization(c.Vanity.GetAuthScheme(), token),
		httpclient.WithUserAgent("boostsync/"+versions.GetVersionInfo().Version),
	)
	return vanity.NewHTTPProber(client, c.Vanity.GetEndpoint())
}

func buildPoller(b *appConfig) (vanity.Poller, error) {
	if b.prober == nil {
		if b.credentials == nil {
			return nil, fmt.Errorf("credentials are required for invite lookups")
		}
		b.prober = NewProber(b.config, b.credentials.Token)
	}

	metrics, err := telemetry.NewVanityMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create vanity metrics: %w", err)
	}

	notifyUserID := b.config.GetNotifyUserID()
	if len(b.config.Vanity.Codes) > 0 && notifyUserID == "" {
		slog.Warn("No notification recipient configured, vanity notifications will fail",
			"codes", len(b.config.Vanity.Codes))
	}

	return vanity.New(
		b.config.Vanity.Codes,
		b.prober,
		discord.NewDMNotifier(b.gateway, notifyUserID),
		vanity.WithInterval(b.config.Vanity.GetInterval()),
		vanity.WithRequiredMisses(b.config.Vanity.GetRequiredMisses()),
		vanity.WithMetrics(metrics),
	), nil
}

func buildHTTPServer(b *appConfig, poller vanity.Poller) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing go first so rejected and timed out requests are still seen
	metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	instrumentation := []func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
	}
	if metricsMiddleware != nil {
		instrumentation = append(instrumentation, metricsMiddleware)
	}
	middlewares := append(instrumentation, b.middlewares...)

	router := api.NewServer(b.gateway, poller,
		api.WithMiddlewares(middlewares...),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
		api.WithRequiredMisses(b.config.Vanity.GetRequiredMisses()),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
