// Binary catalyst-web serves the catalyst chat UI and API over HTTP.
//
// Configuration comes from catalyst.toml (path in CATALYST_CONFIG) with
// environment overrides; see internal/config. With [observer] enabled
// the provider, tools, and agent are wrapped with OTEL instrumentation
// exporting OTLP over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nevindra/catalyst"
	"github.com/nevindra/catalyst/frontend/web"
	"github.com/nevindra/catalyst/internal/config"
	"github.com/nevindra/catalyst/observer"
	"github.com/nevindra/catalyst/provider/resolve"
	"github.com/nevindra/catalyst/store/jsonfile"
	"github.com/nevindra/catalyst/store/postgres"
	"github.com/nevindra/catalyst/store/sqlite"
	"github.com/nevindra/catalyst/tools/calculator"
	"github.com/nevindra/catalyst/tools/code"
	"github.com/nevindra/catalyst/tools/file"
	webtool "github.com/nevindra/catalyst/tools/web"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg := config.Load(os.Getenv("CATALYST_CONFIG"))

	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		setOTLPEndpoint(cfg.Observer.Endpoint)
		instruments, shutdown, err := observer.Init(ctx, pricingOverrides(cfg.Observer.Pricing))
		if err != nil {
			return fmt.Errorf("observer init: %w", err)
		}
		inst = instruments
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutCtx); err != nil {
				logger.Warn("observer shutdown", "error", err)
			}
		}()
	}

	provider, err := resolve.Provider(resolve.Config{
		Provider:   cfg.Provider.Name,
		APIKey:     cfg.Provider.APIKey,
		Model:      cfg.Provider.Model,
		Endpoint:   cfg.Provider.Endpoint,
		Deployment: cfg.Provider.Deployment,
		APIVersion: cfg.Provider.APIVersion,
	})
	if err != nil {
		return fmt.Errorf("resolve provider: %w", err)
	}
	if inst != nil {
		provider = observer.WrapProvider(provider, inst)
	}

	tools := []catalyst.Tool{
		calculator.New(),
		file.NewReader(cfg.Storage.BlobPath),
		file.NewWriter(cfg.Storage.BlobPath),
		webtool.NewFetch(),
		webtool.NewDownload(cfg.Storage.BlobPath),
		code.NewExecutor("python3", code.WithWorkspace(cfg.Storage.BlobPath)),
		code.NewInstaller("python3"),
	}
	if inst != nil {
		for i, t := range tools {
			tools[i] = observer.WrapTool(t, inst)
		}
	}

	bus := catalyst.NewBus(catalyst.BusLogger(logger))

	opts := []catalyst.Option{
		catalyst.WithEventBus(bus),
		catalyst.WithLogger(logger),
		catalyst.WithMemoryCapacity(cfg.Memory.ShortTermCapacity),
		catalyst.WithStoragePath(cfg.Storage.BlobPath),
		catalyst.WithTemperature(cfg.Provider.Temperature),
		catalyst.WithMaxTokens(cfg.Provider.MaxTokens),
		catalyst.WithTools(tools...),
	}

	if cfg.Memory.LongTerm {
		store, closeStore, err := openStore(ctx, cfg.Memory)
		if err != nil {
			return fmt.Errorf("open long-term store: %w", err)
		}
		defer closeStore()
		opts = append(opts, catalyst.WithLongTermStore(store))
	}

	agent, err := catalyst.New(provider, opts...)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	var serverAgent web.Agent = agent
	if inst != nil {
		serverAgent = observer.WrapAgent(agent, inst)
	}

	server := web.New(serverAgent, bus, web.WithLogger(logger))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Handler(),
		// No WriteTimeout: the SSE stream stays open for the whole
		// agent run.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", cfg.Server.Addr,
			"provider", cfg.Provider.Name,
			"model", cfg.Provider.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// pricingOverrides converts [observer.pricing] entries into the
// observer's pricing form.
func pricingOverrides(entries map[string]config.PricingConfig) map[string]observer.ModelPricing {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]observer.ModelPricing, len(entries))
	for model, p := range entries {
		out[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
	}
	return out
}

// setOTLPEndpoint maps the TOML observer endpoint onto the standard
// exporter env var unless the operator already set one.
func setOTLPEndpoint(endpoint string) {
	if endpoint == "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		return
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", endpoint)
}

// openStore creates the configured long-term store and returns it with
// a close function.
func openStore(ctx context.Context, cfg config.MemoryConfig) (catalyst.LongTermStore, func(), error) {
	switch cfg.Store {
	case "", "jsonfile":
		s := jsonfile.New(cfg.Path)
		return s, func() { _ = s.Close() }, nil
	case "sqlite":
		s := sqlite.New(cfg.Path)
		if err := s.Init(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		s := postgres.New(pool)
		if err := s.Init(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close(); pool.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown memory store %q", cfg.Store)
	}
}
