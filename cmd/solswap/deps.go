package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/solswap/service/config"
	"github.com/brojonat/solswap/service/db"
	"github.com/brojonat/solswap/service/jupiter"
	"github.com/brojonat/solswap/service/metrics"
	natspkg "github.com/brojonat/solswap/service/nats"
	"github.com/brojonat/solswap/service/solana"
	"github.com/brojonat/solswap/service/trader"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

// deps holds everything a command needs. Optional integrations are nil when
// not configured.
type deps struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	chain     *solana.Client
	jupiter   *jupiter.Client
	store     *db.Store
	publisher natspkg.Publisher
	closers   []func()
}

// loadConfig reads the environment and applies any global flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadWith(func(cfg *config.Config) {
		if c.IsSet("rpc-url") {
			cfg.SolanaRPCURL = c.String("rpc-url")
		}
		if c.IsSet("jupiter-url") {
			cfg.JupiterAPIURL = c.String("jupiter-url")
		}
		if c.IsSet("relay-url") {
			cfg.JupiterRelayURL = c.String("relay-url")
		}
		if c.IsSet("database-url") {
			cfg.DatabaseURL = c.String("database-url")
		}
		if c.IsSet("nats-url") {
			cfg.NATSURL = c.String("nats-url")
		}
		if c.IsSet("metrics-addr") {
			cfg.MetricsAddr = c.String("metrics-addr")
		}
		if c.IsSet("log-level") {
			cfg.LogLevel = c.String("log-level")
		}
	})
}

// newDeps wires the chain and aggregator clients and, when configured, the
// metrics listener, trade journal and NATS publisher.
func newDeps(ctx context.Context, c *cli.Context) (*deps, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	d := &deps{
		cfg:    cfg,
		logger: setupLogger(cfg.LogLevel),
	}

	if cfg.MetricsAddr != "" {
		d.metrics = metrics.NewMetrics(nil) // nil uses default registry
		d.startMetricsServer(cfg.MetricsAddr)
	}

	endpoint, err := solana.SelectRandomEndpoint(solana.SplitEndpoints(cfg.SolanaRPCURL))
	if err != nil {
		d.Close()
		return nil, err
	}
	d.chain = solana.NewClient(solana.NewRPCClient(endpoint), extractEndpointFromURL(endpoint), d.metrics, d.logger)
	d.chain.SetPollInterval(cfg.ConfirmPollInterval)
	d.logger.Debug("initialized solana RPC client", "endpoint", extractEndpointFromURL(endpoint))

	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: metrics.InstrumentedTransport(d.metrics, http.DefaultTransport),
	}
	d.jupiter = jupiter.NewClient(cfg.JupiterAPIURL, cfg.JupiterRelayURL, jupiter.SwapOptions{
		MaxSlippageBps:         cfg.MaxSlippageBps,
		MaxPriorityFeeLamports: cfg.MaxPriorityFeeLamports,
		PriorityLevel:          cfg.PriorityLevel,
	}, httpClient, d.logger)

	if cfg.DatabaseURL != "" {
		store, closer, err := openStore(ctx, cfg.DatabaseURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.store = store
		d.closers = append(d.closers, closer)
	}

	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, d.metrics, d.logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.publisher = publisher
		d.closers = append(d.closers, func() { publisher.Close() })
	}

	return d, nil
}

// newTrader builds a Trader from the wired dependencies.
func (d *deps) newTrader() *trader.Trader {
	submitter := trader.NewSubmitter(d.jupiter, d.chain, d.metrics, d.logger)

	// typed nils must not leak into the optional interfaces
	var journal trader.JournalInterface
	if d.store != nil {
		journal = d.store
	}
	var publisher trader.PublisherInterface
	if d.publisher != nil {
		publisher = d.publisher
	}

	return trader.New(d.chain, d.jupiter, submitter, journal, publisher, trader.Options{
		MaxAttempts:   d.cfg.ConfirmMaxAttempts,
		SettleDelay:   d.cfg.SettleDelay,
		MinFeeBalance: d.cfg.MinFeeBalance,
		ExplorerTxURL: d.cfg.ExplorerTxURL,
	}, d.metrics, d.logger)
}

func (d *deps) startMetricsServer(addr string) {
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.Handler(),
	}

	go func() {
		d.logger.Info("starting metrics HTTP server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error("metrics server error", "error", err)
		}
	}()

	d.closers = append(d.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("failed to shutdown metrics server", "error", err)
		}
	})
}

// Close releases the optional integrations in reverse order.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func openStore(ctx context.Context, dbURL string) (*db.Store, func(), error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to create trades table: %w", err)
	}

	return store, pool.Close, nil
}

// extractEndpointFromURL extracts a short identifier from the Solana RPC URL for metrics labeling.
// Examples:
//   - "https://api.mainnet-beta.solana.com" -> "mainnet"
//   - "https://mainnet.helius-rpc.com/?api-key=..." -> "helius"
//   - "https://some-endpoint.quiknode.pro/..." -> "quiknode"
//
// The API key never appears in the label.
func extractEndpointFromURL(rpcURL string) string {
	parsed, err := url.Parse(rpcURL)
	if err != nil {
		return "unknown"
	}

	host := parsed.Hostname()

	for _, provider := range []string{"helius", "alchemy", "triton", "rpcpool"} {
		if strings.Contains(host, provider) {
			return provider
		}
	}
	if strings.Contains(host, "quiknode") || strings.Contains(host, "quicknode") {
		return "quiknode"
	}

	for _, cluster := range []string{"mainnet", "devnet", "testnet"} {
		if strings.Contains(host, cluster) {
			return cluster
		}
	}

	if host == "" {
		return "unknown"
	}
	return host
}
