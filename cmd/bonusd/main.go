package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bonuschain/config"
	"bonuschain/core/node"
	"bonuschain/core/types"
	"bonuschain/gateway/middleware"
	"bonuschain/gateway/routes"
	"bonuschain/native/bonus"
	"bonuschain/observability/logging"
	telemetry "bonuschain/observability/otel"
	"bonuschain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "bonusd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	logger := logging.Setup(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Environment,
		Level:   cfg.LogLevel,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	params, err := cfg.Bonus.Params()
	if err != nil {
		return err
	}
	period, err := cfg.TickPeriod()
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	n, err := node.New(db, node.Config{
		Token: node.Token{
			Symbol:   cfg.TokenSymbol,
			Name:     cfg.TokenName,
			Decimals: cfg.TokenDecimals,
		},
		Params:   params,
		Logger:   logger,
		OnEvents: eventLogger(logger, cfg.RedactAccounts),
	})
	if err != nil {
		return fmt.Errorf("open node: %w", err)
	}
	logger.Info("bonus node ready",
		slog.Uint64("tick", n.Height()),
		slog.String("root", n.Root().Hex()))

	allocs, err := cfg.Allocations()
	if err != nil {
		return err
	}
	genesis := make([]node.Allocation, 0, len(allocs))
	for _, alloc := range allocs {
		genesis = append(genesis, node.Allocation{Account: alloc.Account, Amount: alloc.Amount})
	}
	if err := n.Genesis(genesis); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if err := bootstrapRound(n, cfg.Bonus, params.Accounts.Admin); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer, err := newAPIServer(cfg, n, logger)
	if err != nil {
		return err
	}
	errs := make(chan error, 1)
	if apiServer != nil {
		go func() {
			logger.Info("api listening", slog.String("address", apiServer.Addr))
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	runErr := tickLoop(ctx, n, period, logger, errs)

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			_ = apiServer.Close()
		}
	}
	logger.Info("bonus node stopped", slog.Uint64("tick", n.Height()))
	return runErr
}

// newAPIServer returns nil when no listen address is configured.
func newAPIServer(cfg *config.Config, n *node.Node, logger *slog.Logger) (*http.Server, error) {
	if cfg.API.ListenAddress == "" {
		return nil, nil
	}
	obs, err := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: cfg.ServiceName,
		LogRequests: cfg.API.LogRequests,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("api observability: %w", err)
	}
	var auth *middleware.Authenticator
	if cfg.API.Auth.Enabled {
		skew, err := cfg.API.Auth.Skew()
		if err != nil {
			return nil, err
		}
		auth, err = middleware.NewAuthenticator(middleware.AuthConfig{
			HMACSecret: cfg.API.Auth.HMACSecret,
			Issuer:     cfg.API.Auth.Issuer,
			Audience:   cfg.API.Auth.Audience,
			ClockSkew:  skew,
		}, logger)
		if err != nil {
			return nil, err
		}
	}
	limit := middleware.RateLimit{RatePerSecond: cfg.API.RatePerSecond, Burst: cfg.API.Burst}
	handler, err := routes.New(routes.Config{
		Node:           n,
		MetricsHandler: promhttp.Handler(),
		Observability:  obs,
		Authenticator:  auth,
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			"round":    limit,
			"latest":   limit,
			"slots":    limit,
			"accounts": limit,
			"calls":    limit,
			"admin":    limit,
		}, logger),
	})
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              cfg.API.ListenAddress,
		Handler:           otelhttp.NewHandler(handler, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

// bootstrapRound initialises and starts the round on a fresh state when the
// config asks for it.
func bootstrapRound(n *node.Node, cfg config.Bonus, admin [20]byte) error {
	if !cfg.AutoInit {
		return nil
	}
	price, err := cfg.InitialUnitPrice()
	if err != nil {
		return err
	}
	_, err = n.Apply(context.Background(), "init", func(e *bonus.Engine) error {
		return e.Init(admin, price)
	})
	if err != nil && !errors.Is(err, bonus.ErrAlreadyInitialized) {
		return fmt.Errorf("init round: %w", err)
	}
	if !cfg.AutoStart {
		return nil
	}
	_, err = n.Apply(context.Background(), "start", func(e *bonus.Engine) error {
		r, err := e.Round()
		if err != nil {
			return err
		}
		if r.Status != bonus.RoundStatusInited {
			return nil
		}
		return e.SetStatus(admin, bonus.RoundStatusRunning)
	})
	if err != nil {
		return fmt.Errorf("start round: %w", err)
	}
	return nil
}

func tickLoop(ctx context.Context, n *node.Node, period time.Duration, logger *slog.Logger, errs <-chan error) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return fmt.Errorf("api server: %w", err)
		case <-ticker.C:
			report, _, err := n.Tick(ctx)
			if err != nil {
				// The tick was rolled back; the next one retries from the same state.
				continue
			}
			if report.Reset {
				logger.Info("round completed", slog.Uint64("tick", report.Tick), slog.Uint64("released", report.Released))
			}
		}
	}
}

func eventLogger(logger *slog.Logger, redact bool) func([]types.Event) {
	return func(evts []types.Event) {
		for _, evt := range evts {
			keys := make([]string, 0, len(evt.Attributes))
			for key := range evt.Attributes {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			args := make([]any, 0, len(keys)+1)
			args = append(args, slog.String("type", evt.Type))
			for _, key := range keys {
				args = append(args, logging.MaskField(redact, key, evt.Attributes[key]))
			}
			logger.Info("event", args...)
		}
	}
}
