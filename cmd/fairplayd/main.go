package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/fairplaylabs/fairplay/api/metrics"
	"github.com/fairplaylabs/fairplay/api/server"
	"github.com/fairplaylabs/fairplay/ledger"
	"github.com/fairplaylabs/fairplay/ledger/keys"
	"github.com/fairplaylabs/fairplay/ledger/memstore"
	"github.com/fairplaylabs/fairplay/ledger/pgstore"
	"github.com/fairplaylabs/fairplay/utils/pkg/logger"
	"github.com/fairplaylabs/fairplay/utils/pkg/retry"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = "0.0.0.0:8080"
	defaultMetricsAddr = "0.0.0.0:0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "address to listen on for the API")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "address to listen on for prometheus metrics")
	storeFlag := flag.String("store", "postgres", "ledger store backend: 'postgres' or 'memory'")
	postgresDSNFlag := flag.String("postgres-dsn", "", "PostgreSQL connection string (or set POSTGRES_DSN env var)")
	programIDFlag := flag.String("program-id", "", "program identifier anchoring address derivation (defaults to the fairplay program id)")
	rateLimitFlag := flag.Float64("rate-limit", 10, "operation requests per second per client IP")
	rateBurstFlag := flag.Int("rate-burst", 20, "operation request burst per client IP")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 10*time.Second, "maximum time to wait for in-flight requests during shutdown")
	flag.Parse()

	// Best-effort dev convenience; a missing .env is fine.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" && *postgresDSNFlag == "" {
		*postgresDSNFlag = dsn
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		env := os.Getenv("SENTRY_ENVIRONMENT")
		if env == "" {
			env = "development"
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: env,
			Release:     version,
		}); err != nil {
			log.Warn("failed to initialize sentry, continuing without it", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Metrics server
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	programID := keys.DefaultProgramID
	if *programIDFlag != "" {
		var err error
		programID, err = solana.PublicKeyFromBase58(*programIDFlag)
		if err != nil {
			return fmt.Errorf("invalid program id: %w", err)
		}
	}

	store, cleanup, err := buildStore(ctx, log, *storeFlag, *postgresDSNFlag)
	if err != nil {
		return err
	}
	defer cleanup()

	ldg, err := ledger.New(ledger.Config{
		Logger:  log,
		Store:   store,
		Deriver: keys.NewDeriver(programID),
	})
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}

	srv, err := server.New(server.Config{
		Logger:          log,
		Ledger:          ldg,
		ListenAddr:      *listenAddrFlag,
		RateLimit:       rate.Limit(*rateLimitFlag),
		RateBurst:       *rateBurstFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
		VersionInfo: server.VersionInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
}

func buildStore(ctx context.Context, log *slog.Logger, backend, dsn string) (ledger.Store, func(), error) {
	switch backend {
	case "memory":
		log.Warn("using in-memory store, state will not survive restarts")
		store, err := memstore.New(memstore.Config{Logger: log})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create memory store: %w", err)
		}
		return store, func() {}, nil

	case "postgres":
		if dsn == "" {
			return nil, nil, errors.New("postgres store requires --postgres-dsn or POSTGRES_DSN")
		}

		var pool *pgxpool.Pool
		err := retry.Do(ctx, retry.DefaultConfig(), func() error {
			var err error
			pool, err = pgxpool.New(ctx, dsn)
			if err != nil {
				return err
			}
			if err := pool.Ping(ctx); err != nil {
				pool.Close()
				return err
			}
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		if err := pgstore.RunMigrations(log, dsn); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		store, err := pgstore.New(pgstore.Config{Logger: log, Pool: pool})
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
