package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-roombook/internal/api"
	"github.com/npezzotti/go-roombook/internal/config"
	"github.com/npezzotti/go-roombook/internal/database"
	"github.com/npezzotti/go-roombook/internal/logging"
	"github.com/npezzotti/go-roombook/internal/notify"
	"github.com/npezzotti/go-roombook/internal/stats"
	"go.uber.org/zap"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
	disableAuth    bool
	migrateOnStart bool
	logLevel       string
	logFormat      string
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.BoolVar(&disableAuth, "disable-auth", false, "serve every route without a session token")
	flag.BoolVar(&migrateOnStart, "migrate", true, "apply pending schema migrations on startup")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&logFormat, "log-format", logging.FormatJSON, "log format (json, console)")
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := logging.New(logLevel, logFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.AuthDisabled = disableAuth
	cfg.MigrateOnStart = migrateOnStart

	dbConn, err := database.NewPgRoomRepository(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("db close", zap.Error(err))
		}
	}()

	if cfg.MigrateOnStart {
		if err := database.Migrate(dbConn.DB(), logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	hub := notify.NewHub(logger, statsUpdater)
	srv := api.NewApp(mux, logger, hub, dbConn, statsUpdater, cfg)

	statsUpdater.Run()

	go hub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigs:
		logger.Info("received signal", zap.Stringer("signal", sig))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server: %w", err)
		}
	}

	shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := shutdown(shutDownCtx, logger, srv, hub, statsUpdater); err != nil {
		return errors.Join(serveErr, err)
	}

	logger.Info("shutdown complete")
	return serveErr
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type stopper interface {
	Stop()
}

// shutdown stops the HTTP server, then the availability feed, then stats.
// Stats are left running if either of the first two did not finish, since
// their goroutines may still record metrics.
func shutdown(ctx context.Context, logger *zap.Logger, srv, hub shutdowner, st stopper) error {
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
		errs = append(errs, err)
	}

	logger.Info("closing availability feed")
	if err := hub.Shutdown(ctx); err != nil {
		logger.Error("availability feed shutdown", zap.Error(err))
		errs = append(errs, fmt.Errorf("availability feed shutdown: %w", err))
	}

	if len(errs) > 0 {
		logger.Warn("leaving stats running, shutdown did not complete")
		return errors.Join(errs...)
	}

	st.Stop()
	return nil
}
