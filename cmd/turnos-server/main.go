package main

import (
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"turnos/internal/config"
	"turnos/internal/seed"
	"turnos/internal/store/sqlstore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "turnos-server",
		Short:         "Appointment scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, _ := cmd.Flags().GetBool("reset")

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return withDatabase(cfg, log, func(db *bun.DB) error {
				if err := sqlstore.Migrate(cmd.Context(), db, reset); err != nil {
					return err
				}
				log.Info("schema ready", slog.Bool("reset", reset))
				return nil
			})
		},
	}
	cmd.Flags().Bool("reset", false, "Drop existing tables before creating them")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo persons and turns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			schedule, err := cfg.Schedule()
			if err != nil {
				return err
			}
			return withDatabase(cfg, log, func(db *bun.DB) error {
				if err := sqlstore.Migrate(cmd.Context(), db, false); err != nil {
					return err
				}
				s := seed.New(sqlstore.NewPersonRepo(db), sqlstore.NewTurnRepo(db), schedule, log)
				_, err := s.Run(cmd.Context())
				return err
			})
		},
	}
}

func setup() (config.Config, *slog.Logger, error) {
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return config.Config{}, nil, err
	}

	log = newLogger(parseLogLevel(cfg.LogLevel))
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", "turnos-server"),
	)
}

func withDatabase(cfg config.Config, log *slog.Logger, fn func(db *bun.DB) error) error {
	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseDriver, cfg.DatabaseURL)...)
	db, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.Pool())
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseDriver, cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := sqlstore.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()
	return fn(db)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(driver, databaseURL string) []any {
	if driver == sqlstore.DriverSQLite {
		path, _, _ := strings.Cut(strings.TrimPrefix(databaseURL, "file:"), "?")
		return []any{slog.String("db_driver", driver), slog.String("db_path", path)}
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_driver", driver), slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_driver", driver),
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
