package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"turnos/internal/domain"
	"turnos/internal/export"
	"turnos/internal/store/sqlstore"
)

type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	GRPCRequestTimeout time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           string
	CORSOrigins        []string

	DatabaseDriver    string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	ScheduleStart      int
	ScheduleEnd        int
	ScheduleInterval   int
	States             []string
	StrictSlots        bool
	EnforceExclusivity bool

	PenaltyWindowDays   int
	PenaltyMaxCancelled int
	ExportDelimiter     rune
	ExportStripAccents  bool
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TURNOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("grpc.request_timeout", "10s")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("database.driver", sqlstore.DriverSQLite)
	v.SetDefault("database.url", "file:turnos.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("schedule.start", 9)
	v.SetDefault("schedule.end", 17)
	v.SetDefault("schedule.interval", 30)
	v.SetDefault("schedule.states", strings.Join(domain.DefaultStates, ","))
	v.SetDefault("schedule.strict_slots", true)
	v.SetDefault("schedule.enforce_exclusivity", false)
	v.SetDefault("penalty.window_days", 182)
	v.SetDefault("penalty.max_cancellations", domain.DefaultMaxCancellations)
	v.SetDefault("export.delimiter", ",")
	v.SetDefault("export.strip_accents", false)

	_ = v.BindEnv("http.addr", "TURNOS_HTTP_ADDR", "HTTP_ADDR")
	_ = v.BindEnv("grpc.addr", "TURNOS_GRPC_ADDR", "GRPC_ADDR")
	_ = v.BindEnv("grpc.request_timeout", "TURNOS_GRPC_REQUEST_TIMEOUT")
	_ = v.BindEnv("shutdown.timeout", "TURNOS_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "TURNOS_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("cors.origins", "TURNOS_CORS_ORIGINS")
	_ = v.BindEnv("database.driver", "TURNOS_DATABASE_DRIVER")
	_ = v.BindEnv("database.url", "TURNOS_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.max_open_conns", "TURNOS_DATABASE_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "TURNOS_DATABASE_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "TURNOS_DATABASE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "TURNOS_DATABASE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("schedule.start", "TURNOS_SCHEDULE_START", "HORARIO_INICIO")
	_ = v.BindEnv("schedule.end", "TURNOS_SCHEDULE_END", "HORARIO_FIN")
	_ = v.BindEnv("schedule.interval", "TURNOS_SCHEDULE_INTERVAL", "INTERVALO_MINUTOS")
	_ = v.BindEnv("schedule.states", "TURNOS_SCHEDULE_STATES", "ESTADOS")
	_ = v.BindEnv("schedule.strict_slots", "TURNOS_SCHEDULE_STRICT_SLOTS")
	_ = v.BindEnv("schedule.enforce_exclusivity", "TURNOS_SCHEDULE_ENFORCE_EXCLUSIVITY")
	_ = v.BindEnv("penalty.window_days", "TURNOS_PENALTY_WINDOW_DAYS")
	_ = v.BindEnv("penalty.max_cancellations", "TURNOS_PENALTY_MAX_CANCELLATIONS")
	_ = v.BindEnv("export.delimiter", "TURNOS_EXPORT_DELIMITER")
	_ = v.BindEnv("export.strip_accents", "TURNOS_EXPORT_STRIP_ACCENTS")

	grpcTimeout, err := time.ParseDuration(v.GetString("grpc.request_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("grpc.request_timeout: %w", err)
	}
	shutdownTimeout, err := time.ParseDuration(v.GetString("shutdown.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("shutdown.timeout: %w", err)
	}
	connMaxLifetime, err := time.ParseDuration(v.GetString("database.conn_max_lifetime"))
	if err != nil {
		return Config{}, fmt.Errorf("database.conn_max_lifetime: %w", err)
	}
	connMaxIdleTime, err := time.ParseDuration(v.GetString("database.conn_max_idle_time"))
	if err != nil {
		return Config{}, fmt.Errorf("database.conn_max_idle_time: %w", err)
	}

	delimiter, err := parseDelimiter(v.GetString("export.delimiter"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddr:           strings.TrimSpace(v.GetString("http.addr")),
		GRPCAddr:           strings.TrimSpace(v.GetString("grpc.addr")),
		GRPCRequestTimeout: grpcTimeout,
		ShutdownTimeout:    shutdownTimeout,
		LogLevel:           v.GetString("log.level"),
		CORSOrigins:        splitList(v.GetString("cors.origins")),

		DatabaseDriver:    strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:       v.GetString("database.url"),
		DBMaxOpenConns:    v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:    v.GetInt("database.max_idle_conns"),
		DBConnMaxLifetime: connMaxLifetime,
		DBConnMaxIdleTime: connMaxIdleTime,

		ScheduleStart:      v.GetInt("schedule.start"),
		ScheduleEnd:        v.GetInt("schedule.end"),
		ScheduleInterval:   v.GetInt("schedule.interval"),
		States:             splitList(v.GetString("schedule.states")),
		StrictSlots:        v.GetBool("schedule.strict_slots"),
		EnforceExclusivity: v.GetBool("schedule.enforce_exclusivity"),

		PenaltyWindowDays:   v.GetInt("penalty.window_days"),
		PenaltyMaxCancelled: v.GetInt("penalty.max_cancellations"),
		ExportDelimiter:     delimiter,
		ExportStripAccents:  v.GetBool("export.strip_accents"),
	}

	if cfg.PenaltyWindowDays < 0 {
		return Config{}, errors.New("penalty.window_days must not be negative")
	}
	if cfg.PenaltyMaxCancelled < 1 {
		return Config{}, errors.New("penalty.max_cancellations must be at least 1")
	}
	return cfg, nil
}

// Schedule builds the slot grid and state vocabulary.
func (c Config) Schedule() (domain.Schedule, error) {
	var opts []domain.ScheduleOption
	if !c.StrictSlots {
		opts = append(opts, domain.WithLenientSlots())
	}
	return domain.NewSchedule(c.ScheduleStart, c.ScheduleEnd, c.ScheduleInterval, c.States, opts...)
}

func (c Config) CancellationPolicy() domain.CancellationPolicy {
	return domain.CancellationPolicy{
		Window: time.Duration(c.PenaltyWindowDays) * 24 * time.Hour,
		Limit:  c.PenaltyMaxCancelled,
	}
}

func (c Config) Pool() sqlstore.PoolConfig {
	return sqlstore.PoolConfig{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		ConnMaxIdleTime: c.DBConnMaxIdleTime,
	}
}

func (c Config) Export() export.Options {
	return export.Options{Delimiter: c.ExportDelimiter, StripAccents: c.ExportStripAccents}
}

func parseDelimiter(raw string) (rune, error) {
	switch raw {
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(raw) != 1 {
		return 0, fmt.Errorf("export.delimiter must be a single character, got %q", raw)
	}
	r, _ := utf8.DecodeRuneInString(raw)
	return r, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
