package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string
	Port int

	StoreDriver string
	DBURL       string
	DBMaxConns  int32
	SQLitePath  string

	QueueDriver   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret           string
	JWTAccessTTLMinutes int

	Mail MailConfig

	DisplayTimezone string
	AppURL          string

	OTLPEndpoint string
	CORSOrigins  []string

	RateLimitRPS   float64
	RateLimitBurst int

	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerHealthPort   int
}

type MailConfig struct {
	Driver string
	Host   string
	Port   int
	User   string
	Pass   string
	Secure bool
	From   string
}

var ErrInvalidConfig = errors.New("invalid config")

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("port", 3333)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "bookinghub")
	v.SetDefault("db.password", "bookinghub")
	v.SetDefault("db.name", "bookinghub")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("sqlite.path", "./bookinghub.db")
	v.SetDefault("queue.driver", "postgres")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl_minutes", 60*24*7)
	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.host", "127.0.0.1")
	v.SetDefault("mail.port", 1025)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.pass", "")
	v.SetDefault("mail.secure", false)
	v.SetDefault("mail.from", "Equipe GoBarber <noreply@gobarber.com>")
	v.SetDefault("display.timezone", "America/Sao_Paulo")
	v.SetDefault("app.url", "http://localhost:3333")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("cors.origins", "http://localhost:3000")
	v.SetDefault("rate_limit.rps", 5.0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.poll_interval", "1s")
	v.SetDefault("worker.health_port", 8081)

	_ = v.BindEnv("app.env", "APP_ENV")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("store.driver", "STORE_DRIVER")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.max_conns", "DB_MAX_CONNS")
	_ = v.BindEnv("db.host", "DB_HOST")
	_ = v.BindEnv("db.port", "DB_PORT")
	_ = v.BindEnv("db.user", "DB_USER")
	_ = v.BindEnv("db.password", "DB_PASSWORD")
	_ = v.BindEnv("db.name", "DB_NAME")
	_ = v.BindEnv("db.sslmode", "DB_SSLMODE")
	_ = v.BindEnv("sqlite.path", "SQLITE_PATH")
	_ = v.BindEnv("queue.driver", "QUEUE_DRIVER")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.access_ttl_minutes", "JWT_ACCESS_TTL_MINUTES")
	_ = v.BindEnv("mail.driver", "MAIL_DRIVER")
	_ = v.BindEnv("mail.host", "MAIL_HOST")
	_ = v.BindEnv("mail.port", "MAIL_PORT")
	_ = v.BindEnv("mail.user", "MAIL_USER")
	_ = v.BindEnv("mail.pass", "MAIL_PASS")
	_ = v.BindEnv("mail.secure", "MAIL_SECURE")
	_ = v.BindEnv("mail.from", "MAIL_FROM")
	_ = v.BindEnv("display.timezone", "DISPLAY_TIMEZONE")
	_ = v.BindEnv("app.url", "APP_URL")
	_ = v.BindEnv("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("cors.origins", "CORS_ORIGINS")
	_ = v.BindEnv("rate_limit.rps", "RATE_LIMIT_RPS")
	_ = v.BindEnv("rate_limit.burst", "RATE_LIMIT_BURST")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.poll_interval", "WORKER_POLL_INTERVAL")
	_ = v.BindEnv("worker.health_port", "WORKER_HEALTH_PORT")

	return v
}

func FromViper(v *viper.Viper) (Config, error) {
	poll, err := time.ParseDuration(v.GetString("worker.poll_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: WORKER_POLL_INTERVAL: %v", ErrInvalidConfig, err)
	}

	cfg := Config{
		Env:  v.GetString("app.env"),
		Port: v.GetInt("port"),

		StoreDriver: strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
		DBURL:       v.GetString("database.url"),
		DBMaxConns:  v.GetInt32("database.max_conns"),
		SQLitePath:  v.GetString("sqlite.path"),

		QueueDriver:   strings.ToLower(strings.TrimSpace(v.GetString("queue.driver"))),
		RedisAddr:     v.GetString("redis.addr"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.db"),

		JWTSecret:           v.GetString("jwt.secret"),
		JWTAccessTTLMinutes: v.GetInt("jwt.access_ttl_minutes"),

		Mail: MailConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("mail.driver"))),
			Host:   v.GetString("mail.host"),
			Port:   v.GetInt("mail.port"),
			User:   v.GetString("mail.user"),
			Pass:   v.GetString("mail.pass"),
			Secure: v.GetBool("mail.secure"),
			From:   v.GetString("mail.from"),
		},

		DisplayTimezone: v.GetString("display.timezone"),
		AppURL:          strings.TrimRight(v.GetString("app.url"), "/"),

		OTLPEndpoint: v.GetString("otel.endpoint"),
		CORSOrigins:  splitList(v.GetString("cors.origins")),

		RateLimitRPS:   v.GetFloat64("rate_limit.rps"),
		RateLimitBurst: v.GetInt("rate_limit.burst"),

		WorkerConcurrency:  v.GetInt("worker.concurrency"),
		WorkerPollInterval: poll,
		WorkerHealthPort:   v.GetInt("worker.health_port"),
	}

	if cfg.DBURL == "" {
		cfg.DBURL = buildDBURL(v)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: STORE_DRIVER must be postgres, sqlite or memory, got %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch c.QueueDriver {
	case "postgres", "redis", "memory":
	default:
		return fmt.Errorf("%w: QUEUE_DRIVER must be postgres, redis or memory, got %q", ErrInvalidConfig, c.QueueDriver)
	}
	if c.QueueDriver == "postgres" && c.StoreDriver != "postgres" {
		return fmt.Errorf("%w: QUEUE_DRIVER=postgres needs STORE_DRIVER=postgres", ErrInvalidConfig)
	}

	switch c.Mail.Driver {
	case "smtp", "log":
	default:
		return fmt.Errorf("%w: MAIL_DRIVER must be smtp or log, got %q", ErrInvalidConfig, c.Mail.Driver)
	}

	if c.Env != "dev" && c.Env != "test" && c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required outside dev", ErrInvalidConfig)
	}

	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return fmt.Errorf("%w: DISPLAY_TIMEZONE: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Location resolves DisplayTimezone. Validate has already checked it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func buildDBURL(v *viper.Viper) string {
	return "postgres://" + v.GetString("db.user") + ":" + v.GetString("db.password") +
		"@" + v.GetString("db.host") + ":" + v.GetString("db.port") +
		"/" + v.GetString("db.name") + "?sslmode=" + v.GetString("db.sslmode")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
