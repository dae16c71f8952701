package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/bookinghub/internal/booking"
	"github.com/geocoder89/bookinghub/internal/config"
	"github.com/geocoder89/bookinghub/internal/db"
	"github.com/geocoder89/bookinghub/internal/domain/job"
	"github.com/geocoder89/bookinghub/internal/domain/notification"
	"github.com/geocoder89/bookinghub/internal/domain/user"
	"github.com/geocoder89/bookinghub/internal/observability"
	"github.com/geocoder89/bookinghub/internal/queue/redisclient"
	"github.com/geocoder89/bookinghub/internal/queue/redisqueue"
	"github.com/geocoder89/bookinghub/internal/queue/worker"
	"github.com/geocoder89/bookinghub/internal/repo/memory"
	"github.com/geocoder89/bookinghub/internal/repo/postgres"
	"github.com/geocoder89/bookinghub/internal/repo/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Users interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
	ListProviders(ctx context.Context) ([]user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type Notifications interface {
	Create(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (notification.Notification, error)
}

type Queue interface {
	worker.JobsRepository
	Enqueue(ctx context.Context, req job.CreateRequest) (job.Job, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Ping(ctx context.Context) error
}

// Stores is the set of record stores and the job queue selected by config.
type Stores struct {
	Users         Users
	Appointments  booking.AppointmentStore
	Notifications Notifications
	Queue         Queue

	// Pool is set when either side runs on postgres.
	Pool *pgxpool.Pool

	pings   []func(context.Context) error
	closers []func() error
}

// Open connects the configured drivers. Postgres schemas are migrated
// before the stores are handed out.
func Open(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (*Stores, error) {
	s := &Stores{}
	filesURL := cfg.AppURL

	if cfg.StoreDriver == "postgres" || cfg.QueueDriver == "postgres" {
		pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.Pool = pool
		s.pings = append(s.pings, pool.Ping)
		s.closers = append(s.closers, func() error { pool.Close(); return nil })

		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			log.Info("migrations applied", "versions", applied)
		}
	}

	switch cfg.StoreDriver {
	case "postgres":
		s.Users = postgres.NewUsersRepo(s.Pool, prom, filesURL)
		s.Appointments = postgres.NewAppointmentsRepo(s.Pool, prom, filesURL)
		s.Notifications = postgres.NewNotificationsRepo(s.Pool, prom)
	case "sqlite":
		gdb, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		s.pings = append(s.pings, sqlDB.PingContext)
		s.closers = append(s.closers, sqlDB.Close)

		s.Users = sqlite.NewUsersRepo(gdb, filesURL)
		s.Appointments = sqlite.NewAppointmentsRepo(gdb, filesURL)
		s.Notifications = sqlite.NewNotificationsRepo(gdb)
	case "memory":
		users := memory.NewUsersRepo()
		s.Users = users
		s.Appointments = memory.NewAppointmentsRepo(users)
		s.Notifications = memory.NewNotificationsRepo()
	default:
		s.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	switch cfg.QueueDriver {
	case "postgres":
		s.Queue = postgres.NewJobsRepo(s.Pool, prom)
	case "redis":
		client := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = client.Close()
			s.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		q := redisqueue.New(client, prom)
		s.Queue = q
		s.closers = append(s.closers, q.Close)
	case "memory":
		s.Queue = memory.NewJobsRepo()
	default:
		s.Close()
		return nil, fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
	}
	s.pings = append(s.pings, s.Queue.Ping)

	return s, nil
}

// Ping checks every backing connection. It satisfies worker.ReadinessDeps.
func (s *Stores) Ping(ctx context.Context) error {
	var errs []error
	for _, ping := range s.pings {
		if err := ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// SeedDemo creates a provider and a customer when no provider exists yet,
// so a fresh dev environment can book right away.
func (s *Stores) SeedDemo(ctx context.Context, log *slog.Logger) error {
	providers, err := s.Users.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}
	if len(providers) > 0 {
		return nil
	}

	seed := []user.User{
		{Name: "Diego Fernandes", Email: "diego@gobarber.com", Provider: true},
		{Name: "Cliente Demo", Email: "cliente@gobarber.com"},
	}
	for _, u := range seed {
		created, err := s.Users.Create(ctx, u)
		if err != nil {
			return fmt.Errorf("seed %s: %w", u.Email, err)
		}
		log.Info("seeded user", "user_id", created.ID, "email", created.Email, "provider", created.Provider)
	}
	return nil
}
