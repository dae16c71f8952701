package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/bookinghub/internal/auth"
	"github.com/geocoder89/bookinghub/internal/booking"
	"github.com/geocoder89/bookinghub/internal/clock"
	"github.com/geocoder89/bookinghub/internal/config"
	httpx "github.com/geocoder89/bookinghub/internal/http"
	"github.com/geocoder89/bookinghub/internal/http/middlewares"
	"github.com/geocoder89/bookinghub/internal/jobs"
	"github.com/geocoder89/bookinghub/internal/mail"
	"github.com/geocoder89/bookinghub/internal/notifications"
	"github.com/geocoder89/bookinghub/internal/observability"
	"github.com/geocoder89/bookinghub/internal/queue/worker"
	"github.com/geocoder89/bookinghub/internal/repo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env, "bookinghub-api")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, "bookinghub-api", cfg.OTLPEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				sctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	stores, err := repo.Open(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer stores.Close()

	if cfg.Env == "dev" {
		if err := stores.SeedDemo(ctx, log); err != nil {
			log.Warn("demo seed failed", "err", err)
		}
	}

	loc := cfg.Location()
	dispatcher := notifications.NewDispatcher(stores.Users, stores.Notifications, stores.Queue, notifications.Config{
		Location: loc,
	}, log)

	svc := booking.NewService(booking.Deps{
		Users:        stores.Users,
		Appointments: stores.Appointments,
		Notifier:     dispatcher,
		Clock:        clock.System{},
		Location:     loc,
		Log:          log,
		Metrics:      prom,
	})

	tokens := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	limiter := middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	router := httpx.NewRouter(log, httpx.Deps{
		Booking:       svc,
		Users:         stores.Users,
		Notifications: stores.Notifications,
		Tokens:        tokens,
		Limiter:       limiter,
		Ping:          stores.Ping,
		Prom:          prom,
		Gatherer:      reg,
	}, cfg)

	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				limiter.Sweep()
			}
		}
	}()

	// the memory queue lives in this process, so its worker does too
	workerDone := make(chan struct{})
	if cfg.QueueDriver == "memory" {
		sender, err := mail.NewSender(mailConfig(cfg), log)
		if err != nil {
			log.Error("mail init failed", "err", err)
			os.Exit(1)
		}
		wk := worker.New(worker.Config{
			PollInterval: cfg.WorkerPollInterval,
			Concurrency:  cfg.WorkerConcurrency,
		}, stores.Queue, log, nil, prom)
		jobs.Register(wk, sender)

		go func() {
			defer close(workerDone)
			if err := wk.Run(ctx); err != nil {
				log.Error("in-process worker stopped", "err", err)
			}
		}()
	} else {
		close(workerDone)
	}

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "queue", cfg.QueueDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		<-workerDone
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func mailConfig(cfg config.Config) mail.Config {
	return mail.Config{
		Driver: cfg.Mail.Driver,
		Host:   cfg.Mail.Host,
		Port:   cfg.Mail.Port,
		User:   cfg.Mail.User,
		Pass:   cfg.Mail.Pass,
		Secure: cfg.Mail.Secure,
		From:   cfg.Mail.From,
	}
}
