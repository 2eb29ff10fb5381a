package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"drive-schedule-service/internal/config"
	availCreate "drive-schedule-service/internal/http-server/handlers/availability/create"
	availGet "drive-schedule-service/internal/http-server/handlers/availability/get"
	availUpdate "drive-schedule-service/internal/http-server/handlers/availability/update"
	"drive-schedule-service/internal/http-server/handlers/autoschedule/suggest"
	remindersGet "drive-schedule-service/internal/http-server/handlers/reminders/get"
	remindersSweep "drive-schedule-service/internal/http-server/handlers/reminders/sweep"
	scheduleConflicts "drive-schedule-service/internal/http-server/handlers/schedule/conflicts"
	scheduleCreate "drive-schedule-service/internal/http-server/handlers/schedule/create"
	scheduleGet "drive-schedule-service/internal/http-server/handlers/schedule/get"
	scheduleReschedule "drive-schedule-service/internal/http-server/handlers/schedule/reschedule"
	scheduleStatus "drive-schedule-service/internal/http-server/handlers/schedule/status"
	"drive-schedule-service/internal/lock"
	"drive-schedule-service/internal/notify"
	svc "drive-schedule-service/internal/service"
	"drive-schedule-service/internal/storage/postgres"
	"drive-schedule-service/pkg/handlers/slogpretty"
	"drive-schedule-service/pkg/middleware/mwLogger"
	"drive-schedule-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err := storage.Migrate("migrations"); err != nil {
		log.Error("Failed to apply migrations", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	dispatcher := notify.NewLogDispatcher(log)

	service := svc.NewService(log, storage, locker, dispatcher, svc.SystemClock{}, svc.Config{
		HorizonDays:      cfg.Scheduler.HorizonDays,
		StepMinutes:      cfg.Scheduler.StepMinutes,
		ReminderOffsets:  cfg.Reminders.Offsets,
		ReminderChannels: cfg.Reminders.Channels,
		SweepLimit:       cfg.Reminders.SweepLimit,
	})

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Availability
	router.Get("/availability", availGet.New(log, service))
	router.Post("/availability", availCreate.New(log, service))
	router.Put("/availability", availUpdate.New(log, service))

	// Schedule
	router.Get("/schedule", scheduleGet.New(log, service))
	router.Get("/schedule/{id}", scheduleGet.New(log, service))
	router.Post("/schedule", scheduleCreate.New(log, service))
	router.Put("/schedule/{id}/status", scheduleStatus.New(log, service))
	router.Post("/schedule/{id}/reschedule", scheduleReschedule.New(log, service))
	router.Post("/schedule/check-conflicts", scheduleConflicts.New(log, service))
	router.Get("/schedule/{id}/reminders", remindersGet.New(log, service))

	// Auto-scheduling
	router.Post("/auto-schedule", suggest.New(log, service))

	// Cron
	router.Post("/reminders/sweep", remindersSweep.New(log, service, cfg.Reminders.SweepSecret))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if err := storage.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := locker.Close(); err != nil {
		log.Error("Failed to close locker", sl.Err(err))
	} else {
		log.Info("Locker closed")
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
