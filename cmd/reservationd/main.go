package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/example/classroom-reservation/internal/application"
	"github.com/example/classroom-reservation/internal/config"
	httptransport "github.com/example/classroom-reservation/internal/http"
	"github.com/example/classroom-reservation/internal/logging"
	"github.com/example/classroom-reservation/internal/monitoring"
	"github.com/example/classroom-reservation/internal/notifier"
	"github.com/example/classroom-reservation/internal/persistence/sqlite"
	"github.com/example/classroom-reservation/internal/realtime"
)

func main() {
	logger := logging.NewLogger(os.Stdout, "info")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = logging.NewLogger(os.Stdout, cfg.LogLevel)

	db, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	userRepo := sqlite.NewUserRepository(db)
	classroomRepo := sqlite.NewClassroomRepository(db)
	reservationRepo := sqlite.NewReservationRepository(db)
	waitlistRepo := sqlite.NewWaitlistRepository(db)
	notificationRepo := sqlite.NewNotificationRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)

	var publisher notifier.Publisher = notifier.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := notifier.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if cerr := kafkaPublisher.Close(); cerr != nil {
				logger.Error("failed to close event publisher", "error", cerr)
			}
		}()
		publisher = kafkaPublisher
		logger.Info("publishing reservation events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var broadcaster realtime.Broadcaster = realtime.NopBroadcaster{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.Error("failed to close redis client", "error", cerr)
			}
		}()
		broadcaster = realtime.NewRedisBroadcaster(redisClient, cfg.RedisChannel)
		logger.Info("broadcasting slot changes", "addr", cfg.RedisAddr, "channel_prefix", cfg.RedisChannel)
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	waitlistService := application.NewWaitlistService(application.WaitlistServiceOptions{
		Waitlists:     waitlistRepo,
		Reservations:  reservationRepo,
		Classrooms:    classroomRepo,
		Notifications: notificationRepo,
		Publisher:     publisher,
		Broadcaster:   broadcaster,
		Metrics:       metrics,
		IDGenerator:   idGenerator,
		Now:           now,
		Logger:        logger,
	})
	reservationService := application.NewReservationService(application.ReservationServiceOptions{
		Reservations:  reservationRepo,
		Classrooms:    classroomRepo,
		Users:         userRepo,
		Filler:        waitlistService,
		Publisher:     publisher,
		Broadcaster:   broadcaster,
		Metrics:       metrics,
		IDGenerator:   idGenerator,
		Now:           now,
		MaxActive:     cfg.MaxActive,
		AdvanceWindow: cfg.AdvanceWindow,
		Logger:        logger,
	})
	classroomService := application.NewClassroomService(classroomRepo, idGenerator, now, logger)
	userService := application.NewUserService(userRepo, application.HashPassword, idGenerator, now, logger)
	authService := application.NewAuthService(userRepo, sessionRepo, application.VerifyPassword, tokenGenerator, now, cfg.SessionTTL, logger)
	notificationService := application.NewNotificationService(notificationRepo)

	reminderService := application.NewReminderService(application.ReminderServiceOptions{
		Reservations:  reservationRepo,
		Notifications: notificationRepo,
		Publisher:     publisher,
		Metrics:       metrics,
		IDGenerator:   idGenerator,
		Now:           now,
		Lead:          cfg.ReminderLead,
		Logger:        logger,
	})
	go reminderService.Run(ctx, cfg.ReminderInterval)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(authService, logger),
		Users:         httptransport.NewUserHandler(userService, logger),
		Classrooms:    httptransport.NewClassroomHandler(classroomService, reservationService, logger),
		Reservations:  httptransport.NewReservationHandler(reservationService, logger),
		Waitlist:      httptransport.NewWaitlistHandler(waitlistService, logger),
		Notifications: httptransport.NewNotificationHandler(notificationService, logger),
		Statistics:    httptransport.NewStatisticsHandler(reservationService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.SessionGuard(authService, logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server encountered error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	logger.Info("reservation API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
