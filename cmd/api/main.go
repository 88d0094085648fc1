package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/config"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/hris-attendance-go/internal/handler/http"
	"github.com/cmlabs-hris/hris-attendance-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-attendance-go/internal/repository/memory"
	"github.com/cmlabs-hris/hris-attendance-go/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/hris-attendance-go/internal/service/attendance"
	notificationService "github.com/cmlabs-hris/hris-attendance-go/internal/service/notification"
	reportService "github.com/cmlabs-hris/hris-attendance-go/internal/service/report"
	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type stores struct {
	users    user.UserRepository
	sessions attendance.SessionRepository
	leaves   leave.LeaveRepository
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-attendance"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	hub := sse.NewHub()
	notifSvc := notificationService.NewNotificationService(hub, notificationService.Config{}, logger)
	defer notifSvc.Stop()

	loc := cfg.Location()
	resolver := attendanceService.NewResolver(cfg.LeaveConflictPolicy(), loc)
	materializer := attendanceService.NewMaterializer(st.sessions, st.leaves, resolver, collector)

	attendanceSvc := attendanceService.NewAttendanceService(
		st.users,
		st.sessions,
		st.leaves,
		resolver,
		materializer,
		cfg.ShiftPolicy(),
		attendanceService.WithLogger(logger),
		attendanceService.WithMetrics(collector),
		attendanceService.WithPublisher(notifSvc),
	)
	reportSvc := reportService.NewReportService(
		st.users,
		st.sessions,
		st.leaves,
		resolver,
		materializer,
		reportService.Config{
			Denominator: cfg.RateDenominator(),
			CacheTTL:    cfg.Report.CacheTTL,
		},
		reportService.WithLogger(logger),
		reportService.WithMetrics(collector),
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	if cfg.App.StoreDriver == config.StoreDriverMemory && cfg.App.Env == "development" {
		token, _, err := JWTService.GenerateAccessToken(fixtures.AdminID, "ayu.pratama@demo.local", user.RoleAdmin)
		if err == nil {
			logger.Info("demo admin access token", slog.String("token", token))
		}
	}

	scheduler := cron.NewScheduler(logger)
	cron.NewAttendanceJobs(st.sessions, collector, logger).RegisterJobs(scheduler)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		PerMinute: cfg.RateLimit.PerMinute,
		Burst:     cfg.RateLimit.Burst,
	})

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Logger:         logger,
			LogLevel:       cfg.SlogLevel(),
			Metrics:        metrics.Handler(registry),
			RateLimiter:    rateLimiter,
		},
		JWTService,
		appHTTP.NewAttendanceHandler(attendanceSvc),
		appHTTP.NewReportHandler(reportSvc),
		appHTTP.NewNotificationHandler(notifSvc, JWTService),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr), slog.String("store", cfg.App.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.App.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		if err := fixtures.Demo(store, time.Now(), cfg.Location()); err != nil {
			return nil, fmt.Errorf("seeding demo data: %w", err)
		}
		logger.Warn("using in-memory store with demo data, nothing is persisted")
		return &stores{users: store, sessions: store, leaves: store, close: func() {}}, nil

	default:
		dsn := cfg.DatabaseURL()
		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(dsn); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			logger.Info("database migrations applied")
		}

		db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		return &stores{
			users:    postgresql.NewUserRepository(db),
			sessions: postgresql.NewSessionRepository(db),
			leaves:   postgresql.NewLeaveRepository(db),
			close:    db.Close,
		}, nil
	}
}
