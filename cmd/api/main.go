package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/admin"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/appointment"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/auth"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/doctor"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/health"
	promHandler "github.com/jwalitptl/clinic-scheduler/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduler/internal/router"
	appointmentService "github.com/jwalitptl/clinic-scheduler/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-scheduler/internal/service/auth"
	availabilityService "github.com/jwalitptl/clinic-scheduler/internal/service/availability"
	eventService "github.com/jwalitptl/clinic-scheduler/internal/service/event"
	userService "github.com/jwalitptl/clinic-scheduler/internal/service/user"
	jwtauth "github.com/jwalitptl/clinic-scheduler/pkg/auth"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
	"github.com/jwalitptl/clinic-scheduler/pkg/validator"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	migrateOnStart := flag.Bool("migrate", true, "apply pending migrations before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if _, err := logger.Setup(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logger")
	}

	if err := validator.RegisterGinValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	loc, err := cfg.Scheduling.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scheduling timezone")
	}

	ctx := context.Background()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database.DSN(), postgres.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if *migrateOnStart {
		if err := postgres.RunMigrations(cfg.Database.DSN()); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("scheduler", reg)

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	tx := postgres.NewTransactor(base)
	userRepo := postgres.NewUserRepository(base)
	slotRepo := postgres.NewAvailabilityRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Initialize services
	sanitizer := security.NewTextSanitizer()
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	tokens := jwtauth.NewTokenManager(jwtauth.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiry,
	})

	availabilitySvc := availabilityService.NewService(slotRepo, appointmentRepo, userRepo, m, availabilityService.Config{
		Location:       loc,
		MaxAdvanceDays: cfg.Scheduling.MaxAdvanceDays,
	})
	userSvc := userService.NewService(tx, userRepo, slotRepo, availabilitySvc, hasher, sanitizer)
	authSvc := authService.NewService(userRepo, userSvc, availabilitySvc, hasher, tokens)
	appointmentSvc := appointmentService.NewService(
		tx,
		appointmentRepo,
		slotRepo,
		userRepo,
		eventService.NewService(outboxRepo),
		sanitizer,
		m,
		appointmentService.Config{Location: loc},
	)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	// Setup router
	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		router.Handlers{
			Health:      health.NewHandler(health.Check{Name: "database", Probe: db.PingContext}),
			Auth:        auth.NewHandler(authSvc),
			Doctor:      doctor.NewHandler(availabilitySvc, userSvc),
			Appointment: appointment.NewHandler(appointmentSvc),
			Admin:       admin.NewHandler(appointmentSvc, userSvc),
			Metrics:     promHandler.New(reg).Handler(),
		},
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			RateLimit:      rate.Limit(cfg.RateLimit.RPS),
			RateBurst:      cfg.RateLimit.Burst,
			CORSConfig:     corsConfig,
			RequestTimeout: cfg.Server.RequestTimeout,
			Metrics:        m,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
