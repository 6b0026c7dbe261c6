package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/insurance"
	"github.com/hms/hms/internal/domain/ipd"
	"github.com/hms/hms/internal/domain/ot"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/pharmacy"
	"github.com/hms/hms/internal/domain/scheduling"
	"github.com/hms/hms/internal/domain/support"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/fhir"
	"github.com/hms/hms/internal/platform/hmserr"
	"github.com/hms/hms/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital Management System API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HMS API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var c cache.Cache
	if cfg.RedisURL != "" {
		c, err = cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		logger.Info().Msg("connected to redis")
	} else {
		c = cache.NewMemory()
		logger.Info().Msg("REDIS_URL not set, using in-process cache")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = hmserr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	api := e.Group("/api")
	fhirGroup := e.Group("/fhir")

	rateLimit := middleware.DefaultRateLimitConfig()
	api.Use(middleware.RateLimit(rateLimit))
	fhirGroup.Use(middleware.RateLimit(rateLimit))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", func(ec echo.Context) error {
		if err := db.HealthCheck(ec.Request().Context(), pool); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down", "error": err.Error()})
		}
		return ec.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/cache", func(ec echo.Context) error {
		if err := c.Ping(ec.Request().Context()); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down", "error": err.Error()})
		}
		return ec.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// FHIR capability statement
	capability := fhir.NewCapabilityStatement("hms-server", version, []fhir.CapabilityResource{
		fhir.CreatableResource("Patient"),
		fhir.ReadOnlyResource("Schedule"),
		fhir.ReadOnlyResource("Appointment"),
		fhir.ReadOnlyResource("Invoice"),
		fhir.ReadOnlyResource("Coverage"),
		fhir.ReadOnlyResource("Claim"),
		fhir.ReadOnlyResource("Encounter"),
	})
	fhirGroup.GET("/metadata", func(c echo.Context) error {
		return c.JSON(http.StatusOK, capability)
	})

	runTx := db.PoolTxRunner(pool)

	// Patient registry
	patientSvc := patient.NewService(patient.NewRepoPG(pool))
	patient.NewHandler(patientSvc).RegisterRoutes(api, fhirGroup)

	// Scheduling
	schedSvc := scheduling.NewService(
		scheduling.NewScheduleRepoPG(pool),
		scheduling.NewBlockedTimeRepoPG(pool),
		scheduling.NewAppointmentRepoPG(pool),
		runTx, c,
		scheduling.Options{
			DefaultWindow: scheduling.Window{StartMinute: cfg.ScheduleDayStart, EndMinute: cfg.ScheduleDayEnd},
			SlotMinutes:   cfg.SlotMinutes,
		})
	scheduling.NewHandler(schedSvc).RegisterRoutes(api, fhirGroup)

	// Billing
	billingSvc := billing.NewService(billing.NewInvoiceRepoPG(pool), billing.NewPaymentRepoPG(pool), runTx)
	billing.NewHandler(billingSvc).RegisterRoutes(api, fhirGroup)

	// Insurance settles approved claims against invoices through billing.
	insuranceSvc := insurance.NewService(
		insurance.NewProviderRepoPG(pool),
		insurance.NewPolicyRepoPG(pool),
		insurance.NewClaimRepoPG(pool),
		billingSvc, runTx)
	insurance.NewHandler(insuranceSvc).RegisterRoutes(api, fhirGroup)

	// Inpatient
	ipdSvc := ipd.NewService(
		ipd.NewWardRepoPG(pool),
		ipd.NewBedRepoPG(pool),
		ipd.NewAdmissionRepoPG(pool),
		ipd.NewObservationRepoPG(pool),
		runTx)
	ipd.NewHandler(ipdSvc).RegisterRoutes(api, fhirGroup)

	// Operation theatre
	otSvc := ot.NewService(
		ot.NewTheatreRepoPG(pool),
		ot.NewSurgeryTypeRepoPG(pool),
		ot.NewBookingRepoPG(pool),
		runTx)
	ot.NewHandler(otSvc).RegisterRoutes(api)

	// Pharmacy prices dispensed medication onto draft invoices through billing.
	pharmacySvc := pharmacy.NewService(
		pharmacy.NewItemRepoPG(pool),
		pharmacy.NewDispenseRepoPG(pool),
		billingSvc, runTx)
	pharmacy.NewHandler(pharmacySvc).RegisterRoutes(api)

	// Support services
	supportSvc := support.NewService(
		support.NewHousekeepingRepoPG(pool),
		support.NewMaintenanceRepoPG(pool),
		runTx)
	support.NewHandler(supportSvc).RegisterRoutes(api)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}
