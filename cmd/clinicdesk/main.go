package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/config"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	v1 "github.com/KMahesh2005/patient-management-by-mahesh/internal/handler/v1"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/handler/web"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/mediahost"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/middleware"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/repository/postgres"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/service"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/auth"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/database"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/logger"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/metrics"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/tracer"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinicdesk",
		Short:         "Clinic patient registration and out-patient desk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(operatorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the logger every command needs.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.With(log, cfg.App), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the desk web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			return database.Migrate(db, log)
		},
	}
}

func operatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage desk operators",
	}

	var (
		displayName string
		role        string
		password    string
		mfa         bool
	)
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if password == "" {
				password = os.Getenv("OPERATOR_PASSWORD")
			}

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			m := metrics.NewCollector(cfg.App.Name)
			auditSvc := service.NewAuditService(postgres.NewAuditRepository(db), m, log)
			defer auditSvc.Shutdown()

			authSvc := service.NewAuthService(
				postgres.NewUserRepository(db),
				auth.NewJWTManager(cfg.JWT),
				session.NewMemoryStore(1, time.Minute),
				session.NewSpool(session.SpoolLimits{}, time.Minute),
				auditSvc,
				m,
				cfg.JWT.Issuer,
				log,
			)

			user, otpURL, err := authSvc.CreateOperator(cmd.Context(), service.CreateOperatorCommand{
				Username:    args[0],
				DisplayName: displayName,
				Password:    password,
				Role:        domain.Role(role),
				EnableMFA:   mfa,
			})
			if err != nil {
				var verr *service.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("operator not created: %v", verr.Fields)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %s operator %q (%s)\n", user.Role, user.Username, user.ID)
			if otpURL != "" {
				fmt.Fprintf(out, "enrol an authenticator app with:\n%s\n", otpURL)
			}
			return nil
		},
	}
	create.Flags().StringVar(&displayName, "name", "", "display name shown on records (required)")
	create.Flags().StringVar(&role, "role", string(domain.RoleReceptionist), "admin, doctor, nurse or receptionist")
	create.Flags().StringVar(&password, "password", "", "initial password; defaults to $OPERATOR_PASSWORD")
	create.Flags().BoolVar(&mfa, "mfa", false, "require a TOTP code at login")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}

	tp, err := tracer.Init(cfg.Tracing, cfg.App)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	sessions, redisClient, err := sessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	forms, err := form.NewRegistry(cfg.Forms.RegistrationMediaProfile, cfg.Forms.OutpatientMediaProfile)
	if err != nil {
		return err
	}

	m := metrics.NewCollector(cfg.App.Name)
	spool := session.NewSpool(session.SpoolLimits{
		MaxBytes:     cfg.Media.SpoolMaxBytes,
		SessionFiles: cfg.Media.SpoolSessionFiles,
		SessionBytes: cfg.Media.SpoolSessionBytes,
	}, cfg.Media.SpoolTTL)

	patientRepo := postgres.NewPatientRepository(db)
	auditSvc := service.NewAuditService(postgres.NewAuditRepository(db), m, log)
	defer auditSvc.Shutdown()

	patientSvc := service.NewPatientService(patientRepo, auditSvc, log)
	authSvc := service.NewAuthService(
		postgres.NewUserRepository(db),
		auth.NewJWTManager(cfg.JWT),
		sessions,
		spool,
		auditSvc,
		m,
		cfg.JWT.Issuer,
		log,
	)
	deskSvc := service.NewDeskService(
		forms,
		patientSvc,
		service.NewNumberingService(patientRepo, m, log),
		sessions,
		spool,
		mediahost.NewClient(cfg.Media, log),
		cfg.Media.FolderPrefix,
		loc,
		m,
		log,
	)
	exportSvc := service.NewExportService(patientRepo, auditSvc, log)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.MaxMultipartMemory = 8 << 20
	engine.SetHTMLTemplate(web.Templates())
	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(),
		middleware.NewRateLimiter("global", rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize, cfg.RateLimit.TrackedClients, m).Handler(),
	)

	engine.GET("/healthz", healthHandler(db, redisClient))
	engine.GET("/metrics", gin.WrapH(m.Handler()))

	loginLimit := middleware.NewRateLimiter(
		"login",
		rate.Every(time.Minute/time.Duration(max(cfg.RateLimit.AuthRequestsPerMinute, 1))),
		max(cfg.RateLimit.AuthRequestsPerMinute, 1),
		cfg.RateLimit.TrackedClients,
		m,
	)
	authHandler := v1.NewAuthHandler(authSvc, cfg.Session)
	dashboard := v1.NewDashboardHandler(patientSvc, forms, loc)

	v1.Routes{
		Auth:        authHandler,
		Desk:        v1.NewDeskHandler(deskSvc),
		Patients:    v1.NewPatientHandler(patientSvc, exportSvc),
		Dashboard:   dashboard,
		RequireAuth: middleware.RequireAuth(authSvc, cfg.Session.CookieName, false, log),
		LoginLimit:  loginLimit.Handler(),
	}.Register(engine)

	web.NewPages(deskSvc, dashboard, authSvc, authHandler, log).
		Register(engine, middleware.RequireAuth(authSvc, cfg.Session.CookieName, true, log))

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// sessionStore uses Redis when it is configured and process memory otherwise.
func sessionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Store, *redis.Client, error) {
	if !cfg.Redis.Enabled() {
		log.Warn("REDIS_ADDR not set; sessions are kept in memory and lost on restart")
		return session.NewMemoryStore(cfg.Session.MemoryLimit, cfg.Session.TTL), nil, nil
	}

	client, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return session.NewRedisStore(client, cfg.Session.TTL), client, nil
}

func healthHandler(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		status := http.StatusOK

		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			checks["sessions"] = "ok"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				checks["sessions"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, checks)
	}
}
