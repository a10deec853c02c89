package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noodle-soup/noodle/internal/app"
	"github.com/noodle-soup/noodle/internal/auth"
	"github.com/noodle-soup/noodle/internal/authz"
	"github.com/noodle-soup/noodle/internal/bootstrap"
	"github.com/noodle-soup/noodle/internal/catalog"
	"github.com/noodle-soup/noodle/internal/content"
	"github.com/noodle-soup/noodle/internal/files"
	"github.com/noodle-soup/noodle/internal/groups"
	"github.com/noodle-soup/noodle/internal/observability"
	"github.com/noodle-soup/noodle/internal/platform/cache"
	"github.com/noodle-soup/noodle/internal/platform/db"
	"github.com/noodle-soup/noodle/internal/platform/workerpool"
	"github.com/noodle-soup/noodle/internal/roles"
	"github.com/noodle-soup/noodle/internal/shared"
	"github.com/noodle-soup/noodle/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.PGApplySchema {
		if err := db.ApplySchema(ctx, dbpool); err != nil {
			logger.Error("apply schema", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, err := app.NewStore(ctx, cfg)
	if err != nil {
		logger.Error("open storage", slog.Any("error", err))
		os.Exit(1)
	}

	hashPool := workerpool.New(cfg.HashWorkers)
	defer hashPool.Close()
	hasher := auth.NewBcryptHasher(hashPool, cfg.BcryptCost)

	metrics := observability.NewMetrics()
	resolver := authz.NewResolver(dbpool, authz.WithObserver(metrics), authz.WithLogger(logger))

	if err := bootstrap.NewSeeder(dbpool, hasher, logger).EnsureAdmin(ctx, bootstrap.Admin{
		Email:     cfg.AdminMail,
		Password:  cfg.AdminPassword,
		Firstname: cfg.AdminFirstname,
		Lastname:  cfg.AdminLastname,
	}); err != nil {
		logger.Error("ensure admin", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authService := auth.NewService(auth.NewRepository(dbpool), hasher)
	usersService := users.NewService(users.NewRepository(dbpool), resolver, hasher)
	rolesService := roles.NewService(roles.NewRepository(dbpool), resolver)
	groupsService := groups.NewService(groups.NewRepository(dbpool), resolver)
	coursesService := catalog.NewService(catalog.NewRepository(dbpool, authz.Course), resolver)
	templatesService := catalog.NewService(catalog.NewRepository(dbpool, authz.Template), resolver)
	courseContent := content.NewService(content.NewRepository(dbpool, authz.Course), resolver)
	templateContent := content.NewService(content.NewRepository(dbpool, authz.Template), resolver)
	filesService := files.NewService(files.NewRepository(dbpool), store, resolver, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     auth.NewHandler(logger, authService, sessionManager, csrfManager),
		UsersHandler:    users.NewHandler(logger, usersService),
		RolesHandler:    roles.NewHandler(logger, rolesService),
		GroupsHandler:   groups.NewHandler(logger, groupsService),
		CoursesHandler:  catalog.NewHandler(logger, coursesService),
		CourseContent:   content.NewHandler(logger, courseContent),
		TemplateHandler: catalog.NewHandler(logger, templatesService),
		TemplateContent: content.NewHandler(logger, templateContent),
		FilesHandler:    files.NewHandler(logger, filesService, cfg.MaxUpload),
		GrantsHandler:   authz.NewHandler(logger, resolver, authz.NewGrantStore(dbpool)),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
