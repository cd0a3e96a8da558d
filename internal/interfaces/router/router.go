package router

import (
	"context"
	"fmt"
	"net/http"

	catalogsvc "estimate-backend/internal/application/catalog"
	estsvc "estimate-backend/internal/application/estimation"
	rc "estimate-backend/internal/catalog"
	"estimate-backend/internal/config"
	"estimate-backend/internal/infrastructure/database"
	cataloghandler "estimate-backend/internal/interfaces/handlers/catalog"
	esthandler "estimate-backend/internal/interfaces/handlers/estimates"
	healthhandler "estimate-backend/internal/interfaces/handlers/health"
	"estimate-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateApp wires the database, Redis, services and routes.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	logger := log.Logger
	est := estsvc.NewService(db, logger.With().Str("component", "estimation").Logger())
	est.DefaultOverheadRate = cfg.DefaultOverheadRate
	est.DefaultTaxRate = cfg.DefaultTaxRate

	store := database.NewCatalogRepository(db)
	cat := &catalogsvc.Service{
		Registry:  rc.NewRegistry(),
		Loader:    rc.SourceLoader{Files: rc.FileLoader{}, DB: store},
		Sources:   cfg.CatalogPaths,
		Store:     store,
		Threshold: cfg.CatalogThreshold,
		Logger:    logger.With().Str("component", "catalog").Logger(),
	}
	if rdb != nil {
		cat.Cache = &rc.Cache{Rdb: rdb}
	}
	cat.Refresh(context.Background())

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())

	admin := middleware.RequireAdminKey(cfg.HealthAdminKey)

	hh := &healthhandler.Handlers{Rdb: rdb, DB: sqlDB, Catalog: cat}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", admin, hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	eh := &esthandler.Handlers{Service: est}
	eh.Register(api)

	ch := &cataloghandler.Handlers{Service: cat}
	api.Get("/catalog/search", ch.Search)
	api.Get("/catalog/sources", ch.Sources)
	api.Post("/catalog/refresh", admin, ch.Refresh)
	api.Post("/catalog/import", admin, ch.Import)

	return app, db, rdb, nil
}

// Handler adapts the Fiber app to net/http.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
