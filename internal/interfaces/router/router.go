package router

import (
	"errors"
	"net/http"

	carsvc "starauto-backend/internal/application/cars"
	uploadsvc "starauto-backend/internal/application/uploads"
	"starauto-backend/internal/config"
	"starauto-backend/internal/infrastructure/database"
	"starauto-backend/internal/infrastructure/storage"
	authhandler "starauto-backend/internal/interfaces/handlers/auth"
	carhandler "starauto-backend/internal/interfaces/handlers/cars"
	healthhandler "starauto-backend/internal/interfaces/handlers/health"
	uploadhandler "starauto-backend/internal/interfaces/handlers/uploads"
	"starauto-backend/internal/metrics"
	"starauto-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// bodyLimit fits a full 20-slot multipart batch plus form overhead.
const bodyLimit = 210 << 20

// Deps are the opened backends the app is wired to. Redis may be nil.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Blobs    storage.BlobStore
	Registry *prometheus.Registry
}

// CreateApp opens the database, Redis and blob store from cfg and builds the app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, errors.New("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseURL)
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
	} else {
		log.Warn().Msg("REDIS_URL not set: logout revocation and request stats are disabled")
	}

	blobs, err := storage.New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := NewApp(Deps{Config: cfg, DB: db, Redis: rdb, Blobs: blobs, Registry: reg})
	return app, db, rdb, nil
}

// NewApp registers middleware and routes on already-opened backends.
func NewApp(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               bodyLimit,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		AllowLocalhost: !cfg.IsProduction(),
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(d.Redis))
	app.Use(middleware.Session(middleware.SessionConfig{
		JWTSecret:  cfg.SupabaseJWTSecret,
		CookieName: cfg.SessionCookieName,
		Redis:      d.Redis,
	}))

	var m *metrics.Metrics
	if d.Registry != nil {
		m = metrics.New(d.Registry)
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	hh := &healthhandler.Handlers{
		Rdb:            d.Redis,
		StorageDriver:  cfg.StorageDriver,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		hh.DB = sqlDB
	}
	app.Get("/", hh.Live)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Post("/health/reset", hh.Reset)

	ah := &authhandler.Handlers{
		Rdb:          d.Redis,
		CookieName:   cfg.SessionCookieName,
		SecureCookie: cfg.IsProduction(),
		AdminEmails:  cfg.AdminEmails,
	}
	app.Get("/api/auth/me", ah.Me)
	app.Delete("/api/auth/logout", ah.Logout)

	admin := middleware.RequireAdmin(cfg.AdminEmails)

	uph := &uploadhandler.Handlers{Service: &uploadsvc.Service{Blobs: d.Blobs, Metrics: m}}
	app.Post("/api/upload-images", admin, uph.UploadImages)
	app.Delete("/api/delete-image", admin, uph.DeleteImage)

	ch := &carhandler.Handlers{
		Service: &carsvc.Service{
			DB:             d.DB,
			Blobs:          d.Blobs,
			Metrics:        m,
			ImageURLPolicy: cfg.ImageURLPolicy,
		},
		ImagelessGrace: cfg.ImagelessGrace,
	}
	// static paths before /api/:listingId
	app.Get("/api/getAllCars", ch.GetAllCars)
	app.Get("/api/findLastCar", ch.FindLastCar)
	app.Get("/api/findWeeklySpecial", ch.FindWeeklySpecial)
	app.Get("/api/findImagelessCars", admin, ch.FindImagelessCars)
	app.Post("/api/createCar", admin, ch.CreateCar)
	app.Get("/api/:listingId/events", admin, ch.GetCarEvents)
	app.Get("/api/:listingId", ch.GetCar)
	app.Patch("/api/:listingId", admin, ch.UpdateCar)
	app.Delete("/api/:listingId", admin, ch.DeleteCar)

	return app
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
