package bootstrap

import (
	"starauto-backend/internal/config"
	"starauto-backend/internal/interfaces/router"
	"starauto-backend/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless deploys (api/ imports this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup("starauto-api", cfg.LogLevel, cfg.LogFormat, nil)
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
