// Package web serves Orion's HTTP surfaces: the token and dispatch
// server used by the mobile app, and the agent's local dashboard.
package web

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// newApp builds a fiber app with the middleware shared by both servers.
func newApp(name string, origins []string, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(corsMiddleware(origins))
	app.Use(accessLog(logger))
	return app
}

// corsMiddleware allows the configured origins, or any localhost port
// when the list is empty.
func corsMiddleware(origins []string) fiber.Handler {
	if len(origins) > 0 {
		return cors.New(cors.Config{AllowOrigins: strings.Join(origins, ",")})
	}
	return cors.New(cors.Config{AllowOriginsFunc: isLocalOrigin})
}

func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return true
	}
	return false
}

func accessLog(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return err
	}
}
