// Package server exposes the trade core over an authenticated JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/deckbinder/deckbinder/internal/config"
	"github.com/deckbinder/deckbinder/internal/database"
	"github.com/deckbinder/deckbinder/internal/database/repositories"
	"github.com/deckbinder/deckbinder/internal/trade"
)

type Server struct {
	app           *fiber.App
	cfg           config.WebConfig
	db            *database.DB
	trades        *trade.Service
	users         repositories.UserRepository
	notifications repositories.NotificationRepository
}

func New(
	cfg config.WebConfig,
	db *database.DB,
	trades *trade.Service,
	users repositories.UserRepository,
	notifications repositories.NotificationRepository,
) *Server {
	s := &Server{
		cfg:           cfg,
		db:            db,
		trades:        trades,
		users:         users,
		notifications: notifications,
	}

	app := fiber.New(fiber.Config{
		AppName:      "Deckbinder API",
		ServerHeader: "Deckbinder",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(SecurityHeaders())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(LoggingMiddleware())

	s.app = app
	s.setupRoutes()
	return s
}

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	s.app.Get("/api/health", s.HealthCheck)

	api := s.app.Group("/api", s.AuthRequired())

	api.Post("/sessions", s.SessionsCreate)
	api.Get("/sessions", s.SessionsList)
	api.Post("/sessions/join", s.SessionsJoin)
	api.Get("/sessions/:code", s.SessionsDetail)
	api.Get("/sessions/:code/offers", s.SessionsOffers)
	api.Put("/sessions/:code/selection", s.SessionsSelection)
	api.Put("/sessions/:code/acceptance", s.SessionsAcceptance)
	api.Post("/sessions/:code/complete", s.SessionsComplete)
	api.Post("/sessions/:code/message", s.SessionsMessage)
	api.Delete("/sessions/:code", s.SessionsDelete)

	api.Get("/history", s.HistoryList)
	api.Get("/history/:id", s.HistoryDetail)

	api.Get("/notifications", s.NotificationsList)
	api.Post("/notifications/read", s.NotificationsMarkRead)

	s.app.Use(func(c *fiber.Ctx) error {
		return SendError(c, fiber.StatusNotFound, "NOT_FOUND", "The requested endpoint does not exist")
	})
}

// errorHandler translates the trade error taxonomy and Fiber errors into the
// uniform JSON envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return SendError(c, fiberErr.Code, "ERROR", fiberErr.Message)
	case errors.Is(err, trade.ErrNotFound):
		return SendError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, trade.ErrForbidden):
		return SendError(c, fiber.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, trade.ErrInvalidState):
		return SendError(c, fiber.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, trade.ErrInvariantViolation):
		return SendError(c, fiber.StatusConflict, "INVARIANT_VIOLATION", err.Error())
	default:
		slog.Error("Unhandled request error",
			slog.String("type", "api"),
			slog.String("path", c.Path()),
			slog.Any("error", err))
		return SendError(c, fiber.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal Server Error")
	}
}

func (s *Server) Listen() error {
	address := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	slog.Info("Starting API server", slog.String("address", address))
	return s.app.Listen(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
