package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/CartMateCo/grocery-service/config"
	"github.com/CartMateCo/grocery-service/internal/core/evaluation"
	"github.com/CartMateCo/grocery-service/internal/core/grocery"
	"github.com/CartMateCo/grocery-service/internal/core/sessions"
	"github.com/CartMateCo/grocery-service/pkg/telemetry"
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogfiber "github.com/samber/slog-fiber"
)

func initGlobalMiddlewares(app *fiber.App, cfg *config.Config) {
	app.Use(
		compress.New(compress.Config{
			Level: compress.LevelDefault,
		}),

		slogfiber.NewWithFilters(slog.Default(), slogfiber.IgnorePath("/health")),

		cors.New(cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		}),

		favicon.New(),
		limiter.New(limiter.Config{
			Max:               cfg.RateLimitMax,
			Expiration:        time.Duration(cfg.RateLimitWindow) * time.Second,
			LimiterMiddleware: limiter.SlidingWindow{},
		}),
	)

	app.Use(otelfiber.Middleware())
}

type utteranceRequest struct {
	Utterance      string `json:"utterance"`
	UsualGroceries string `json:"usualGroceries"`
}

type evaluateRequest struct {
	Actual         []grocery.GroceryItem `json:"actual"`
	Expected       []grocery.GroceryItem `json:"expected"`
	ExactOnly      bool                  `json:"exactMatchesOnly"`
	UsualGroceries string                `json:"usualGroceries"`
}

func (s *Server) registerHttpRoutes() {
	app := s.app

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "timestamp": time.Now().Unix()})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	apiRoutes := app.Group("/v1")

	apiRoutes.Post("/lists", func(c *fiber.Ctx) error {
		session := s.store.Create()
		if telemetry.ListSessions != nil {
			telemetry.ListSessions.Add(c.UserContext(), 1)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	apiRoutes.Get("/lists/:id", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid list id"})
		}

		session, err := s.store.Get(id)
		if err != nil {
			return notFoundOrError(c, err)
		}
		return c.JSON(session)
	})

	apiRoutes.Delete("/lists/:id", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid list id"})
		}

		if err := s.store.Delete(id); err != nil {
			return notFoundOrError(c, err)
		}
		if telemetry.ListSessions != nil {
			telemetry.ListSessions.Add(c.UserContext(), -1)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Apply pre-extracted action records to a list.
	apiRoutes.Post("/lists/:id/actions", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid list id"})
		}

		records, err := grocery.DecodeActionRecords(c.Body())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		session, err := s.store.Get(id)
		if err != nil {
			return notFoundOrError(c, err)
		}

		updated := s.reconciler.ApplyActions(c.UserContext(), session.Items, records)
		session, err = s.store.Replace(id, updated)
		if err != nil {
			return notFoundOrError(c, err)
		}

		if telemetry.ListOperations != nil {
			telemetry.ListOperations.Add(c.UserContext(), 1)
		}
		if telemetry.ActionsApplied != nil {
			telemetry.ActionsApplied.Add(c.UserContext(), int64(len(records)))
		}
		return c.JSON(session)
	})

	// Extract action records from a natural-language utterance, then apply
	// them to the list.
	apiRoutes.Post("/lists/:id/utterance", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid list id"})
		}

		var req utteranceRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Utterance == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "utterance is required"})
		}

		session, err := s.store.Get(id)
		if err != nil {
			return notFoundOrError(c, err)
		}

		ctx, cancel := contextWithEvaluationTimeout(c, s.cfg)
		defer cancel()

		records, err := s.extractor.ExtractActions(ctx, req.Utterance, req.UsualGroceries)
		if err != nil {
			telemetry.AddError(c.UserContext())
			slog.Error("Utterance extraction failed",
				"component", "http_handler",
				"endpoint", "/v1/lists/:id/utterance",
				"error", err.Error())
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "extraction failed"})
		}

		updated := s.reconciler.ApplyActions(c.UserContext(), session.Items, records)
		session, err = s.store.Replace(id, updated)
		if err != nil {
			return notFoundOrError(c, err)
		}

		if telemetry.ListOperations != nil {
			telemetry.ListOperations.Add(c.UserContext(), 1)
		}
		if telemetry.ActionsApplied != nil {
			telemetry.ActionsApplied.Add(c.UserContext(), int64(len(records)))
		}
		return c.JSON(fiber.Map{"session": session, "actions": records})
	})

	// Score an actual list against an expected one.
	apiRoutes.Post("/evaluate", func(c *fiber.Ctx) error {
		var req evaluateRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		semanticCfg := s.cfg.GetSemanticConfig()
		opts := evaluation.Options{
			EnableSemanticComparison: semanticCfg.Enabled,
			ExactMatchesOnly:         req.ExactOnly,
			UsualGroceries:           req.UsualGroceries,
		}

		ctx, cancel := contextWithEvaluationTimeout(c, s.cfg)
		defer cancel()

		result, err := s.evaluator.Evaluate(ctx, req.Actual, req.Expected, opts)
		if err != nil {
			telemetry.AddError(c.UserContext())
			slog.Error("Evaluation failed",
				"component", "http_handler",
				"endpoint", "/v1/evaluate",
				"error", err.Error())
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "evaluation failed"})
		}

		return c.JSON(result)
	})

	// Comparator cache visibility for operators.
	apiRoutes.Get("/cache/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.evaluator.Comparator().Stats())
	})

	apiRoutes.Delete("/cache", func(c *fiber.Ctx) error {
		s.evaluator.Comparator().ClearCache()
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func notFoundOrError(c *fiber.Ctx, err error) error {
	if errors.Is(err, sessions.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "list not found"})
	}
	return err
}

func contextWithEvaluationTimeout(c *fiber.Ctx, cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := time.Duration(cfg.EvaluationTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(c.UserContext(), timeout)
}
