package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CartMateCo/grocery-service/config"
	"github.com/CartMateCo/grocery-service/internal/core/ai"
	"github.com/CartMateCo/grocery-service/internal/core/evaluation"
	"github.com/CartMateCo/grocery-service/internal/core/grocery"
	"github.com/CartMateCo/grocery-service/internal/core/match"
	"github.com/CartMateCo/grocery-service/internal/core/sessions"
	"github.com/CartMateCo/grocery-service/pkg/telemetry"
	"github.com/gofiber/fiber/v2"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"google.golang.org/grpc"
)

type Server struct {
	cfg            *config.Config
	app            *fiber.App
	store          *sessions.Store
	reconciler     *grocery.Reconciler
	extractor      ai.Extractor
	evaluator      *evaluation.Evaluator
	traceProvider  *sdktrace.TracerProvider
	metricProvider *metric.MeterProvider
	loggerProvider interface{ Shutdown(context.Context) error }
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Server {
	traceExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		slog.Error("failed to initialize jaeger exporter", slog.String("error", err.Error()))
		return nil
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OtlpEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithDialOption(grpc.WithUserAgent("grocery-service")),
	)
	if err != nil {
		slog.Error("failed to initialize otlp exporter", slog.String("error", err.Error()))
		return nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String("grocery-service"),
			)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	provider := metric.NewMeterProvider(metric.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("grocery-service"),
	)), metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(15*time.Second))))

	otel.SetMeterProvider(provider)

	if err := otelruntime.Start(otelruntime.WithMeterProvider(provider)); err != nil {
		slog.Error("failed to start runtime instrumentation", slog.String("error", err.Error()))
		return nil
	}

	if err := telemetry.InitBusinessMetrics(provider); err != nil {
		slog.Error("failed to initialize telemetry", slog.String("error", err.Error()))
		return nil
	}

	openAICfg := cfg.GetOpenAIConfig()
	semanticCfg := cfg.GetSemanticConfig()

	oracle := ai.NewOpenAIOracle(openAICfg, logger, cfg.PromptsDir)
	comparator := match.NewComparator(oracle, logger)
	if err := comparator.SetConfidenceThreshold(semanticCfg.ConfidenceThreshold); err != nil {
		slog.Error("invalid confidence threshold", slog.String("error", err.Error()))
		return nil
	}
	if err := comparator.SetCacheTimeout(semanticCfg.CacheTimeout); err != nil {
		slog.Error("invalid cache timeout", slog.String("error", err.Error()))
		return nil
	}

	app := fiber.New(cfg.Fiber())
	serverCtx, cancel := context.WithCancel(ctx)

	return &Server{
		cfg:            cfg,
		app:            app,
		store:          sessions.NewStore(),
		reconciler:     grocery.NewReconciler(logger),
		extractor:      ai.NewOpenAIExtractor(openAICfg, logger, cfg.PromptsDir),
		evaluator:      evaluation.NewEvaluator(comparator, logger),
		traceProvider:  tp,
		metricProvider: provider,
		ctx:            serverCtx,
		cancel:         cancel,
	}
}

// SetLoggerProvider wires the OTLP log provider for shutdown, when one is
// configured.
func (s *Server) SetLoggerProvider(p interface{ Shutdown(context.Context) error }) {
	s.loggerProvider = p
}

func (s *Server) Start() {
	initGlobalMiddlewares(s.app, s.cfg)
	s.registerHttpRoutes()

	slog.Info("Starting HTTP server", slog.String("address", s.cfg.ServerAddress))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.app.Listen(s.cfg.ServerAddress); err != nil {
			slog.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()
}

func (s *Server) Shutdown() {
	slog.Info("Shutting down server")

	s.cancel()

	if err := s.app.Shutdown(); err != nil {
		slog.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
	}

	s.wg.Wait()

	if err := s.traceProvider.Shutdown(context.Background()); err != nil {
		slog.Error("Error shutting down trace provider", slog.String("error", err.Error()))
	}

	if err := s.metricProvider.Shutdown(context.Background()); err != nil {
		slog.Error("Error shutting down metric provider", slog.String("error", err.Error()))
	}

	if s.loggerProvider != nil {
		if err := s.loggerProvider.Shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down log provider", slog.String("error", err.Error()))
		}
	}

	slog.Info("Server shut down successfully")
}
