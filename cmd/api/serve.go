package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"docvoice/docs"
	"docvoice/internal/analysis"
	"docvoice/internal/auth"
	"docvoice/internal/config"
	"docvoice/internal/extract"
	handlers "docvoice/internal/http/handler"
	"docvoice/internal/http/middleware"
	"docvoice/internal/logger"
	"docvoice/internal/metrics"
	"docvoice/internal/otel"
	"docvoice/internal/policy"
	"docvoice/internal/repository/postgres"
	"docvoice/internal/service"
	"docvoice/internal/speech"
	"docvoice/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func serve(parent context.Context, cfg *config.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.Named("api")

	shutdownTracing, err := otel.Init(ctx)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	provider, closeProvider, err := newAnalysisProvider(ctx, cfg.Analysis)
	if err != nil {
		return fmt.Errorf("failed to initialize analysis provider: %w", err)
	}
	defer closeProvider()

	voice, err := speech.NewAzureProvider(cfg.Speech)
	if err != nil {
		return fmt.Errorf("failed to initialize speech provider: %w", err)
	}

	pipeline, err := metrics.NewPipeline(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	jobs := postgres.NewJobPostgres(db)
	analyzer := analysis.NewAnalyzer(provider, cfg.Analysis.MaxInputChars, pipeline)
	ttl := cfg.Storage.SignedURLTTL()

	conversions := service.NewConversionService(service.ConversionDeps{
		Jobs:      jobs,
		Store:     store,
		Gate:      policy.NewGate(postgres.NewUsagePostgres(db)),
		Extractor: extract.NewPDFExtractor(cfg.Analysis.MaxInputChars),
		Analyzer:  analyzer,
		Metrics:   pipeline,
		URLTTL:    ttl,
	})
	speeches := service.NewSpeechService(service.SpeechDeps{
		Jobs:     jobs,
		Store:    store,
		Speaker:  speech.NewOrchestrator(voice),
		Analyzer: analyzer,
		Metrics:  pipeline,
		URLTTL:   ttl,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(!cfg.IsProduction()),
		BodyLimit:    handlers.BodyLimit,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(cfg.Location()))
	app.Use(otelfiber.Middleware())
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:          db,
		Resolver:    auth.NewResolver(auth.NewJWKSVerifier(cfg.Identity), cfg.Identity.Issuer(), cfg.Identity.Audience),
		Conversions: conversions,
		Speech:      speeches,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server listening")
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return err
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdownTracing(flushCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newAnalysisProvider builds the configured language model client and its release func.
func newAnalysisProvider(ctx context.Context, cfg config.AnalysisConfig) (analysis.Provider, func(), error) {
	switch cfg.Provider {
	case "vertex":
		p, err := analysis.NewVertexProvider(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	default:
		p, err := analysis.NewAzureOpenAI(cfg)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	}
}
