package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/config"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/assembly"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/document"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/ingest"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/domain/patient"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/db"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/extract"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/llm"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/middleware"
	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/vector"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tecsalud-server",
		Short: "Medical record ingestion and retrieval API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s)\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%04d  %-40s  %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Collaborators
	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:    cfg.EmbeddingModel,
		BaseURL:  cfg.LLMBaseURL,
		RPS:      cfg.EmbedRPS,
		Burst:    cfg.EmbedBurst,
		Attempts: cfg.RetryAttempts,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize embedder")
	}
	chatEngine, err := llm.NewChatEngine(llm.ChatConfig{
		Model:   cfg.ChatModel,
		BaseURL: cfg.LLMBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize chat engine")
	}
	tokenCounter, err := assembly.NewTiktokenCounter()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tokenizer")
	}
	extractor := extract.NewClient(cfg.ExtractorURL, cfg.ExtractorTimeout, cfg.RetryAttempts)

	// Domain wiring
	patientRepo := patient.NewRepo(pool)
	resolver := patient.NewResolver(patientRepo, nil)
	patientSvc := patient.NewService(patientRepo, resolver)

	docRepo := document.NewRepo(pool)
	index := vector.NewPGIndex(pool)
	chunker := document.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	store := document.NewStore(docRepo, index, embedder, chunker, logger)

	ingestRepo := ingest.NewRepo(pool)
	orchestrator := ingest.NewOrchestrator(ingestRepo, patientSvc, store, extractor, cfg.BatchWorkers, logger)
	ingestSvc := ingest.NewService(ingestRepo, orchestrator, logger)

	assembler := assembly.NewAssembler(patientRepo, docRepo, index, embedder, tokenCounter,
		cfg.ContextTopK, cfg.ContextTokenBudget, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("2M", "512M"))
	e.Use(middleware.RequestTimeout(60 * time.Second))

	// Health checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/healthz/db", db.HealthHandler(pool))

	// API routes
	apiV1 := e.Group("/api/v1")
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	document.NewHandler(docRepo).RegisterRoutes(apiV1)
	ingest.NewHandler(ingestSvc).RegisterRoutes(apiV1)
	assembly.NewHandler(assembler, chatEngine).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
