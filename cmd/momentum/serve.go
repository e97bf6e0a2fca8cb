package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sandevgo/momentum/internal/config"
	"github.com/sandevgo/momentum/internal/providers/ai"
	"github.com/sandevgo/momentum/internal/service/chat"
	"github.com/sandevgo/momentum/internal/service/ingest"
	"github.com/sandevgo/momentum/internal/service/planner"
	"github.com/sandevgo/momentum/internal/service/retrieval"
	"github.com/sandevgo/momentum/internal/service/skills"
	"github.com/sandevgo/momentum/internal/storage/sqlite"
	"github.com/sandevgo/momentum/internal/transport/httpapi"
	"github.com/sandevgo/momentum/pkg/log"
	"github.com/sandevgo/momentum/pkg/srv"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Momentum API server",
	Long:  `Starts the HTTP API with the retrieval engine, planner, chat and ingestion services.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// logger setup
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting momentum")

		services := NewServices(ctx)

		srv.StartServices(ctx, services)

		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("momentum has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.NewAppConfig(ctx).GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	aiCfg := config.NewAIConfig(ctx)
	retrievalCfg := config.NewRetrievalConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	fragmentRepo := sqlite.NewFragmentRepo(db)
	completionRepo := sqlite.NewCompletionRepo(db)

	// 3. AI Provider
	provider, err := ai.NewProvider(ctx, aiCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize AI provider")
	}

	// 4. Core services
	engine := retrieval.NewEngine(fragmentRepo, provider, retrievalCfg)
	ingestor := ingest.NewIngestor(fragmentRepo, provider)
	dayPlanner := planner.NewPlanner(engine, provider, completionRepo)
	completions := planner.NewCompletions(completionRepo)
	chatSvc := chat.NewService(engine, provider, provider, fragmentRepo)
	skillsSvc := skills.NewService(engine, provider)

	// 5. Transport
	hub := httpapi.NewHub()
	handler := httpapi.NewHandler(chatSvc, ingestor, dayPlanner, completions, skillsSvc, engine, hub)
	services = append(services, httpapi.NewServer(appCfg, handler))

	return services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
