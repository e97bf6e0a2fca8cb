package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandevgo/momentum/internal/config"
	"github.com/sandevgo/momentum/internal/providers/ai"
	"github.com/sandevgo/momentum/internal/service/retrieval"
	"github.com/sandevgo/momentum/internal/storage/sqlite"
	"github.com/sandevgo/momentum/pkg/log"
)

var (
	retrieveUser string
	retrieveK    int
)

// retrieveCmd runs one retrieval against the local store and prints the
// scored fragments. Meant for inspecting what the pipeline would feed a
// prompt for a given query.
var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Run a retrieval query and print the scored fragments",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)

		appCfg := config.NewAppConfig(ctx)
		if err := initEnv(ctx, appCfg.GetRuntimePath()); err != nil {
			logger.Fatal().Err(err).Msg("failed to init env")
		}

		db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()

		provider, err := ai.NewProvider(ctx, config.NewAIConfig(ctx))
		if err != nil {
			return err
		}

		engine := retrieval.NewEngine(sqlite.NewFragmentRepo(db), provider, config.NewRetrievalConfig(ctx))

		req := retrieval.NewRequest(retrieveUser, strings.Join(args, " "))
		if retrieveK > 0 {
			req.K = retrieveK
		}

		fragments, err := engine.Retrieve(ctx, req)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(fragments, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveUser, "user", "u", "", "user id to retrieve for (required)")
	retrieveCmd.Flags().IntVarP(&retrieveK, "k", "k", 0, "number of fragments to return")
	retrieveCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(retrieveCmd)
}
