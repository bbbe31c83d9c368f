package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tallyhq/pricekeeper/internal/core/api"
	"github.com/tallyhq/pricekeeper/internal/core/auth"
	"github.com/tallyhq/pricekeeper/internal/core/config"
	"github.com/tallyhq/pricekeeper/internal/core/db"
	"github.com/tallyhq/pricekeeper/internal/core/observability"
	"github.com/tallyhq/pricekeeper/internal/core/server"
	"github.com/tallyhq/pricekeeper/internal/core/store"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP pricing API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger, err := observability.NewLogger(logLevel, logFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}

	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var migrationID string
	checkQuery := `SELECT migration_id FROM migrations WHERE migration_id = '001_initial_schema.sql'`
	if err := database.Get(&migrationID, database.Rebind(checkQuery)); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("schema not initialized - run 'pricekeeper migrate' first")
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set PK_HMAC_SECRET environment variable)")
	}

	authenticator := auth.NewAuthenticator(secrets, queries)

	service, err := api.NewService(store.New(queries), cfg)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	handler := service.Router(authenticator.Middleware(), logger)

	httpServer, err := server.NewHTTPServer(cfg, handler, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting pricing API",
		zap.String("version", Version),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port))

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		return httpServer.Shutdown(ctx)
	}
}
