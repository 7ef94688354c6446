package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/boostsync/internal/app"
	"github.com/stacklok/boostsync/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the gateway and run the bot",
	Long: `Connect to the gateway and run the bot until interrupted.

The server requires a configuration file (--config) that specifies:
- The source and target guilds and the managed roles
- Vanity codes to watch and the polling cadence
- The operator allowed to run admin commands

The bot token is read from BOOSTSYNC_TOKEN. See examples/ for a sample configuration.`,
	RunE: runServe,
}

const defaultGracefulTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides api.address)")
	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
}

// loadConfiguration reads the config file and overlays environment credentials
func loadConfiguration() (*config.Config, *config.Credentials, error) {
	configPath := viper.GetString("config")
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	cfg.ApplyCredentials(creds)

	slog.Info("Loaded configuration",
		"path", configPath,
		"source_guild", cfg.Guilds.Source,
		"target_guild", cfg.Guilds.Target,
		"vanity_codes", len(cfg.Vanity.Codes))

	return cfg, creds, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, creds, err := loadConfiguration()
	if err != nil {
		return err
	}

	if cfg.Admin.OperatorID == "" {
		slog.Warn("No operator configured, admin commands are disabled")
	}

	opts := []app.Options{
		app.WithConfig(cfg),
		app.WithCredentials(creds),
	}
	if address := viper.GetString("address"); address != "" {
		opts = append(opts, app.WithAddress(address))
	}

	bot, err := app.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	runErr := bot.Start(ctx, defaultGracefulTimeout)
	if runErr != nil {
		slog.Error("Bot stopped with error", "error", runErr)
	}

	if err := bot.Stop(defaultGracefulTimeout); err != nil {
		slog.Error("Shutdown did not complete cleanly", "error", err)
	}

	return runErr
}

// contextOrBackground lets commands run outside Execute in tests
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
