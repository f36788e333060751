package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/statusdeck/statusdeck"
	"github.com/statusdeck/statusdeck/config"
	"github.com/statusdeck/statusdeck/internal/remote"
	"github.com/statusdeck/statusdeck/internal/server"
	"github.com/statusdeck/statusdeck/internal/store"
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts polling the configured widgets and serves their states.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling the configured widgets",
	Long: `Start the statusdeck polling manager.

The command will:
  - Load configuration from the specified YAML file (and a .env file if present)
  - Bring up every configured widget and begin polling its entity
  - Serve current render states on /api/widgets and live updates on /api/sse

The process runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  statusdeck serve -c config.yaml
  statusdeck serve --config /etc/statusdeck/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	// .env is optional; config env substitution picks these values up
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded environment from .env")
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	widgets, err := config.BuildWidgets(cfg)
	if err != nil {
		return fmt.Errorf("failed to build widgets: %w", err)
	}

	logger.Info("config loaded",
		"widgets", len(widgets),
		"profiles", len(cfg.Profiles),
	)
	logger.Info("starting",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	// render into the pub/sub store serving the HTTP API
	states := store.NewMemoryStore()
	renderer := statusdeck.RenderFunc(func(widgetID string, state statusdeck.RenderState) {
		states.Update(store.WidgetStatus{
			WidgetID:  widgetID,
			State:     state.State.String(),
			Label:     state.Label,
			Message:   state.Message,
			CheckedAt: state.CheckedAt,
		})
	})

	var clientOpts []remote.Option
	if cfg.LabelPath != "" {
		clientOpts = append(clientOpts, remote.WithLabelExtractor(remote.FirstMatch(
			remote.JSONFieldExtractor(cfg.LabelPath),
			remote.TextExtractor,
		)))
	}

	manager, err := statusdeck.New(
		statusdeck.WithClientFactory(remote.Factory(clientOpts...)),
		statusdeck.WithRenderer(renderer),
		statusdeck.WithLogger(logger),
		statusdeck.WithDefaultPollInterval(cfg.PollInterval.Duration()),
	)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(states, cfg.Port, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	manager.Start(ctx)
	for _, w := range widgets {
		manager.WidgetWillAppear(w.ID, w.Settings)
	}

	<-ctx.Done()

	// tear widgets down through the host-event path so SSE subscribers see
	// a removal event for each before the stream closes
	for _, w := range widgets {
		manager.WidgetWillDisappear(w.ID)
		states.Remove(w.ID)
	}
	manager.Stop()
	logger.Info("shutdown complete")
	return nil
}
