package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/pkg/agentstore"
	"github.com/voicebridge/voicebridge/pkg/aiproject"
	"github.com/voicebridge/voicebridge/pkg/azureauth"
	"github.com/voicebridge/voicebridge/pkg/kv"
	"github.com/voicebridge/voicebridge/pkg/relay"
	"github.com/voicebridge/voicebridge/pkg/server"
	"github.com/voicebridge/voicebridge/pkg/voicelive"
)

// serveConfig is the daemon's own configuration. Upstream credentials come
// from the environment; this covers only what the process serves and where
// it stores agent records.
type serveConfig struct {
	Listen    string `yaml:"listen"`
	DataDir   string `yaml:"data_dir"`
	StaticDir string `yaml:"static_dir"`
}

func defaultServeConfig() serveConfig {
	return serveConfig{Listen: ":8000"}
}

// loadServeConfig applies an optional YAML file over the defaults.
func loadServeConfig(path string) (serveConfig, error) {
	cfg := defaultServeConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = defaultServeConfig().Listen
	}
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay daemon",
	Long: `Run the relay daemon: HTTP API, downstream WebSocket endpoint and
agent management, backed by one upstream Voice Live connection per session.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		cfg, err := loadServeConfig(configFile)
		if err != nil {
			return err
		}
		// Explicit flags win over the config file.
		if cmd.Flags().Changed("listen") {
			cfg.Listen, _ = cmd.Flags().GetString("listen")
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
		}
		if cmd.Flags().Changed("static-dir") {
			cfg.StaticDir, _ = cmd.Flags().GetString("static-dir")
		}
		return runServe(cmd.Context(), cfg)
	},
}

func runServe(ctx context.Context, cfg serveConfig) error {
	upstream, err := voicelive.ConfigFromEnv()
	if err != nil {
		return err
	}
	tokens, err := azureauth.NewProvider()
	if err != nil {
		return err
	}

	store, err := kv.NewBadger(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.DataDir == "" {
		slog.Warn("no data dir configured, agent records will not survive restarts")
	}

	creator, err := aiproject.NewClient(upstream.AgentConnectionString, tokens)
	if err != nil {
		return err
	}

	registry := relay.NewRegistry(upstream, tokens)
	srv := server.New(server.Config{
		Registry:  registry,
		Agents:    agentstore.New(store),
		Creator:   creator,
		StaticDir: cfg.StaticDir,
	})

	httpServer := &http.Server{Addr: cfg.Listen, Handler: srv.Handler()}
	errc := make(chan error, 1)
	go func() {
		slog.Info("relay listening", "addr", cfg.Listen)
		errc <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("http shutdown", "error", err)
	}
	registry.Shutdown()
	return nil
}

func init() {
	serveCmd.Flags().String("config", "", "path to YAML config file")
	serveCmd.Flags().String("listen", ":8000", "listen address")
	serveCmd.Flags().String("data-dir", "", "directory for the agent record store (empty = in-memory)")
	serveCmd.Flags().String("static-dir", "", "directory with the built frontend to serve")
	rootCmd.AddCommand(serveCmd)
}
