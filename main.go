package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kartoza/exo-inference/internal/config"
	"github.com/kartoza/exo-inference/internal/logging"
	"github.com/kartoza/exo-inference/internal/server"
	"github.com/kartoza/exo-inference/internal/survey"
)

var version = "dev"

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "exo-inference",
	Short:         "Exoplanet candidate classification for KOI, K2 and TESS catalog exports",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Version = version
		if verbose {
			cfg.LogLevel = "debug"
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogJSON)
		if err != nil {
			return err
		}
		if cfg.Path != "" {
			logger.Debug("Loaded config", zap.String("path", cfg.Path))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP inference service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default $CONFIG_PATH or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate("Exo Inference v{{.Version}}\n")

	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP server port (overrides config)")

	rootCmd.AddCommand(serveCmd, predictCmd, peekCmd, modelsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadRegistry loads every configured model from the artifacts directory
func loadRegistry(ctx context.Context) (*survey.Registry, error) {
	return survey.Load(ctx, cfg.ArtifactsDir, cfg.DefaultModel, cfg.Specs(), logger)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Port, 10)
	if err != nil {
		return fmt.Errorf("failed to find available port: %w", err)
	}
	if availablePort != cfg.Port {
		logger.Warn("Port in use, using another", zap.Int("requested", cfg.Port), zap.Int("port", availablePort))
		cfg.Port = availablePort
	}

	registry, err := loadRegistry(ctx)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	logger.Info("Exo Inference starting",
		zap.String("version", version),
		zap.Int("port", cfg.Port),
		zap.Strings("models", registry.Slugs()),
		zap.String("default_model", registry.Default()))

	// Create and start the server
	srv, err := server.New(*cfg, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for server to be ready
	waitForServer(fmt.Sprintf("localhost:%d", cfg.Port), 10*time.Second)

	select {
	case err := <-errCh:
		srv.Stop()
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		if err := srv.Stop(); err != nil {
			logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
	return nil
}

// waitForServer polls until the server is accepting connections
func waitForServer(addr string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Warn("Server may not be ready", zap.String("addr", addr))
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
