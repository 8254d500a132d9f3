// Flutter/Dart Documentation MCP Server
//
// This is the main entry point for the Flutter/Dart Documentation MCP
// Server. It provides LLMs with programmatic access to Flutter API
// reference, Dart API reference, and pub.dev package documentation through
// the Model Context Protocol (MCP).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/cachestore"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/config"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/fetchcore"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/httpclient"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/index"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/logger"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/search"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile    string
	logLevelFlag  string
	transportFlag string
	hostFlag      string
	portFlag      int
	showVersion   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "flutter-docs-mcp-server",
		Short: "Flutter/Dart Documentation MCP Server",
		Long: `Flutter/Dart Documentation MCP Server provides LLMs with programmatic
access to Flutter API reference, Dart API reference, and pub.dev package
documentation through the Model Context Protocol (MCP).

The server exposes three tools:
  - docs: fetch Flutter/Dart class reference or pub.dev package docs
  - search: multi-source search across the Flutter/Dart/pub.dev catalogs
  - status: cache and upstream health

Documentation is fetched lazily on first request and cached locally with
per-kind TTLs; five legacy tool aliases are accepted for compatibility.`,
		RunE: runServer,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (optional)")
	rootCmd.Flags().StringVarP(&logLevelFlag, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVarP(&transportFlag, "transport", "t", "", "Transport type (stdio, sse, streamablehttp)")
	rootCmd.Flags().StringVar(&hostFlag, "host", "", "Bind host for network transports")
	rootCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Bind port for network transports")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("Flutter/Dart Documentation MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Commit:  %s\n", commit)
		fmt.Printf("Built:   %s\n", date)
		return nil
	}

	flags := map[string]interface{}{}
	if logLevelFlag != "" {
		flags["log_level"] = logLevelFlag
	}
	if transportFlag != "" {
		flags["transport_type"] = transportFlag
	}
	if hostFlag != "" {
		flags["host"] = hostFlag
	}
	if cmd.Flags().Changed("port") {
		flags["port"] = portFlag
	}

	cfg, err := config.LoadWithFlags(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Debug, false, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("date", date).
		Msg("starting Flutter/Dart Documentation MCP Server")

	cacheDBPath, err := resolveCachePath(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	log.Info().Str("cache_path", cacheDBPath).Msg("opening cache store")

	if err := os.MkdirAll(filepath.Dir(cacheDBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	store, err := cachestore.Open(cacheDBPath)
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer store.Close()

	policy := httpclient.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	policy.BaseDelay = cfg.BaseRetryDelay
	policy.MaxDelay = cfg.MaxRetryDelay

	limits := fetchcore.Limits{
		RequestsPerSecond: cfg.RequestsPerSecond,
		FailureThreshold:  cfg.FailureThreshold,
		RecoveryTimeout:   cfg.RecoveryTimeout,
	}
	core := fetchcore.New(store, policy, limits, log)

	concepts, err := index.NewConceptMap()
	if err != nil {
		return fmt.Errorf("failed to build concept map: %w", err)
	}
	defer concepts.Close()

	orchestrator := search.NewOrchestrator(core.HTTP, concepts)

	srv, err := server.NewServer(cfg, core, orchestrator, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to create server")
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Initialize(ctx); err != nil {
			errChan <- fmt.Errorf("server initialization failed: %w", err)
			return
		}

		log.Info().Msg("registering MCP tools")
		if err := srv.RegisterTools(); err != nil {
			errChan <- fmt.Errorf("tool registration failed: %w", err)
			return
		}

		log.Info().Msg("server initialized successfully, starting MCP server")
		if err := srv.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
			return
		}

		errChan <- nil
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("server error")
			return err
		}
		log.Info().Msg("server stopped normally")
		return nil

	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
			return fmt.Errorf("shutdown error: %w", err)
		}

		log.Info().Msg("server shutdown complete")
		return nil
	}
}

// resolveCachePath derives the cache database path per spec.md §6:
// override, or the platform cache directory joined with
// flutter-docs/cache.db.
func resolveCachePath(override string) (string, error) {
	if override != "" {
		return filepath.Join(override, "cache.db"), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "flutter-docs", "cache.db"), nil
}
