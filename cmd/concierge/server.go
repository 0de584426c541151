package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/concierge/internal/ads"
	"github.com/kalambet/concierge/internal/api"
	"github.com/kalambet/concierge/internal/concierge"
	"github.com/kalambet/concierge/internal/config"
	"github.com/kalambet/concierge/internal/jobs"
	"github.com/kalambet/concierge/internal/ollama"
	"github.com/kalambet/concierge/internal/persona"
	"github.com/kalambet/concierge/internal/places"
	"github.com/kalambet/concierge/internal/proxy"
	"github.com/kalambet/concierge/internal/session"
	"github.com/kalambet/concierge/internal/storage"
)

const (
	pruneInterval = time.Hour
	sweepInterval = time.Minute
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the concierge server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		noMCP, _ := cmd.Flags().GetBool("no-mcp")
		return runServer(!noMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running concierge server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show concierge system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("no-mcp", false, "do not serve MCP on stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "concierge.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(serveMCP bool) error {
	fmt.Fprintf(os.Stderr, "concierge version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("concierge is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("concierge is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Places lookups go through the SQLite cache for both geocodes and
	// searches.
	cacheTTL := cfg.CacheTTL()
	mapsClient := places.NewClient(cfg.Places.GoogleMapsAPIKey)
	mapsClient.SetGeocodeCache(places.StoreGeocodeCache{Store: store, TTL: cacheTTL})
	mapsClient.SetMaxResults(cfg.Places.MaxResults)
	if !mapsClient.Configured() {
		slog.Warn("no Google Maps API key; place searches will return nothing")
	}
	finder := places.NewCachedFinder(mapsClient, store, cacheTTL)

	completer, models, err := buildCompleter(ctx, cfg)
	if err != nil {
		return err
	}

	catalog, err := persona.Load(cfg.Persona.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading persona catalog: %w", err)
	}
	inventory, err := ads.LoadInventory(cfg.Ads.InventoryPath)
	if err != nil {
		return err
	}

	svc := concierge.New(catalog, persona.NewGenerator(catalog, nil), finder, completer, concierge.Options{
		MaxTokens:   cfg.Completion.MaxTokens,
		Temperature: &cfg.Completion.Temperature,
	})
	sessions := session.NewManager(session.Options{
		DefaultLocation: cfg.Concierge.DefaultLocation,
		IdleTimeout:     cfg.SessionIdleTimeout(),
		NewAds: func() *ads.Manager {
			return ads.NewManager(inventory, cfg.Ads.Interval, nil)
		},
	})
	go sessions.RunSweeper(ctx, sweepInterval)

	worker := jobs.NewWorker(store, finder, store, cacheTTL, 500*time.Millisecond)
	go worker.Run(ctx)
	go jobs.SchedulePrune(ctx, store, pruneInterval)

	appDeps := api.AppDeps{
		Sessions:  sessions,
		Concierge: svc,
		Catalog:   catalog,
		Token:     apiToken,
		Jobs:      store,
		Radius:    cfg.Places.Radius,
		Models:    models,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewAppHandler(appDeps),
	}

	if serveMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Sessions:  sessions,
			Concierge: svc,
			Catalog:   catalog,
			Radius:    cfg.Places.Radius,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "concierge listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildCompleter picks the text generation backend. The OpenRouter client is
// returned even without a key so replies degrade to the not-configured
// apology; it doubles as the model lister.
func buildCompleter(ctx context.Context, cfg config.Config) (concierge.Completer, api.ModelLister, error) {
	switch cfg.Completion.Backend {
	case config.BackendOllama:
		oc := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(ctx, oc, cfg.Ollama.Model, os.Stderr); err != nil {
			return nil, nil, err
		}
		slog.Info("using local completion backend", "model", cfg.Ollama.Model)
		return concierge.NewOllamaCompleter(oc, cfg.Ollama.Model), nil, nil
	default:
		pc := proxy.NewClient(cfg.Proxy.OpenRouterAPIKey)
		pc.SetModel(cfg.Proxy.DefaultModel)
		if !pc.Configured() {
			slog.Warn("no OpenRouter API key; chat replies will ask for configuration")
		}
		return pc, pc, nil
	}
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("concierge is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop concierge (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to concierge (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		printError("%v", err)
		return nil
	}

	running := false
	resp, err := client.get(ctx, "/health")
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		running = true
		printStatus("Server", "running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	printStatus("Backend", "%s", cfg.Completion.Backend)
	switch cfg.Completion.Backend {
	case config.BackendOllama:
		oc := ollama.New(cfg.Ollama.BaseURL)
		if oc.IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
		printStatus("Model", "%s", cfg.Ollama.Model)
	default:
		printStatus("Model", "%s", cfg.Proxy.DefaultModel)
		printStatus("OpenRouter key", "%s", setLabel(cfg.Proxy.OpenRouterAPIKey))
	}
	printStatus("Maps key", "%s", setLabel(cfg.Places.GoogleMapsAPIKey))
	printStatus("Default location", "%s", cfg.Concierge.DefaultLocation)

	if id, err := client.loadSession(); err == nil && running {
		var ins insightsView
		resp, err := client.get(ctx, "/sessions/"+id+"/insights")
		if err == nil && decodeJSON(resp, &ins) == nil {
			printStatus("Session", "%s (%s, %d/%d choices accepted)", shortID(id), ins.Persona, ins.Chosen, ins.Total)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func setLabel(v string) string {
	if v == "" {
		return "not set"
	}
	return "set"
}
