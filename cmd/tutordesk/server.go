package main

import (
	"context"
	"errors"
	"fmt"
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
	"go.uber.org/zap"

	"github.com/kalambet/tutordesk/internal/api"
	"github.com/kalambet/tutordesk/internal/backoffice"
	"github.com/kalambet/tutordesk/internal/composer"
	"github.com/kalambet/tutordesk/internal/config"
	"github.com/kalambet/tutordesk/internal/ingest"
	"github.com/kalambet/tutordesk/internal/knowledge"
	"github.com/kalambet/tutordesk/internal/logging"
	"github.com/kalambet/tutordesk/internal/pipeline"
	"github.com/kalambet/tutordesk/internal/proxy"
	"github.com/kalambet/tutordesk/internal/retrieval"
	"github.com/kalambet/tutordesk/internal/session"
	"github.com/kalambet/tutordesk/internal/storage"
)

var stdioMCP bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tutordesk server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tutordesk server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tutordesk status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().BoolVar(&stdioMCP, "stdio-mcp", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tutordesk.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "tutordesk version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	syncLog, err := logging.Install(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer syncLog()
	log := zap.L()

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	log.Info("API bearer token available")

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("tutordesk is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("tutordesk is already running on port %d", cfg.Server.Port)
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
			log.Warn("closing storage", zap.Error(err))
		}
	}()

	catalog := knowledge.Default()
	searcher := retrieval.NewIndexSearcher(store)
	retriever := retrieval.NewRetriever(catalog, searcher)
	answers := proxy.NewClientWithBaseURL(cfg.Proxy.OpenRouterAPIKey, cfg.Proxy.DefaultModel, cfg.Proxy.BaseURL)
	office := backoffice.NewClient(cfg.BackOffice.BaseURL, cfg.BackOffice.APIKey, cfg.BackOffice.Timeout)
	orch := pipeline.New(catalog, retriever, composer.New(cfg.Answer.Locale), answers, office)
	sessions := session.NewManager(store, cfg.Session.TTL)

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Asker:    orch,
		Searcher: searcher,
		Catalog:  catalog,
	})

	deps := api.Deps{
		Sessions:  sessions,
		Chat:      orch,
		Knowledge: store,
		Searcher:  searcher,
		Token:     apiToken,
	}
	if cfg.Server.MCPEnabled {
		deps.MCP = api.NewMCPHandler(mcpSrv)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	worker := ingest.NewWorker(store, &http.Client{Timeout: 15 * time.Second}, 500*time.Millisecond)
	go worker.Run(ctx)

	if stdioMCP {
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("MCP stdio server error", zap.Error(err))
			}
		}()
		log.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("tutordesk listening",
			zap.String("addr", addr),
			zap.String("model", answers.Model()),
			zap.Bool("mcp_http", cfg.Server.MCPEnabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg := config.LoadRelaxed()

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("tutordesk is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop tutordesk (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to tutordesk (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg := config.LoadRelaxed()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.Proxy.OpenRouterAPIKey == "" {
		printStatus("Answer service", "not configured (set proxy.openrouter_api_key)")
	} else {
		printStatus("Answer service", "%s via %s", cfg.Proxy.DefaultModel, cfg.Proxy.BaseURL)
	}
	printStatus("Back office", "%s", cfg.BackOffice.BaseURL)

	if running {
		if c, err := newAPIClient(); err == nil {
			var docs []struct{}
			if c.call(context.Background(), http.MethodGet, "/knowledge?limit=100", nil, &docs) == nil {
				printStatus("Knowledge docs", "%s", countLabel(len(docs), 100))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return strconv.Itoa(count)
}
