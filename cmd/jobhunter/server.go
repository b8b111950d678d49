package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
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

	"github.com/kalambet/jobhunter/internal/api"
	"github.com/kalambet/jobhunter/internal/archive"
	"github.com/kalambet/jobhunter/internal/chat"
	"github.com/kalambet/jobhunter/internal/config"
	"github.com/kalambet/jobhunter/internal/events"
	"github.com/kalambet/jobhunter/internal/gemini"
	"github.com/kalambet/jobhunter/internal/resume"
	"github.com/kalambet/jobhunter/internal/search"
	"github.com/kalambet/jobhunter/internal/session"
	"github.com/kalambet/jobhunter/internal/storage"
	"github.com/kalambet/jobhunter/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the jobhunter HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the job hunter tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running jobhunter server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show jobhunter status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "jobhunter.pid")
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

// app holds the wired services shared by serve and mcp.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *storage.Store
	search  *search.Client
	chat    *chat.Orchestrator
	parser  *resume.Parser
	archive *archive.Archive
	closers []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.Telemetry.Dir)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdownTelemetry)

	a.store, err = storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := a.store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	})

	model, err := gemini.New(ctx, gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		ChatModel:  cfg.Gemini.ChatModel,
		ParseModel: cfg.Gemini.ParseModel,
		BaseURL:    cfg.Gemini.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	a.parser = resume.NewParser(model)

	if cfg.Tavily.BaseURL != "" {
		a.search = search.NewClientWithBaseURL(cfg.Tavily.APIKey, cfg.Tavily.BaseURL)
	} else {
		a.search = search.NewClient(cfg.Tavily.APIKey)
	}

	deps := chat.Deps{
		Model:           model,
		Search:          a.search,
		Sessions:        session.NewMemoryStore(),
		Logger:          logger,
		Temperature:     float32(cfg.Gemini.Temperature),
		MaxOutputTokens: int32(cfg.Gemini.MaxOutputTokens),
	}
	if cfg.Session.Serialize {
		deps.Locker = session.NewLocker()
	}

	if cfg.Events.AMQPURL != "" {
		pub, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return nil, fmt.Errorf("connecting to message broker: %w", err)
		}
		a.closers = append(a.closers, func() { pub.Close() })
		deps.Notifier = pub
		logger.Info("publishing exchange events", "exchange", cfg.Events.Exchange)
	}

	if cfg.Archive.Bucket != "" {
		a.archive, err = archive.New(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("creating resume archive: %w", err)
		}
		logger.Info("archiving resume uploads", "bucket", cfg.Archive.Bucket)
	}

	a.chat = chat.New(deps)
	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) handler() http.Handler {
	deps := api.Deps{
		Chat:    a.chat,
		Parser:  a.parser,
		Resumes: a.store,
		Token:   a.cfg.Server.APIToken,
		Logger:  a.logger,
	}
	if a.archive != nil {
		deps.Archive = a.archive
	}
	return api.NewHandler(deps)
}

func (a *app) mcpServer() *server.MCPServer {
	return api.NewMCPServer(api.MCPDeps{
		Chat:    a.chat,
		Search:  a.search,
		Resumes: a.store,
	})
}

func loadServerConfig() (config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if err := cfg.RequireAPIKeys(); err != nil {
		return config.Config{}, nil, nil, err
	}

	logger, closer, err := telemetry.InitLogger(telemetry.LogConfig{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
	}, os.Stderr)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cfg, logger, func() { closer.Close() }, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "jobhunter version %s\n", version)

	cfg, logger, closeLog, err := loadServerConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	// Check if a server is already running via the health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("jobhunter is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("jobhunter is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	if cfg.Server.APIToken == "" {
		logger.Warn("server.api_token is not set; /api is unauthenticated")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("jobhunter listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func runMCP() error {
	cfg, logger, closeLog, err := loadServerConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("MCP server started (stdio transport)")
	stdioSrv := server.NewStdioServer(a.mcpServer())
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
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
		printError("jobhunter is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop jobhunter (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to jobhunter (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Chat model", "%s", cfg.Gemini.ChatModel)
	printStatus("Parse model", "%s", cfg.Gemini.ParseModel)
	printStatus("Gemini key", "%s", setLabel(cfg.Gemini.APIKey))
	printStatus("Tavily key", "%s", setLabel(cfg.Tavily.APIKey))
	if cfg.Session.Serialize {
		printStatus("Sessions", "serialized per key")
	} else {
		printStatus("Sessions", "unserialized")
	}
	printStatus("Archive", "%s", enabledLabel(cfg.Archive.Bucket))
	printStatus("Events", "%s", enabledLabel(cfg.Events.Exchange, cfg.Events.AMQPURL))

	if resp != nil && resp.StatusCode == http.StatusOK {
		api := &apiClient{baseURL: serverURL, token: cfg.Server.APIToken, httpClient: client}
		var saved []struct {
			ID string `json:"id"`
		}
		if api.call(context.Background(), http.MethodGet, "/api/resume?limit=100", nil, &saved) == nil {
			printStatus("Saved resumes", "%s", countLabel(len(saved), 100))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func setLabel(v string) string {
	if v == "" {
		return colorize(colorYellow, "missing")
	}
	return "set"
}

// enabledLabel reports the first value as enabled when every value is set.
func enabledLabel(vals ...string) string {
	for _, v := range vals {
		if v == "" {
			return "disabled"
		}
	}
	return "enabled (" + vals[0] + ")"
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
