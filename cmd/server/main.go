package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ecu-analyzer/backend/internal/api"
	"github.com/ecu-analyzer/backend/internal/config"
	"github.com/ecu-analyzer/backend/internal/kpi"
	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/pipeline"
	"github.com/ecu-analyzer/backend/internal/session"
	sig "github.com/ecu-analyzer/backend/internal/signal"
	"github.com/ecu-analyzer/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ecu-analyzer",
	Short: "ECU log analyzer - normalize, monitor and check boot KPIs",
	Long: `ecu-analyzer converts raw ECU console logs into unified messages,
replays or streams them to monitoring clients and evaluates boot KPI suites.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("ecu-analyzer version %s (built %s)\n", Version, BuildTime))

	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(kpiCmd)
	rootCmd.AddCommand(extractCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the --config file and initializes logging from it.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		JSONOutput: cfg.Logging.JSON,
	})
	return cfg, path, nil
}

func pipelineConfig(cfg *config.AppConfig) pipeline.Config {
	return pipeline.Config{
		SessionYear: cfg.Processing.SessionYear,
		SampleSize:  cfg.Processing.DiagnosticSampleSize,
		SignalMode:  sig.ParseMode(cfg.Processing.SignalMode),
	}
}

func readerOptions(cfg *config.AppConfig) loader.Options {
	return loader.Options{
		Extensions:  loader.ParseExtensions(cfg.Storage.AllowedFileTypes),
		Concurrency: cfg.Processing.ReadConcurrency,
	}
}

func loadBoard(cfg *config.AppConfig) (*kpi.Board, error) {
	if cfg.KPI.SuitesFile == "" {
		return kpi.NewBoard(kpi.DefaultSuites()), nil
	}
	suites, err := kpi.LoadSuitesFile(cfg.KPI.SuitesFile)
	if err != nil {
		return nil, err
	}
	return kpi.NewBoard(suites), nil
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.WithComponent("server")

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	api.ShowErrorDetails = logging.ParseLevel(cfg.Logging.Level) == logging.DebugLevel

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	board, err := loadBoard(cfg)
	if err != nil {
		return fmt.Errorf("failed to load kpi suites: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionMgr := session.NewManager(session.Config{
		Pipeline: pipelineConfig(cfg),
		Reader:   readerOptions(cfg),
	})

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
			}
		}
	}()

	monitor := session.NewMonitor(session.MonitorConfig{
		Pipeline:    pipelineConfig(cfg),
		Reader:      readerOptions(cfg),
		MaxMessages: cfg.Processing.MaxMessages,
	})
	defer monitor.Stop()

	handlers := api.NewHandlers(&api.Dependencies{
		Store:        fileStore,
		SessionMgr:   sessionMgr,
		Monitor:      monitor,
		Board:        board,
		Reader:       readerOptions(cfg),
		LiveInterval: cfg.Processing.LiveInterval,
		Version:      Version,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   splitOrigins(cfg.Server.AllowOrigins),
		BodyLimit:      cfg.Server.BodyLimit,
		RequestLogging: cfg.Logging.RequestLogging,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	s := &http.Server{
		Addr:              cfg.GetServerAddr(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printBanner(cfg, configPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func printBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           ECU Log Analyzer Server                         ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Signals:    %-45s║\n", sig.ParseMode(cfg.Processing.SignalMode))
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
