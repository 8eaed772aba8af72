package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shubcodes/fw-intellibrowse-agent/internal/config"
	"github.com/shubcodes/fw-intellibrowse-agent/internal/logger"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/agent"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/browser"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/document"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/gateway"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/orchestrator"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/screenparse"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/session"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the IntelliBrowse agent service",
	Long: `Run the agent service in the foreground: launches the configured
collaborators, starts the HTTP gateway, and serves instructions until
interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".intellibrowse", "config.json")
}

func runServe(cmd *cobra.Command, _ []string) error {
	loader := config.NewLoader(configPath())
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Close()

	zl := log.Zerolog()
	zl.Info().Str("version", version).Str("config", loader.Path()).Msg("Starting IntelliBrowse")

	provider, err := agent.NewProvider(agent.ProviderConfig{
		Name:   cfg.Provider.Name,
		APIKey: cfg.Provider.APIKey,
		Model:  cfg.Provider.Model,
	})
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}

	registry := tool.NewRegistry(zl)

	var browserCtl *browser.Controller
	if cfg.Browser.Enabled {
		browserCtl, err = browser.NewController(browser.Config{
			ControlURL: cfg.Browser.ControlURL,
			Headless:   cfg.Browser.Headless,
			Timeout:    time.Duration(cfg.Browser.TimeoutSeconds) * time.Second,
			Logger:     zl,
		})
		if err != nil {
			return fmt.Errorf("init browser: %w", err)
		}
		defer browserCtl.Close()

		if err := browser.RegisterTools(registry, browserCtl); err != nil {
			return fmt.Errorf("register browser tools: %w", err)
		}
	}

	if cfg.ScreenParser.Enabled {
		parser, err := screenparse.NewClient(screenparse.ClientConfig{
			Endpoint: cfg.ScreenParser.Endpoint,
			Timeout:  time.Duration(cfg.ScreenParser.TimeoutSeconds) * time.Second,
			Logger:   zl,
		})
		if err != nil {
			return fmt.Errorf("init screen parser: %w", err)
		}

		var shots screenparse.Screenshotter
		if browserCtl != nil {
			shots = browserCtl
		}
		if err := screenparse.RegisterTools(registry, parser, shots); err != nil {
			return fmt.Errorf("register screen parser tools: %w", err)
		}
	}

	if cfg.Document.Enabled {
		inliner := document.NewInliner(int(cfg.Document.MaxBytes), zl)
		if err := document.RegisterTools(registry, inliner); err != nil {
			return fmt.Errorf("register document tools: %w", err)
		}
	}

	store := session.NewStore(zl)
	sweeper, err := session.NewSweeper(session.SweeperConfig{
		Store:    store,
		TTL:      cfg.SessionIdleTTL(),
		Schedule: cfg.Session.SweepSchedule,
		Logger:   zl,
	})
	if err != nil {
		return fmt.Errorf("init session sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	orch, err := orchestrator.New(orchestrator.Config{
		Provider:     provider,
		Registry:     registry,
		Store:        store,
		Logger:       zl,
		MaxTurns:     cfg.Agent.MaxTurns,
		Temperature:  cfg.Provider.Temperature,
		MaxTokens:    cfg.Provider.MaxTokens,
		SystemPrompt: cfg.Agent.SystemPrompt,
	})
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Orchestrator: orch,
		Logger:       zl,
	})
	if err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	// Hot-reload the log level when the config file changes.
	watcher, err := config.NewWatcher(loader, zl, func(next *config.Config) {
		log.SetLevel(next.Logging.Level)
	})
	if err != nil {
		zl.Warn().Err(err).Msg("Config watcher unavailable, log level is fixed")
	} else {
		defer watcher.Close()
	}

	zl.Info().
		Str("provider", provider.Name()).
		Strs("tools", registry.Names()).
		Msg("IntelliBrowse ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	zl.Info().Str("signal", received.String()).Msg("Shutting down")

	return server.Stop()
}
