package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tlsgatedev/tlsgate/internal/config"
	"github.com/tlsgatedev/tlsgate/internal/gateway"
	"github.com/tlsgatedev/tlsgate/internal/metrics"
	"github.com/tlsgatedev/tlsgate/internal/pipeline"
	"github.com/tlsgatedev/tlsgate/internal/redirect"
	"github.com/tlsgatedev/tlsgate/internal/store"
	"github.com/tlsgatedev/tlsgate/internal/version"
)

// Run is the main daemon orchestrator. It initialises all subsystems,
// starts the gateway server, and blocks until a shutdown signal is
// received.
func Run(cfg *config.Config, foreground bool) error {
	// 1. Set up zerolog logger.
	dataDir := expandHome(cfg.Server.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	zerolog.SetGlobalLevel(parseLogLevel(cfg.Server.LogLevel))

	writers := []io.Writer{}

	// Always log to file.
	logPath := filepath.Join(dataDir, "tlsgate.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()
	writers = append(writers, logFile)

	// If foreground, also write to stdout with console formatting.
	if foreground {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "tlsgate").Logger()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("tlsgate starting")

	// 2. Check if already running.
	if IsRunning(dataDir) {
		return fmt.Errorf("tlsgate is already running (PID file exists at %s)", filepath.Join(dataDir, pidFilename))
	}

	// 3. Open the audit store when metrics are enabled.
	var st *store.Store
	if cfg.Metrics.Enabled {
		dbPath := filepath.Join(dataDir, "tlsgate.db")
		st, err = store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		log.Info().Str("db_path", dbPath).Msg("audit store opened")
	}

	// 4. Build the redirect policy. A malformed host fails here, before
	// the server ever starts.
	var policy redirect.Redirector
	if cfg.Redirect.Enabled {
		base, err := redirect.NewHTTPSAndHost(cfg.Redirect.Host, httpsOptions(cfg)...)
		if err != nil {
			return fmt.Errorf("building redirect policy: %w", err)
		}
		policy = base
		if cfg.Redirect.CacheEnabled {
			policy, err = redirect.NewCachingRedirector(base, cfg.Redirect.CacheSize)
			if err != nil {
				return fmt.Errorf("building decision cache: %w", err)
			}
		}
	}

	// 5. Build the handler chain: redirect middleware around the upstream.
	upstream, err := gateway.NewUpstream(
		cfg.Upstream.URL,
		cfg.Upstream.TimeoutDuration(),
		cfg.Upstream.MaxInflight,
		log.Logger,
	)
	if err != nil {
		return fmt.Errorf("building upstream handler: %w", err)
	}

	var chain pipeline.Handler = upstream
	if policy != nil {
		chain = pipeline.Compose(upstream, redirect.NewLayer(policy))
	}

	// 6. Metrics collector and gateway server.
	collector := metrics.NewCollector()
	handler := gateway.NewHandler(chain, collector, st, log.Logger)

	var exposed *metrics.Collector
	if cfg.Metrics.Enabled {
		exposed = collector
	}
	server := gateway.NewServer(
		handler,
		fmt.Sprintf(":%d", cfg.Server.Port),
		exposed,
		time.Duration(cfg.Server.ReadTimeout)*time.Second,
		time.Duration(cfg.Server.WriteTimeout)*time.Second,
		time.Duration(cfg.Server.IdleTimeout)*time.Second,
	)

	// 7. Write PID file.
	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	// 8. Start config watcher for hot log-level changes.
	if configFile := config.ConfigFilePath(); configFile != "" {
		if watcher, watchErr := config.Watch(configFile); watchErr != nil {
			log.Warn().Err(watchErr).Msg("failed to start config watcher; continuing without hot-reload")
		} else {
			defer watcher.Close()
			watcher.OnChange(func(old, newCfg *config.Config) {
				if old.Server.LogLevel != newCfg.Server.LogLevel {
					zerolog.SetGlobalLevel(parseLogLevel(newCfg.Server.LogLevel))
					log.Info().Str("log_level", newCfg.Server.LogLevel).Msg("log level updated")
				}
			})
		}
	}

	// 9. Start the audit pruner.
	pruneCtx, pruneCancel := context.WithCancel(context.Background())
	prunerDone := make(chan struct{})
	go func() {
		defer close(prunerDone)
		if st != nil {
			runPruner(pruneCtx, st, cfg.Metrics.RetentionDays)
		}
	}()

	// 10. Start the server.
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Bool("tls", cfg.Server.TLSEnabled).Msg("gateway listening")
		if cfg.Server.TLSEnabled {
			errCh <- server.StartTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			errCh <- server.Start()
		}
	}()

	// 11. Wait for a shutdown signal or a fatal server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal server error")
		pruneCancel()
		<-prunerDone
		return err
	}

	// 12. Graceful shutdown with 30-second timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info().Msg("shutting down server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	pruneCancel()
	<-prunerDone

	log.Info().Msg("tlsgate stopped")
	return nil
}

// httpsOptions maps config flags onto policy options.
func httpsOptions(cfg *config.Config) []redirect.Option {
	var opts []redirect.Option
	if cfg.Redirect.StrictProtoMatch {
		opts = append(opts, redirect.WithStrictProtoMatch())
	}
	return opts
}

// Stop reads the PID file and sends SIGTERM to the running daemon.
func Stop() error {
	dataDir := expandHome(config.Get().Server.DataDir)

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("tlsgate does not appear to be running: %w", err)
	}

	if !isProcessAlive(pid) {
		// Stale PID file; clean it up.
		if rmErr := RemovePID(dataDir); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("tlsgate is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to tlsgate (PID %d)\n", pid)

	// Wait briefly for the process to exit.
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}

	return nil
}

// Status checks if the daemon is running and prints a summary.
func Status() error {
	cfg := config.Get()
	dataDir := expandHome(cfg.Server.DataDir)

	if !IsRunning(dataDir) {
		fmt.Println("tlsgate is not running")
		return nil
	}

	pid, _ := ReadPID(dataDir)
	fmt.Printf("tlsgate is running (PID %d)\n", pid)

	if !cfg.Metrics.Enabled {
		return nil
	}

	// Try to fetch the Prometheus exposition for a quick summary.
	metricsURL := fmt.Sprintf("http://localhost:%d/metrics", cfg.Server.Port)
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get(metricsURL)
	if err != nil {
		fmt.Println("  (metrics endpoint unreachable)")
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	fmt.Println()
	for _, line := range strings.Split(string(body), "\n") {
		if strings.HasPrefix(line, "tlsgate_") {
			fmt.Printf("  %s\n", line)
		}
	}

	return nil
}

// runPruner periodically prunes old rows from the audit store.
func runPruner(ctx context.Context, st *store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.Prune(retentionDays)
			if err != nil {
				log.Error().Err(err).Msg("audit pruning failed")
			} else if n > 0 {
				log.Info().Int64("rows", n).Int("retention_days", retentionDays).Msg("pruned old audit rows")
			}
		}
	}
}

// parseLogLevel converts a string log level to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
