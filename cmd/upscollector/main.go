// Command upscollector polls Eaton UPS network cards over SNMP and writes one
// JSON telemetry record per refresh, plus alert events for battery problem
// indicators.
//
// Device configuration is read from YAML directories given by environment
// variables or flags. SIGHUP reloads it; SIGINT and SIGTERM shut down.
//
// Usage:
//
//	upscollector [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vpbank/ups_collector/pkg/upscollector/app"
	"github.com/vpbank/ups_collector/pkg/upscollector/config"
	"github.com/vpbank/ups_collector/pkg/upscollector/poller"
	filetransport "github.com/vpbank/ups_collector/transport/file"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "upscollector: %v\n", err)
		os.Exit(1)
	}
}

// fileOptions selects where records are written.
type fileOptions struct {
	split      bool
	single     string
	telemetry  string
	alerts     string
	maxBytes   int64
	maxBackups int
}

func run() error {
	// ── Flags ────────────────────────────────────────────────────────────
	var (
		logLevel string
		logFmt   string
		collID   string
		pretty   bool
		workers  int
		bufSize  int

		// Pool
		poolIdleSec int

		files fileOptions

		// Config path overrides (defaults read from env).
		cfgDevices  string
		cfgDefaults string
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&collID, "collector.id", "", "Collector instance ID (default: hostname)")
	flag.BoolVar(&pretty, "format.pretty", false, "Pretty-print JSON output")
	flag.IntVar(&workers, "poller.workers", 16, "Number of concurrent refresh workers")
	flag.IntVar(&bufSize, "pipeline.buffer.size", 1024, "Inter-stage channel buffer size")
	flag.IntVar(&poolIdleSec, "snmp.pool.idle.timeout", 300, "Idle SNMP session timeout in seconds (0=never)")

	flag.StringVar(&files.single, "transport.file", "", "Write all records to this file instead of stdout")
	flag.BoolVar(&files.split, "transport.file.split", false, "Split output: telemetry and alerts to separate files")
	flag.StringVar(&files.telemetry, "transport.file.telemetry", "ups_telemetry.json", "Output file for telemetry records (split mode)")
	flag.StringVar(&files.alerts, "transport.file.alerts", "ups_alerts.json", "Output file for alert events (split mode)")
	flag.Int64Var(&files.maxBytes, "transport.file.max.bytes", 0, "Max file size in bytes before rotation (0=disabled)")
	flag.IntVar(&files.maxBackups, "transport.file.max.backups", 5, "Max rotated backup files to keep (0=unlimited)")

	flag.StringVar(&cfgDevices, "config.devices", "", "Override UPS_DEVICE_DEFINITIONS_DIRECTORY_PATH")
	flag.StringVar(&cfgDefaults, "config.defaults", "", "Override UPS_DEFAULTS_DIRECTORY_PATH")

	flag.Parse()

	// ── Logger ───────────────────────────────────────────────────────────
	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	// ── Config paths ─────────────────────────────────────────────────────
	paths := config.PathsFromEnv()
	if cfgDevices != "" {
		paths.Devices = cfgDevices
	}
	if cfgDefaults != "" {
		paths.Defaults = cfgDefaults
	}

	// ── Transport ────────────────────────────────────────────────────────
	transport, err := buildTransport(files, logger)
	if err != nil {
		return err
	}

	// ── Build App ────────────────────────────────────────────────────────
	application := app.New(app.Config{
		ConfigPaths:   paths,
		CollectorID:   collID,
		PollerWorkers: workers,
		BufferSize:    bufSize,
		PrettyPrint:   pretty,
		Transport:     transport,
		PoolOptions: poller.PoolOptions{
			IdleTimeout: time.Duration(poolIdleSec) * time.Second,
		},
	}, logger)

	// ── Start ────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		_ = transport.Close()
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("upscollector: running", "devices", application.Registry().Len())

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			if err := application.Reload(); err != nil {
				logger.Error("upscollector: reload failed, keeping current configuration",
					"error", err.Error(),
				)
			}
		case <-ctx.Done():
			logger.Info("upscollector: received shutdown signal")
			application.Stop()
			return nil
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}

// buildTransport returns a split transport over two rotating files, a single
// rotating file, or stdout, in that order of preference.
func buildTransport(o fileOptions, logger *slog.Logger) (filetransport.Transport, error) {
	rotating := func(path string) (*filetransport.RotatingFile, error) {
		return filetransport.NewRotatingFile(filetransport.RotateConfig{
			FilePath:   path,
			MaxBytes:   o.maxBytes,
			MaxBackups: o.maxBackups,
		}, logger)
	}

	switch {
	case o.split:
		tel, err := rotating(o.telemetry)
		if err != nil {
			return nil, err
		}
		alerts, err := rotating(o.alerts)
		if err != nil {
			_ = tel.Close()
			return nil, err
		}
		logger.Info("upscollector: split file output",
			"telemetry", o.telemetry, "alerts", o.alerts,
		)
		return filetransport.NewSplit(filetransport.SplitConfig{
			TelemetryWriter: tel,
			AlertWriter:     alerts,
		}, logger), nil

	case o.single != "":
		f, err := rotating(o.single)
		if err != nil {
			return nil, err
		}
		return filetransport.New(filetransport.Config{Writer: f}, logger), nil
	}
	return filetransport.New(filetransport.Config{}, logger), nil
}
