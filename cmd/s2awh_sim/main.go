// Command s2awh_sim replays a scripted match through the visibility engine
// and prints which players were hidden from whom.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/karola3vax/Source2-AntiWallHack/internal/config"
	"github.com/karola3vax/Source2-AntiWallHack/internal/debugstream"
	"github.com/karola3vax/Source2-AntiWallHack/internal/influx"
	"github.com/karola3vax/Source2-AntiWallHack/internal/logging"
	intOtel "github.com/karola3vax/Source2-AntiWallHack/internal/otel"
	"github.com/karola3vax/Source2-AntiWallHack/internal/session"
	"github.com/karola3vax/Source2-AntiWallHack/internal/worldsim"
)

// set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "s2awh_sim:", err)
		os.Exit(1)
	}
}

type options struct {
	configDir string
	scenario  string
	ticks     int
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("s2awh_sim", pflag.ContinueOnError)
	flags.StringVar(&opts.configDir, "config-dir", ".", "directory containing "+config.FileName)
	flags.StringVarP(&opts.scenario, "scenario", "s", "", "scenario JSON file to replay")
	flags.IntVarP(&opts.ticks, "ticks", "n", 0, "ticks to simulate, 0 uses the scenario length")
	flags.String("log-level", "", "override logLevel from the config file")
	flags.Bool("debug-info", true, "publish runtime summaries")

	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if opts.scenario == "" {
		return opts, errors.New("--scenario is required")
	}
	if err := viper.BindPFlag("logLevel", flags.Lookup("log-level")); err != nil {
		return opts, err
	}
	if err := viper.BindPFlag("diagnostics.showDebugInfo", flags.Lookup("debug-info")); err != nil {
		return opts, err
	}
	return opts, nil
}

func run(args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	sess := session.NewContext()
	slogManager := logging.NewSlogManager().WithContext(sess.Attrs)
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(opts.configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", opts.configDir)
	}

	scenario, err := worldsim.LoadScenario(opts.scenario)
	if err != nil {
		return err
	}
	if opts.ticks > 0 {
		scenario.Ticks = opts.ticks
	}

	started := time.Now()
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	var logOut io.Writer
	logPath := logging.LogFilePath(logsDir, logging.ServiceName, scenario.Map, started)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
	} else {
		defer logFile.Close()
		logOut = logFile
	}

	provider := setupOTel(logger, logOut)
	var otelLogs *sdklog.LoggerProvider
	if provider != nil {
		provider.SetGlobal()
		otelLogs = provider.LoggerProvider()
	}
	slogManager.Setup(logOut, config.GetString("logLevel"), otelLogs)
	logger = slogManager.Logger()
	logger.Info("Simulator starting", "version", Version, "buildDate", BuildDate, "log", logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h := &host{
		logger:   logger,
		world:    scenario.Build(),
		session:  sess,
		influx:   setupInflux(ctx, logsDir, started),
		streamer: setupDebugStream(logger),
	}
	if err := h.start(); err != nil {
		return err
	}

	simErr := h.simulate(ctx, scenario)
	h.report(out)
	h.stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if provider != nil {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("OTel shutdown failed", "error", err)
		}
	}
	if err := slogManager.Flush(shutdownCtx); err != nil {
		logger.Warn("Log flush failed", "error", err)
	}
	return simErr
}

func setupOTel(logger *slog.Logger, out io.Writer) *intOtel.Provider {
	if !config.GetBool("otel.enabled") {
		return nil
	}
	provider, err := intOtel.New(intOtel.Config{
		Enabled:        true,
		ServiceName:    config.GetString("otel.serviceName"),
		BatchTimeout:   config.GetDuration("otel.batchTimeout"),
		LogWriter:      out,
		MetricWriter:   out,
		MetricInterval: config.GetDuration("otel.metricInterval"),
		Endpoint:       config.GetString("otel.endpoint"),
		Insecure:       config.GetBool("otel.insecure"),
	})
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		return nil
	}
	logger.Info("OTel provider initialized", "endpoint", config.GetString("otel.endpoint"))
	return provider
}

func setupInflux(ctx context.Context, logsDir string, started time.Time) *influx.Manager {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "influx").Logger()
	backup := filepath.Join(logsDir, fmt.Sprintf("%s.%s.lp.gz", influx.SummaryMeasurement, started.Format("20060102_150405")))

	m := influx.NewManager(zl, backup)
	if err := m.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			zl.Error().Err(err).Msg("InfluxDB unavailable, summaries will not be stored")
		}
		return nil
	}
	return m
}

func setupDebugStream(logger *slog.Logger) *debugstream.Streamer {
	if !config.GetBool("debugStream.enabled") {
		return nil
	}
	s := debugstream.New(debugstream.Config{
		URL:    config.GetString("debugStream.url"),
		Secret: config.GetString("debugStream.secret"),
	}, logger)
	if err := s.Init(); err != nil {
		logger.Warn("Debug stream unavailable", "error", err)
		return nil
	}
	return s
}
