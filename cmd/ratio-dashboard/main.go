package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/config"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/internal/loader"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/iwvelando/ratio-dashboard/pkg/validation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

// app carries the state shared by every subcommand once the root command has
// loaded the configuration.
type app struct {
	v        *viper.Viper
	cfgFile  string
	logLevel string

	conf   *config.Configuration
	logger *zap.Logger
}

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, errors.Newf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, errors.Newf("invalid log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.Wrapf(err, "failed to create log directory %s", dir)
			}
		}

		// Test if we can create/write to the file
		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open log file %s", loggingConfig.OutputFile)
		}
		_ = file.Close()

		cfg.OutputPaths = []string{loggingConfig.OutputFile}
		cfg.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return cfg.Build()
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "ratio-dashboard",
		Short: "Explore quarterly bank financial ratios",
		Long: `ratio-dashboard loads quarterly bank ratio workbooks and answers filter,
statistics and threshold-rule queries from the command line or through the
web dashboard started by "serve".`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initialize,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", constants.DefaultConfigFile, "path to configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.String("output-format", "", "type of output override: pretty, csv")
	flags.StringSlice("source", nil, "workbook to load (repeatable); overrides data.sources")
	flags.String("sheet", "", "worksheet name; overrides data.sheet")

	_ = a.v.BindPFlag("output.format", flags.Lookup("output-format"))
	_ = a.v.BindPFlag("data.sources", flags.Lookup("source"))
	_ = a.v.BindPFlag("data.sheet", flags.Lookup("sheet"))

	root.AddCommand(
		serveCmd(a),
		optionsCmd(a),
		statsCmd(a),
		ruleCmd(a),
		periodsCmd(a),
		chartCmd(a),
	)
	return root
}

// initialize loads the configuration and the logger for every subcommand.
func (a *app) initialize(_ *cobra.Command, _ []string) error {
	conf, err := config.LoadConfigurationWith(a.v, a.cfgFile)
	if err != nil {
		return errors.Wrapf(err, "failed to load configuration at %s", a.cfgFile)
	}

	logger, err := initializeLogger(conf.Logging, a.logLevel)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	if err := validation.ValidateOutputFormat(conf.Output.Format); err != nil {
		return err
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	a.conf = conf
	a.logger = logger
	return nil
}

// loadDataset reads the configured workbooks.
func (a *app) loadDataset() (*dataset.Dataset, error) {
	ds, err := loader.Load(a.logger, a.conf.LoaderOptions(), a.conf.Features)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load dataset")
	}
	a.logger.Info("dataset loaded",
		zap.String("op", "main.loadDataset"),
		zap.Int("rows", ds.Len()),
		zap.Int("companies", len(ds.Companies())),
	)
	return ds, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": %q}\n", err.Error())
		os.Exit(1)
	}
}
