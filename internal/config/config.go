// Package config defines the data structures related to configuration and
// includes functions for loading, defaulting and validating the config.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/iwvelando/ratio-dashboard/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for ratio-dashboard.
type Configuration struct {
	Data       DataConfig        `yaml:"data" mapstructure:"data"`
	Features   []dataset.Feature `yaml:"features,omitempty" mapstructure:"features"`
	Statistics StatisticsConfig  `yaml:"statistics,omitempty" mapstructure:"statistics"`
	Logging    LoggingConfig     `yaml:"logging,omitempty" mapstructure:"logging"`
	Output     OutputConfig      `yaml:"output,omitempty" mapstructure:"output"`
	Server     ServerConfig      `yaml:"server,omitempty" mapstructure:"server"`
}

// DataConfig lists the workbooks the dataset is loaded from.
type DataConfig struct {
	Sources []string `yaml:"sources" mapstructure:"sources"`
	Sheet   string   `yaml:"sheet,omitempty" mapstructure:"sheet"` // empty selects the first sheet
}

// StatisticsConfig holds statistics options
type StatisticsConfig struct {
	Percentiles   []float64 `yaml:"percentiles,omitempty" mapstructure:"percentiles"`
	HistogramBins int       `yaml:"histogramBins,omitempty" mapstructure:"histogramBins"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv
}

// ServerConfig holds HTTP server options
type ServerConfig struct {
	Address      string        `yaml:"address,omitempty" mapstructure:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout,omitempty" mapstructure:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty" mapstructure:"writeTimeout"`
	MaxViews     int           `yaml:"maxViews,omitempty" mapstructure:"maxViews"`
}

// NewViper returns a viper instance with the ratio-dashboard defaults and
// RATIO_-prefixed environment overrides (e.g. RATIO_SERVER_ADDRESS).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("statistics.percentiles", constants.DefaultPercentileRanks)
	v.SetDefault("statistics.histogramBins", constants.DefaultHistogramBins)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("server.address", constants.DefaultServerAddress)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.maxViews", constants.DefaultMaxViews)
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	return LoadConfigurationWith(NewViper(), configPath)
}

// LoadConfigurationWith loads configPath into v, which may already carry
// bound command-line flags, and decodes the result.
func LoadConfigurationWith(v *viper.Viper, configPath string) (*Configuration, error) {
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, errors.Wrap(err, "unable to decode into struct")
	}

	configuration.ApplyDefaults()
	return &configuration, nil
}

// ApplyDefaults fills in the feature whitelist and any zero-valued settings.
func (c *Configuration) ApplyDefaults() {
	if len(c.Features) == 0 {
		c.Features = DefaultFeatures()
	}
	if len(c.Statistics.Percentiles) == 0 {
		c.Statistics.Percentiles = append([]float64(nil), constants.DefaultPercentileRanks...)
	}
	if c.Statistics.HistogramBins <= 0 {
		c.Statistics.HistogramBins = constants.DefaultHistogramBins
	}
	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}
	if c.Server.Address == "" {
		c.Server.Address = constants.DefaultServerAddress
	}
	if c.Server.MaxViews <= 0 {
		c.Server.MaxViews = constants.DefaultMaxViews
	}
}

// DefaultFeatures returns the built-in ratio whitelist with display names.
func DefaultFeatures() []dataset.Feature {
	names := map[string]string{
		"npl_gross":             "NPL Gross",
		"npl_net":               "NPL Net",
		"return_on_asset":       "ROA",
		"return_on_equity":      "ROE",
		"net_interest_margin":   "NIM",
		"loan_to_deposit_ratio": "LDR",
	}
	out := make([]dataset.Feature, 0, len(constants.DefaultFeatures))
	for _, col := range constants.DefaultFeatures {
		out = append(out, dataset.Feature{Column: col, DisplayName: names[col]})
	}
	return out
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	warnings = append(warnings, validation.ValidateSources(c.Data.Sources)...)
	warnings = append(warnings, validation.ValidateFeatures(c.Features)...)
	warnings = append(warnings, validation.ValidatePercentiles(c.Statistics.Percentiles)...)
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := validation.ValidateLogLevel(c.Logging.Level); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := validation.ValidateLogFormat(c.Logging.Format); err != nil {
		warnings = append(warnings, err.Error())
	}
	return warnings
}
