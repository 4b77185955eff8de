package server

import (
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/config"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address       string               `yaml:"address"`
	MaxBodySize   string               `yaml:"maxBodySize"`
	MaxViews      int                  `yaml:"maxViews"`
	ReadTimeout   time.Duration        `yaml:"readTimeout"`
	WriteTimeout  time.Duration        `yaml:"writeTimeout"`
	Logging       config.LoggingConfig `yaml:"logging"`
	bodySizeBytes int64
}

// DefaultConfig returns the server defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:       constants.DefaultServerAddress,
		MaxBodySize:   strconv.FormatInt(constants.DefaultMaxBodyBytes, 10),
		MaxViews:      constants.DefaultMaxViews,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  30 * time.Second,
		Logging:       config.LoggingConfig{},
		bodySizeBytes: constants.DefaultMaxBodyBytes,
	}
}

// FromConfiguration derives the server config from the main configuration.
func FromConfiguration(c *config.Configuration) *Config {
	cfg := DefaultConfig()
	if c == nil {
		return cfg
	}
	if c.Server.Address != "" {
		cfg.Address = c.Server.Address
	}
	if c.Server.MaxViews > 0 {
		cfg.MaxViews = c.Server.MaxViews
	}
	if c.Server.ReadTimeout > 0 {
		cfg.ReadTimeout = c.Server.ReadTimeout
	}
	if c.Server.WriteTimeout > 0 {
		cfg.WriteTimeout = c.Server.WriteTimeout
	}
	cfg.Logging = c.Logging
	return cfg
}

// LoadConfig loads the server configuration from YAML on top of base. If the
// file does not exist, base is returned without error. A nil base selects
// DefaultConfig.
func LoadConfig(path string, base *Config) (*Config, error) {
	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "failed to read server config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse server config")
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BodySizeBytes returns the configured request body limit in bytes.
func (c *Config) BodySizeBytes() int64 {
	if c.bodySizeBytes <= 0 {
		return constants.DefaultMaxBodyBytes
	}
	return c.bodySizeBytes
}

// SetBodySizeBytes overrides the configured body limit.
func (c *Config) SetBodySizeBytes(size int64) {
	if size > 0 {
		c.bodySizeBytes = size
		c.MaxBodySize = strconv.FormatInt(size, 10)
	}
}

func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}
	if c.MaxViews <= 0 {
		c.MaxViews = constants.DefaultMaxViews
	}

	sizeStr := strings.TrimSpace(c.MaxBodySize)
	if sizeStr == "" {
		c.bodySizeBytes = constants.DefaultMaxBodyBytes
		c.MaxBodySize = strconv.FormatInt(constants.DefaultMaxBodyBytes, 10)
		return nil
	}

	bytes, err := ParseSize(sizeStr)
	if err != nil {
		return err
	}
	if bytes <= 0 {
		bytes = constants.DefaultMaxBodyBytes
	}
	c.bodySizeBytes = bytes
	return nil
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "10M") into bytes.
func ParseSize(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return constants.DefaultMaxBodyBytes, nil
	}

	upper := strings.ToUpper(trimmed)
	idx := len(upper)
	for idx > 0 && !unicode.IsDigit(rune(upper[idx-1])) {
		idx--
	}
	if idx == 0 {
		return 0, errors.Newf("invalid size: %s", value)
	}
	numPart := strings.TrimSpace(upper[:idx])
	unitPart := strings.TrimSpace(upper[idx:])

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size value %q", value)
	}

	var multiplier int64
	switch unitPart {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	default:
		return 0, errors.Newf("unsupported size unit %q", unitPart)
	}

	result := n * multiplier
	if result < 0 {
		return 0, errors.Newf("size overflow for value %s", value)
	}
	return result, nil
}
