// Package config defines conversion utilities for configuration objects.
package config

import (
	"github.com/iwvelando/ratio-dashboard/internal/loader"
)

// LoaderOptions converts the data section into loader.Options.
func (c *Configuration) LoaderOptions() loader.Options {
	return loader.Options{
		Sources: append([]string(nil), c.Data.Sources...),
		Sheet:   c.Data.Sheet,
	}
}

// FeatureColumns returns the whitelisted column names in configured order.
func (c *Configuration) FeatureColumns() []string {
	out := make([]string, 0, len(c.Features))
	for _, f := range c.Features {
		if f.Column != "" {
			out = append(out, f.Column)
		}
	}
	return out
}
