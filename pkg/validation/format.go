// Package validation provides common validation utilities.
package validation

import (
	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	if format != constants.OutputFormatPretty && format != constants.OutputFormatCSV {
		return errors.Newf("expected output format of %s or %s, got %s",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
	return nil
}

// ValidateLogLevel checks if the log level is one of debug, info, warn or error.
// An empty level is accepted and means the default.
func ValidateLogLevel(level string) error {
	switch level {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return errors.Newf("expected log level of debug, info, warn or error, got %s", level)
}

// ValidateLogFormat checks if the log format is json or console. An empty
// format is accepted and means json.
func ValidateLogFormat(format string) error {
	switch format {
	case "", "json", "console":
		return nil
	}
	return errors.Newf("expected log format of json or console, got %s", format)
}
