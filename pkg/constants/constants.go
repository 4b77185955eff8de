// Package constants provides shared constants for the ratio-dashboard application.
package constants

// DateLayout is the canonical reporting-date (posisi) format used in config
// files, query parameters and output.
const DateLayout = "2006-01-02"

// Excel serial posisi bounds. Serials past MaxExcelSerial (9999-12-31) or
// resolving before MinPosisiYear are treated as missing dates.
const (
	MaxExcelSerial = 2958465
	MinPosisiYear  = 1970
)

// Statistics constants
const (
	// EqualityTolerance is the absolute tolerance used by the EQUAL rule operator.
	EqualityTolerance = 1e-9

	// PercentMultiplier converts between percent units and stored fractions.
	PercentMultiplier = 100.0

	// DefaultHistogramBins is the bin count used for histograms.
	DefaultHistogramBins = 20
)

// DefaultPercentileRanks is the fixed superset of percentile ranks reported by
// the statistics calculator when a caller does not request specific ranks.
var DefaultPercentileRanks = []float64{5, 10, 15, 25, 75, 85, 90, 95}

// Dataset column names.
const (
	ColumnCompany     = "company_name"
	ColumnTier        = "kbmi_type"
	ColumnYear        = "year"
	ColumnQuarter     = "quarter"
	ColumnYearQuarter = "year_quarter"
	ColumnPosisi      = "posisi"

	// ColumnLegacySortKey is dropped on load; ordering is always recomputed.
	ColumnLegacySortKey = "sort_key"
)

// DefaultFeatures is the ratio-column whitelist used when the configuration
// does not list any features.
var DefaultFeatures = []string{
	"npl_gross",
	"npl_net",
	"return_on_asset",
	"return_on_equity",
	"net_interest_margin",
	"loan_to_deposit_ratio",
}

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "RATIO"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxViews bounds the number of live server-side views
	DefaultMaxViews = 256

	// DefaultMaxBodyBytes is the maximum accepted JSON request body (64 KB)
	DefaultMaxBodyBytes int64 = 64 * 1024

	// DefaultChartWidthCm and DefaultChartHeightCm size rendered PNG charts
	DefaultChartWidthCm  = 24
	DefaultChartHeightCm = 12
)
