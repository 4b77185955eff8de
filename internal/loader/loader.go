// Package loader reads the quarterly ratio workbooks, unions them by column
// name and normalizes every row once into a dataset.Dataset.
package loader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/iwvelando/ratio-dashboard/pkg/datetime"
	"github.com/iwvelando/ratio-dashboard/pkg/mathutil"
	"github.com/iwvelando/ratio-dashboard/pkg/period"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoSources is returned when no workbook paths are configured.
	ErrNoSources = errors.New("no data sources configured")

	// ErrMissingColumn is returned when a required column is absent from every source.
	ErrMissingColumn = errors.New("required column missing from all sources")
)

// RequiredColumns must exist in at least one source table.
var RequiredColumns = []string{
	constants.ColumnCompany,
	constants.ColumnTier,
	constants.ColumnYear,
	constants.ColumnQuarter,
	constants.ColumnYearQuarter,
}

var identityColumns = map[string]struct{}{
	constants.ColumnCompany:       {},
	constants.ColumnTier:          {},
	constants.ColumnYear:          {},
	constants.ColumnQuarter:       {},
	constants.ColumnYearQuarter:   {},
	constants.ColumnPosisi:        {},
	constants.ColumnLegacySortKey: {},
}

// dateLayouts are tried in order for textual posisi values. Numeric layouts
// are all day first.
var dateLayouts = []string{
	constants.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2/1/06",
	"02-01-2006",
	"02-01-06",
	"02-Jan-2006",
	"2 January 2006",
}

// Options controls which workbooks are read.
type Options struct {
	Sources []string
	// Sheet is the worksheet to read; empty selects the first sheet.
	Sheet string
}

// Table is one source's raw cells. Header holds column names; each row is
// aligned with Header and may be shorter than it.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
}

// Load reads every workbook in opts and returns the normalized dataset.
func Load(logger *zap.Logger, opts Options, features []dataset.Feature) (*dataset.Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Sources) == 0 {
		return nil, ErrNoSources
	}

	// Workbooks are read concurrently; tables keep the source order.
	tables := make([]Table, len(opts.Sources))
	var g errgroup.Group
	for i, source := range opts.Sources {
		i, source := i, source
		g.Go(func() error {
			table, err := ReadWorkbook(source, opts.Sheet)
			if err != nil {
				return err
			}
			logger.Info("read workbook",
				zap.String("op", "loader.Load"),
				zap.String("source", source),
				zap.Int("rows", len(table.Rows)),
				zap.Int("columns", len(table.Header)),
			)
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return LoadTables(logger, tables, features)
}

// ReadWorkbook reads one sheet of an .xlsx file. Cells are read raw so that
// dates arrive as Excel serial numbers and percentages as fractions.
func ReadWorkbook(path, sheet string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, errors.Wrapf(err, "failed to open workbook %s", path)
	}
	defer func() {
		_ = f.Close()
	}()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Table{}, errors.Newf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, errors.Wrapf(err, "failed to read sheet %q of %s", sheet, path)
	}
	if len(rows) == 0 {
		return Table{Source: path}, nil
	}

	return Table{Source: path, Header: rows[0], Rows: rows[1:]}, nil
}

// LoadTables unions tables by column name (columns missing from a table read
// as null), drops the legacy sort_key column and normalizes every row.
func LoadTables(logger *zap.Logger, tables []Table, features []dataset.Feature) (*dataset.Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(tables) == 0 {
		return nil, ErrNoSources
	}

	seen := make(map[string]struct{})
	for _, table := range tables {
		for _, h := range table.Header {
			seen[normalizeHeader(h)] = struct{}{}
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := seen[col]; !ok {
			return nil, errors.Wrapf(ErrMissingColumn, "%s", col)
		}
	}

	var rows []dataset.Observation
	for _, table := range tables {
		index := make(map[string]int, len(table.Header))
		for i, h := range table.Header {
			name := normalizeHeader(h)
			if name == "" || name == constants.ColumnLegacySortKey {
				continue
			}
			if _, dup := index[name]; !dup {
				index[name] = i
			}
		}

		skipped := 0
		for r, cells := range table.Rows {
			if blankRow(cells) {
				skipped++
				continue
			}
			obs, err := normalizeRow(index, cells)
			if err != nil {
				// header is row 1, data starts at row 2
				return nil, errors.Wrapf(err, "%s row %d", table.Source, r+2)
			}
			rows = append(rows, obs)
		}

		logger.Debug("normalized table",
			zap.String("op", "loader.LoadTables"),
			zap.String("source", table.Source),
			zap.Int("blankRowsSkipped", skipped),
		)
	}

	ds := dataset.New(rows, features)
	missing := 0
	for _, f := range features {
		if _, ok := seen[f.Column]; !ok {
			missing++
			logger.Warn("configured feature not present in any source",
				zap.String("op", "loader.LoadTables"),
				zap.String("feature", f.Column),
			)
		}
	}

	logger.Info("dataset loaded",
		zap.String("op", "loader.LoadTables"),
		zap.Int("sources", len(tables)),
		zap.Int("rows", ds.Len()),
		zap.Int("companies", len(ds.Companies())),
		zap.Int("missingFeatures", missing),
	)
	return ds, nil
}

func normalizeRow(index map[string]int, cells []string) (dataset.Observation, error) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	obs := dataset.Observation{
		Company:     cell(constants.ColumnCompany),
		Tier:        cell(constants.ColumnTier),
		Quarter:     strings.ToLower(cell(constants.ColumnQuarter)),
		YearQuarter: strings.ToLower(cell(constants.ColumnYearQuarter)),
		Posisi:      ParseDate(cell(constants.ColumnPosisi)),
		Ratios:      make(map[string]float64),
	}

	year, quarter, err := period.Parse(obs.YearQuarter)
	if err != nil {
		return obs, err
	}
	obs.YearQuarter = period.Label(year, quarter)

	obs.Year, obs.YearValid = ParseYear(cell(constants.ColumnYear))
	if obs.Quarter == "" {
		obs.Quarter = "q" + strconv.Itoa(quarter)
	}

	for name, i := range index {
		if _, id := identityColumns[name]; id || i >= len(cells) {
			continue
		}
		if v := ParseRatio(cells[i]); mathutil.IsFinite(v) {
			obs.Ratios[name] = v
		}
	}

	return obs, nil
}

// ParseDate parses a posisi cell. Excel serial numbers and the layouts in
// dateLayouts are accepted; anything else, including implausible serials
// such as 2024 or 20240331, yields nil.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial <= 0 || serial > constants.MaxExcelSerial {
			return nil
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil || t.Year() < constants.MinPosisiYear {
			return nil
		}
		day := datetime.Day(t)
		return &day
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			day := datetime.Day(t)
			return &day
		}
	}
	return nil
}

// ParseYear coerces a year cell ("2024", "2024.0") to an int. The second
// return is false for non-numeric values.
func ParseYear(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if y, err := strconv.Atoi(raw); err == nil {
		return y, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || !mathutil.IsFinite(f) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// ParseRatio parses a ratio cell into a fraction. "2.34%" becomes 0.0234 and
// a lone comma is treated as the decimal separator. Blank or unparseable
// cells yield NaN.
func ParseRatio(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" {
		return math.NaN()
	}

	percent := strings.HasSuffix(raw, "%")
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	if strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	if percent {
		v = mathutil.FromPercent(v)
	}
	return v
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
