// Package testutil provides common utility functions for testing.
package testutil

import (
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/iwvelando/ratio-dashboard/pkg/datetime"
	"github.com/iwvelando/ratio-dashboard/pkg/period"
	"github.com/xuri/excelize/v2"
)

// FindSeries finds a company's series in the results slice.
// Returns a pointer to the series if found, nil otherwise.
func FindSeries(series []view.Series, company string) *view.Series {
	for i := range series {
		if series[i].Company == company {
			return &series[i]
		}
	}
	return nil
}

// Observation builds a dataset row from a year_quarter label such as
// "2024_q1". An empty posisi leaves the reporting date unset. It panics on a
// malformed label or date and is intended for fixtures known to be valid.
func Observation(company, tier, yearQuarter, posisi string, ratios map[string]float64) dataset.Observation {
	year, quarter, err := period.Parse(yearQuarter)
	if err != nil {
		panic(err)
	}
	obs := dataset.Observation{
		Company:     company,
		Tier:        tier,
		Year:        year,
		YearValid:   true,
		Quarter:     "q" + strconv.Itoa(quarter),
		YearQuarter: yearQuarter,
		Ratios:      ratios,
	}
	if posisi != "" {
		d := datetime.MustParseTime(datetime.DateLayout, posisi)
		obs.Posisi = &d
	}
	return obs
}

// WriteWorkbook writes rows to the first sheet of a new workbook at
// dir/name and returns its path. The first row is the header.
func WriteWorkbook(dir, name string, rows [][]interface{}) (string, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return "", err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return "", errors.Wrapf(err, "failed to write row %d", i+1)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", errors.Wrapf(err, "failed to save workbook %s", path)
	}
	return path, nil
}
