package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/ratio-dashboard/internal/config"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/internal/loader"
	"github.com/iwvelando/ratio-dashboard/internal/server"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/iwvelando/ratio-dashboard/pkg/rule"
	"github.com/iwvelando/ratio-dashboard/pkg/testutil"
	"go.uber.org/zap"
)

var header = []interface{}{
	"company_name", "kbmi_type", "year", "quarter", "year_quarter", "posisi",
	"npl_gross", "return_on_asset", "sort_key",
}

// writeFixture writes one workbook per tier plus a config file and returns
// the config path.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	kbmi1, err := testutil.WriteWorkbook(dir, "kbmi1.xlsx", [][]interface{}{
		header,
		{"Bank A", "KBMI 1", 2023, "q4", "2023_q4", "2023-12-31", 0.021, 0.011, 1},
		{"Bank A", "KBMI 1", 2024, "q1", "2024_q1", "2024-03-31", "2.50%", 0.012, 2},
		{"Bank A", "KBMI 1", 2024, "q2", "2024_q2", "2024-06-30", "", 0.013, 3},
		{"Bank C", "KBMI 1", 2024, "q1", "2024_q1", "not a date", 0.045, "", 4},
	})
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	kbmi2, err := testutil.WriteWorkbook(dir, "kbmi2.xlsx", [][]interface{}{
		header,
		{"Bank B", "KBMI 2", 2023, "q4", "2023_q4", "2023-12-31", 0.031, 0.021, 1},
		{"Bank B", "KBMI 2", 2024, "q1", "2024_q1", "2024-03-31", 0.052, 0.022, 2},
		{"Bank B", "KBMI 2", 2024, "q2", "2024_q2", "2024-06-30", 0.061, 0.023, 3},
	})
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}

	conf := strings.Join([]string{
		"data:",
		"  sources:",
		"    - " + kbmi1,
		"    - " + kbmi2,
		"features:",
		"  - column: npl_gross",
		"    displayName: NPL Gross",
		"  - column: return_on_asset",
		"    displayName: ROA",
		"statistics:",
		"  percentiles: [25, 75]",
		"logging:",
		"  level: error",
	}, "\n") + "\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestEndToEnd loads workbooks through the configuration and drives a view
// through every kind of selection.
func TestEndToEnd(t *testing.T) {
	conf, err := config.LoadConfiguration(writeFixture(t))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if warnings := conf.ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("unexpected configuration warnings: %v", warnings)
	}

	ds, err := loader.Load(zap.NewNop(), conf.LoaderOptions(), conf.Features)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Len() != 7 {
		t.Fatalf("expected 7 rows, got %d", ds.Len())
	}

	v := view.New("npl_gross")
	v.SetPercentiles(conf.Statistics.Percentiles)

	res, err := v.Query(ds)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if strings.Join(res.OrderedPeriods, ",") != "2023_q4,2024_q1,2024_q2" {
		t.Errorf("unexpected period order %v", res.OrderedPeriods)
	}
	if res.Stats.Count != 6 {
		t.Errorf("blank ratio cells should be excluded, got count %d", res.Stats.Count)
	}
	bankA := testutil.FindSeries(res.Series, "Bank A")
	if bankA == nil || len(bankA.Points) != 3 {
		t.Fatalf("unexpected Bank A series %+v", bankA)
	}
	if bankA.Points[1].Value == nil || *bankA.Points[1].Value != 0.025 {
		t.Errorf("percent text should load as a fraction, got %v", bankA.Points[1].Value)
	}
	if bankA.Points[2].Value != nil {
		t.Error("a blank cell should be a gap in the series")
	}

	v.SetTiers([]string{"KBMI 1"})
	if err := v.SetRule(rule.Rule{Operator: rule.GreaterOrEqual, Threshold: rule.Single(2.5).FromPercent()}); err != nil {
		t.Fatalf("SetRule() error = %v", err)
	}
	res, err = v.Query(ds)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.RuleText != "npl_gross >= 2.50%: 2 of 3 rows (66.67%)" {
		t.Errorf("unexpected rule text %q", res.RuleText)
	}

	start, _ := time.Parse("2006-01-02", "2024-01-01")
	end, _ := time.Parse("2006-01-02", "2024-12-31")
	v.StageDateRange(start, end)
	staged, _ := v.Query(ds)
	if staged.RowCount != res.RowCount {
		t.Errorf("staging changed the result: %d -> %d rows", res.RowCount, staged.RowCount)
	}
	v.ApplyDateRange()
	applied, _ := v.Query(ds)
	if applied.RowCount != 2 {
		t.Errorf("Bank C has no reporting date and must drop out, got %d rows", applied.RowCount)
	}

	options := filter.Options(ds, v.Spec())
	if strings.Join(options.Companies, ",") != "Bank A,Bank C" {
		t.Errorf("unexpected dependent companies %v", options.Companies)
	}
}

// TestServerRoundTrip serves the loaded dataset over a real listener.
func TestServerRoundTrip(t *testing.T) {
	conf, err := config.LoadConfiguration(writeFixture(t))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	ds, err := loader.Load(zap.NewNop(), conf.LoaderOptions(), conf.Features)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	srv := httptest.NewServer(server.NewHandler(zap.NewNop(), ds, server.Options{
		Version:     "integration",
		Percentiles: conf.Statistics.Percentiles,
	}))
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"feature": "return_on_asset",
		"filter":  map[string]interface{}{"tiers": []string{"KBMI 2"}},
		"rule":    map[string]interface{}{"operator": "<", "value": 2.25},
	})
	resp, err := http.Post(srv.URL+"/api/query", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/query failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var res view.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.DisplayName != "ROA" || res.RowCount != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Rule == nil || res.Rule.Matched != 2 {
		t.Errorf("unexpected rule result %+v", res.Rule)
	}
	if len(res.Stats.Percentiles) != 2 || res.Stats.Percentiles[0].Rank != 25 {
		t.Errorf("configured percentiles were not used: %+v", res.Stats.Percentiles)
	}
}
