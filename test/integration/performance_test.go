package integration

import (
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/iwvelando/ratio-dashboard/pkg/period"
	"github.com/iwvelando/ratio-dashboard/pkg/rule"
	"github.com/iwvelando/ratio-dashboard/pkg/testutil"
)

// TestRunner is a simple test runner for debugging
func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}

// syntheticDataset builds companies x quarters rows spread over four tiers.
// Every seventh value is missing.
func syntheticDataset(companies, years int) *dataset.Dataset {
	rows := make([]dataset.Observation, 0, companies*years*4)
	n := 0
	for c := 0; c < companies; c++ {
		name := fmt.Sprintf("Bank %03d", c)
		tier := fmt.Sprintf("KBMI %d", c%4+1)
		for y := 0; y < years; y++ {
			for q := 1; q <= 4; q++ {
				year := 2000 + y
				end := time.Date(year, time.Month(q*3)+1, 0, 0, 0, 0, 0, time.UTC)
				npl := 0.01 + float64((c*7+y*3+q)%50)/1000
				if n%7 == 0 {
					npl = math.NaN()
				}
				rows = append(rows, testutil.Observation(name, tier, period.Label(year, q), end.Format("2006-01-02"),
					map[string]float64{"npl_gross": npl}))
				n++
			}
		}
	}
	return dataset.New(rows, []dataset.Feature{{Column: "npl_gross", DisplayName: "NPL Gross"}})
}

// TestPerformance tests performance characteristics
func TestPerformance(t *testing.T) {
	start := time.Now()
	ds := syntheticDataset(120, 25)
	buildTime := time.Since(start)

	r := rule.Rule{Operator: rule.Between, Threshold: rule.Range(2, 4).FromPercent()}
	spec := filter.Spec{Tiers: []string{"KBMI 1", "KBMI 3"}}

	start = time.Now()
	res, err := view.Evaluate(ds, spec, "npl_gross", &r, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	evalTime := time.Since(start)

	start = time.Now()
	options := filter.Options(ds, spec)
	optionsTime := time.Since(start)

	totalTime := buildTime + evalTime + optionsTime

	t.Logf("Performance metrics:")
	t.Logf("  Build dataset (%d rows): %v", ds.Len(), buildTime)
	t.Logf("  Evaluate view: %v", evalTime)
	t.Logf("  Derive options: %v", optionsTime)
	t.Logf("  Total time: %v", totalTime)

	if totalTime > 10*time.Second {
		t.Errorf("Total processing time %v exceeds 10 second threshold", totalTime)
	}
	if res.RowCount != ds.Len()/2 {
		t.Errorf("expected half the rows, got %d of %d", res.RowCount, ds.Len())
	}
	if len(res.OrderedPeriods) != 100 {
		t.Errorf("expected 100 periods, got %d", len(res.OrderedPeriods))
	}
	if len(options.Companies) != 60 {
		t.Errorf("expected 60 companies in the selected tiers, got %d", len(options.Companies))
	}
}

// TestConcurrentViews drives independent views over one shared dataset.
func TestConcurrentViews(t *testing.T) {
	ds := syntheticDataset(40, 10)
	registry := view.NewRegistry(0)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := view.New("npl_gross")
			id, err := registry.Create(v)
			if err != nil {
				errs <- err
				return
			}
			v.SetTiers([]string{fmt.Sprintf("KBMI %d", i%4+1)})
			v.StageDateRange(time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2009, 12, 31, 0, 0, 0, 0, time.UTC))
			if i%2 == 0 {
				v.ApplyDateRange()
			}
			res, err := v.Query(ds)
			if err != nil {
				errs <- err
				return
			}
			want := 10 * 10 * 4
			if i%2 == 0 {
				want /= 2
			}
			if res.RowCount != want {
				errs <- fmt.Errorf("view %d: expected %d rows, got %d", i, want, res.RowCount)
			}
			_ = registry.Delete(id)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if registry.Len() != 0 {
		t.Errorf("expected every view to be deleted, %d left", registry.Len())
	}
}

// TestDataConsistency checks that repeated evaluations are identical and
// do not mutate the dataset.
func TestDataConsistency(t *testing.T) {
	ds := syntheticDataset(20, 5)
	spec := filter.Spec{Companies: []string{"Bank 001", "Bank 002"}, Quarters: []string{"q4"}}

	first, err := view.Evaluate(ds, spec, "npl_gross", nil, []float64{10, 90})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := view.Evaluate(ds, spec, "npl_gross", nil, []float64{10, 90})
		if err != nil {
			t.Fatalf("Evaluate failed on iteration %d: %v", i, err)
		}
		if again.RowCount != first.RowCount || *again.Stats.Mean != *first.Stats.Mean {
			t.Fatalf("iteration %d differs: %+v vs %+v", i, again.Stats, first.Stats)
		}
	}
	if ds.Len() != 20*5*4 {
		t.Errorf("dataset was mutated: %d rows", ds.Len())
	}
}
