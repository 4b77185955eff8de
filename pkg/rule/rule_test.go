package rule

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateOperators(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, math.NaN()}

	tests := []struct {
		name      string
		op        Operator
		threshold Threshold
		matched   int
	}{
		{name: "Less", op: Less, threshold: Single(0.3), matched: 2},
		{name: "Less or equal", op: LessOrEqual, threshold: Single(0.3), matched: 3},
		{name: "Equal", op: Equal, threshold: Single(0.3), matched: 1},
		{name: "Greater or equal", op: GreaterOrEqual, threshold: Single(0.3), matched: 2},
		{name: "Greater", op: Greater, threshold: Single(0.3), matched: 1},
		{name: "Between", op: Between, threshold: Range(0.2, 0.3), matched: 2},
		{name: "Between nothing", op: Between, threshold: Range(0.5, 0.9), matched: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(values, tt.op, tt.threshold)
			assert.Equal(t, tt.matched, res.Matched)
			assert.Equal(t, 4, res.Total, "NaN is excluded from the denominator")
			assert.InDelta(t, float64(tt.matched)/4, res.Fraction, 1e-12)
		})
	}
}

func TestEvaluateEqualTolerance(t *testing.T) {
	assert.Equal(t, 1, Evaluate([]float64{0.30000000001}, Equal, Single(0.3)).Matched)
	assert.Equal(t, 0, Evaluate([]float64{0.31}, Equal, Single(0.3)).Matched)
	assert.Equal(t, 1, Evaluate([]float64{0.1 + 0.2}, Equal, Single(0.3)).Matched)
}

func TestEvaluateBetweenSwap(t *testing.T) {
	values := []float64{0.05, 0.1, 0.2, 0.3, 0.35}
	assert.Equal(t,
		Evaluate(values, Between, Range(0.1, 0.3)),
		Evaluate(values, Between, Range(0.3, 0.1)),
	)
}

func TestEvaluateBetweenInclusive(t *testing.T) {
	res := Evaluate([]float64{0.1, 0.3}, Between, Range(0.1, 0.3))
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 1.0, res.Fraction)
}

func TestEvaluateEmpty(t *testing.T) {
	res := Evaluate(nil, Greater, Single(0.1))
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, 0.0, res.Fraction)

	res = Evaluate([]float64{math.NaN(), math.Inf(-1)}, Greater, Single(0.1))
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0.0, res.Fraction)
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		label    string
		expected Operator
		wantErr  bool
	}{
		{label: "less", expected: Less},
		{label: "LESS_OR_EQUAL", expected: LessOrEqual},
		{label: "same", expected: Equal},
		{label: " equal ", expected: Equal},
		{label: ">=", expected: GreaterOrEqual},
		{label: "more", expected: Greater},
		{label: "between", expected: Between},
		{label: "approximately", wantErr: true},
		{label: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			op, err := ParseOperator(tt.label)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownOperator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, op)
		})
	}
}

func TestOperatorRoundTrip(t *testing.T) {
	for _, op := range Operators() {
		parsed, err := ParseOperator(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
	assert.False(t, Operator(42).Valid())
	assert.Equal(t, "Operator(42)", Operator(42).String())
}

func TestRuleJSON(t *testing.T) {
	var r Rule
	require.NoError(t, json.Unmarshal([]byte(`{"operator":"between","threshold":{"low":1,"high":3}}`), &r))
	assert.Equal(t, Between, r.Operator)
	assert.Equal(t, 1.0, r.Threshold.Low)

	out, err := json.Marshal(Rule{Operator: GreaterOrEqual, Threshold: Single(0.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"operator":"greater_or_equal","threshold":{"value":0.5}}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"operator":"nope"}`), &r))
}

func TestThresholdFromPercent(t *testing.T) {
	th := Range(30, 10).FromPercent()
	low, high := th.Bounds()
	assert.InDelta(t, 0.10, low, 1e-12)
	assert.InDelta(t, 0.30, high, 1e-12)
	assert.InDelta(t, 0.02, Single(2).FromPercent().Value, 1e-12)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Rule{Operator: Less, Threshold: Single(0.1)}.Validate())
	assert.ErrorIs(t, Rule{Operator: Operator(9)}.Validate(), ErrUnknownOperator)
	assert.ErrorIs(t, Rule{Operator: Greater, Threshold: Single(math.NaN())}.Validate(), ErrInvalidThreshold)
	assert.ErrorIs(t, Rule{Operator: Between, Threshold: Range(0, math.Inf(1))}.Validate(), ErrInvalidThreshold)
}

func TestDescribe(t *testing.T) {
	r := Rule{Operator: Between, Threshold: Range(0.03, 0.01)}
	res := Result{Matched: 4, Total: 10, Fraction: 0.4}
	assert.Equal(t, "npl_gross between 1.00% and 3.00%: 4 of 10 rows (40.00%)", Describe("npl_gross", r, res))

	r = Rule{Operator: Greater, Threshold: Single(0.3)}
	assert.Equal(t, "roa > 30.00%: 0 of 0 rows (0.00%)", Describe("roa", r, Result{}))
}
