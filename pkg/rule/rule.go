// Package rule evaluates threshold conditions against a ratio column and
// reports how many rows satisfy them.
//
// The evaluator works in the unit of the value column. Analysts enter
// thresholds in percent units (30 meaning 0.30); converting them with
// Threshold.FromPercent is the caller's job at the input boundary.
package rule

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/iwvelando/ratio-dashboard/pkg/mathutil"
)

var (
	// ErrUnknownOperator is returned when an operator label is not recognized.
	ErrUnknownOperator = errors.New("unknown rule operator")

	// ErrInvalidThreshold is returned when a threshold is not a finite number.
	ErrInvalidThreshold = errors.New("rule threshold must be a finite number")
)

// Operator is the closed set of comparison operators.
type Operator int

const (
	Less Operator = iota
	LessOrEqual
	Equal
	GreaterOrEqual
	Greater
	Between
)

var operatorLabels = [...]string{
	Less:           "less",
	LessOrEqual:    "less_or_equal",
	Equal:          "equal",
	GreaterOrEqual: "greater_or_equal",
	Greater:        "greater",
	Between:        "between",
}

var operatorAliases = map[string]Operator{
	"<":             Less,
	"lt":            Less,
	"less than":     Less,
	"<=":            LessOrEqual,
	"le":            LessOrEqual,
	"less or same":  LessOrEqual,
	"less_or_same":  LessOrEqual,
	"=":             Equal,
	"==":            Equal,
	"eq":            Equal,
	"same":          Equal,
	">=":            GreaterOrEqual,
	"ge":            GreaterOrEqual,
	"more or same":  GreaterOrEqual,
	"more_or_same":  GreaterOrEqual,
	">":             Greater,
	"gt":            Greater,
	"more":          Greater,
	"more than":     Greater,
	"greater than":  Greater,
	"in between":    Between,
	"between_range": Between,
}

// Operators returns every operator in declaration order.
func Operators() []Operator {
	return []Operator{Less, LessOrEqual, Equal, GreaterOrEqual, Greater, Between}
}

// String returns the canonical label.
func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorLabels) {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operatorLabels[o]
}

// Symbol returns the mathematical symbol used in descriptions.
func (o Operator) Symbol() string {
	switch o {
	case Less:
		return "<"
	case LessOrEqual:
		return "<="
	case Equal:
		return "="
	case GreaterOrEqual:
		return ">="
	case Greater:
		return ">"
	case Between:
		return "between"
	}
	return "?"
}

// Valid reports whether o is one of the declared operators.
func (o Operator) Valid() bool {
	return o >= Less && o <= Between
}

// MarshalText encodes the canonical label.
func (o Operator) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, errors.Wrapf(ErrUnknownOperator, "operator %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText accepts canonical labels and aliases.
func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// ParseOperator resolves a canonical label or alias, case-insensitively.
func ParseOperator(label string) (Operator, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for i, l := range operatorLabels {
		if l == normalized {
			return Operator(i), nil
		}
	}
	if op, ok := operatorAliases[normalized]; ok {
		return op, nil
	}
	return 0, errors.WithHint(
		errors.Wrapf(ErrUnknownOperator, "%q", label),
		"expected one of: less, less_or_equal, equal, greater_or_equal, greater, between",
	)
}

// Threshold is a single value, or a (Low, High) pair for Between.
type Threshold struct {
	Value float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Low   float64 `json:"low,omitempty" yaml:"low,omitempty"`
	High  float64 `json:"high,omitempty" yaml:"high,omitempty"`
}

// Single builds a single-value threshold.
func Single(v float64) Threshold {
	return Threshold{Value: v}
}

// Range builds a (low, high) threshold for Between.
func Range(low, high float64) Threshold {
	return Threshold{Low: low, High: high}
}

// FromPercent converts a threshold entered in percent units into fractions.
func (t Threshold) FromPercent() Threshold {
	return Threshold{
		Value: mathutil.FromPercent(t.Value),
		Low:   mathutil.FromPercent(t.Low),
		High:  mathutil.FromPercent(t.High),
	}
}

// Bounds returns the Between bounds in ascending order.
func (t Threshold) Bounds() (float64, float64) {
	if t.Low > t.High {
		return t.High, t.Low
	}
	return t.Low, t.High
}

// Rule pairs an operator with its threshold.
type Rule struct {
	Operator  Operator  `json:"operator" yaml:"operator"`
	Threshold Threshold `json:"threshold" yaml:"threshold"`
}

// Validate checks the rule is evaluable.
func (r Rule) Validate() error {
	if !r.Operator.Valid() {
		return errors.Wrapf(ErrUnknownOperator, "operator %d", int(r.Operator))
	}
	if r.Operator == Between {
		if !mathutil.IsFinite(r.Threshold.Low) || !mathutil.IsFinite(r.Threshold.High) {
			return ErrInvalidThreshold
		}
		return nil
	}
	if !mathutil.IsFinite(r.Threshold.Value) {
		return ErrInvalidThreshold
	}
	return nil
}

// Result is the outcome of evaluating a rule over a column.
type Result struct {
	Matched  int     `json:"matchedCount"`
	Total    int     `json:"totalConsidered"`
	Fraction float64 `json:"matchedFraction"`
}

// Evaluate counts the finite values satisfying op against threshold.
// Non-finite values are excluded from both Matched and Total.
func Evaluate(values []float64, op Operator, threshold Threshold) Result {
	match := matcher(op, threshold)

	var res Result
	for _, v := range values {
		if !mathutil.IsFinite(v) {
			continue
		}
		res.Total++
		if match(v) {
			res.Matched++
		}
	}
	res.Fraction = mathutil.Fraction(res.Matched, res.Total)
	return res
}

// Evaluate runs the rule over values.
func (r Rule) Evaluate(values []float64) Result {
	return Evaluate(values, r.Operator, r.Threshold)
}

func matcher(op Operator, t Threshold) func(float64) bool {
	switch op {
	case Less:
		return func(v float64) bool { return v < t.Value }
	case LessOrEqual:
		return func(v float64) bool { return v <= t.Value }
	case Equal:
		return func(v float64) bool {
			return mathutil.WithinTolerance(v, t.Value, constants.EqualityTolerance)
		}
	case GreaterOrEqual:
		return func(v float64) bool { return v >= t.Value }
	case Greater:
		return func(v float64) bool { return v > t.Value }
	case Between:
		low, high := t.Bounds()
		return func(v float64) bool { return v >= low && v <= high }
	}
	return func(float64) bool { return false }
}

// Describe renders a human-readable summary of a rule result, formatting
// thresholds and the matched fraction as percentages.
func Describe(column string, r Rule, res Result) string {
	var condition string
	if r.Operator == Between {
		low, high := r.Threshold.Bounds()
		condition = fmt.Sprintf("between %s and %s", formatPercent(low), formatPercent(high))
	} else {
		condition = fmt.Sprintf("%s %s", r.Operator.Symbol(), formatPercent(r.Threshold.Value))
	}
	return fmt.Sprintf("%s %s: %d of %d rows (%s)",
		column, condition, res.Matched, res.Total, formatPercent(res.Fraction))
}

func formatPercent(v float64) string {
	pct := mathutil.ToPercent(v)
	if pct == 0 {
		pct = math.Abs(pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}
