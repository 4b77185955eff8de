package server

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/pkg/datetime"
	"github.com/iwvelando/ratio-dashboard/pkg/rule"
)

// filterRequest carries the filter predicates. Dates use the 2006-01-02 layout.
type filterRequest struct {
	Companies []string `json:"companies" validate:"omitempty,dive,required"`
	Tiers     []string `json:"tiers" validate:"omitempty,dive,required"`
	Years     []int    `json:"years" validate:"omitempty,dive,gte=0"`
	Quarters  []string `json:"quarters" validate:"omitempty,dive,required"`
	DateFrom  string   `json:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string   `json:"dateTo" validate:"omitempty,datetime=2006-01-02"`
}

// spec converts the request into a filter.Spec. The date range needs both
// ends.
func (f filterRequest) spec() (filter.Spec, error) {
	spec := filter.Spec{
		Companies: f.Companies,
		Tiers:     f.Tiers,
		Years:     f.Years,
		Quarters:  f.Quarters,
	}
	if f.DateFrom == "" && f.DateTo == "" {
		return spec, nil
	}
	if f.DateFrom == "" || f.DateTo == "" {
		return filter.Spec{}, errors.New("dateFrom and dateTo must be given together")
	}
	dr, err := parseDateRange(f.DateFrom, f.DateTo)
	if err != nil {
		return filter.Spec{}, err
	}
	spec.DateRange = &dr
	return spec, nil
}

// ruleRequest is a threshold rule in percent units, as typed by a user:
// {"operator": "greater", "value": 5} means "greater than 0.05".
type ruleRequest struct {
	Operator string   `json:"operator" validate:"required"`
	Value    *float64 `json:"value"`
	Low      *float64 `json:"low"`
	High     *float64 `json:"high"`
}

// toRule parses the operator and converts the thresholds to fractions. A nil
// request yields a nil rule.
func (rr *ruleRequest) toRule() (*rule.Rule, error) {
	if rr == nil {
		return nil, nil
	}
	op, err := rule.ParseOperator(rr.Operator)
	if err != nil {
		return nil, err
	}

	var threshold rule.Threshold
	if op == rule.Between {
		if rr.Low == nil || rr.High == nil {
			return nil, errors.Wrap(rule.ErrInvalidThreshold, "between requires low and high")
		}
		threshold = rule.Range(*rr.Low, *rr.High)
	} else {
		if rr.Value == nil {
			return nil, errors.Wrapf(rule.ErrInvalidThreshold, "%s requires a value", op)
		}
		threshold = rule.Single(*rr.Value)
	}

	out := rule.Rule{Operator: op, Threshold: threshold.FromPercent()}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

type queryRequest struct {
	Filter      filterRequest `json:"filter"`
	Feature     string        `json:"feature" validate:"required"`
	Rule        *ruleRequest  `json:"rule" validate:"omitempty"`
	Percentiles []float64     `json:"percentiles" validate:"omitempty,dive,gte=0,lte=100"`
}

type createViewRequest struct {
	Feature     string    `json:"feature" validate:"required"`
	Percentiles []float64 `json:"percentiles" validate:"omitempty,dive,gte=0,lte=100"`
}

// patchViewRequest updates the live selectors of a view. Absent fields are
// left unchanged; an empty list clears that selector.
type patchViewRequest struct {
	Companies   *[]string    `json:"companies"`
	Tiers       *[]string    `json:"tiers"`
	Years       *[]int       `json:"years"`
	Quarters    *[]string    `json:"quarters"`
	Feature     *string      `json:"feature" validate:"omitempty,min=1"`
	Rule        *ruleRequest `json:"rule" validate:"omitempty"`
	ClearRule   bool         `json:"clearRule"`
	Percentiles *[]float64   `json:"percentiles" validate:"omitempty,dive,gte=0,lte=100"`
}

type dateRangeRequest struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

func parseDateRange(start, end string) (filter.DateRange, error) {
	s, err := datetime.ParseDay(start)
	if err != nil {
		return filter.DateRange{}, errors.Wrap(err, "start")
	}
	e, err := datetime.ParseDay(end)
	if err != nil {
		return filter.DateRange{}, errors.Wrap(err, "end")
	}
	return filter.NewDateRange(s, e)
}

// specFromQuery reads repeated or comma-separated companies, tiers, years,
// quarters and the dateFrom/dateTo pair from the URL query.
func specFromQuery(r *http.Request) (filter.Spec, error) {
	q := r.URL.Query()
	f := filterRequest{
		Companies: queryList(q["companies"]),
		Tiers:     queryList(q["tiers"]),
		Quarters:  queryList(q["quarters"]),
		DateFrom:  q.Get("dateFrom"),
		DateTo:    q.Get("dateTo"),
	}
	for _, raw := range queryList(q["years"]) {
		y, err := strconv.Atoi(raw)
		if err != nil {
			return filter.Spec{}, errors.Newf("invalid year %q", raw)
		}
		f.Years = append(f.Years, y)
	}
	return f.spec()
}

func queryList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace() + " failed '" + fe.Tag() + "'"
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		msgs = append(msgs, msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
