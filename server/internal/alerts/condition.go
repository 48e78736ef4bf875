package alerts

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rzadesk/rzadesk/pkg/rza"
)

// condition is a parsed "<metric_key> <op> <value>" expression.
type condition struct {
	key       string
	op        string
	threshold float64
	nan       bool // "<key> == nan": fires on NaN or infinite values
}

func parseCondition(s string) (condition, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("condition %q: want \"<metric> <op> <value>\"", s)
	}
	c := condition{key: parts[0], op: parts[1]}
	switch c.op {
	case ">", ">=", "<", "<=", "==":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", s, c.op)
	}
	if strings.EqualFold(parts[2], "nan") {
		if c.op != "==" {
			return condition{}, fmt.Errorf("condition %q: nan only supports ==", s)
		}
		c.nan = true
		return c, nil
	}
	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return condition{}, fmt.Errorf("condition %q: threshold: %w", s, err)
	}
	c.threshold = v
	return c, nil
}

// eval tests c against res. ok is false when res has no metric with c's key.
func (c condition) eval(res rza.Result) (fires bool, m rza.Metric, ok bool) {
	m, ok = res.Metric(c.key)
	if !ok {
		return false, m, false
	}
	if c.nan {
		return math.IsNaN(m.Raw) || math.IsInf(m.Raw, 0), m, true
	}
	return compareFloat(m.Raw, c.op, c.threshold), m, true
}

// compareFloat applies a comparison operator to two float64 values.
// Every comparison against NaN is false.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
