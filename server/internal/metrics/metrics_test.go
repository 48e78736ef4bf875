package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/rzadesk/rzadesk/pkg/rza"
)

func scrape(t *testing.T, r *Registry) map[string]*dto.MetricFamily {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q, want text/plain", ct)
	}
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	return mfs
}

func counterValue(mf *dto.MetricFamily, kind string) float64 {
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "kind" && l.GetValue() == kind {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func TestServeHTTP_Counters(t *testing.T) {
	reg := New(func() int { return 3 })

	reg.ObserveResult(rza.Compute(rza.KindOvercurrent, rza.Input{"in": "100", "ks": "1.3", "t": "0.5"}))
	reg.ObserveResult(rza.Compute(rza.KindOvercurrent, rza.Input{"in": "abc", "ks": "1.3", "t": "0.5"}))
	reg.ObserveResult(rza.Compute(rza.KindDistance, rza.Input{"zl": "0.4", "u": "110", "length": "10"}))
	reg.ObserveValidationFailure(rza.KindFaultCurrent)

	mfs := scrape(t, reg)

	calc := mfs[Calculations]
	if calc == nil || calc.GetType() != dto.MetricType_COUNTER {
		t.Fatalf("%s: missing or wrong type: %v", Calculations, calc)
	}
	if v := counterValue(calc, "mtz"); v != 2 {
		t.Errorf("calculations{mtz}: got %v, want 2", v)
	}
	if v := counterValue(calc, "distance"); v != 1 {
		t.Errorf("calculations{distance}: got %v, want 1", v)
	}
	if v := counterValue(mfs[InvalidResults], "mtz"); v != 1 {
		t.Errorf("invalid_results{mtz}: got %v, want 1", v)
	}
	if v := counterValue(mfs[ValidationFailures], "fault"); v != 1 {
		t.Errorf("validation_failures{fault}: got %v, want 1", v)
	}

	g := mfs[Sessions]
	if g == nil || len(g.GetMetric()) != 1 || g.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Errorf("%s: got %v, want gauge 3", Sessions, g)
	}
}

func TestServeHTTP_EmptyRegistry(t *testing.T) {
	mfs := scrape(t, New(nil))
	if len(mfs) != 0 {
		t.Errorf("families: got %d, want 0", len(mfs))
	}
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	New(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestGather_SortedByName(t *testing.T) {
	reg := New(func() int { return 0 })
	reg.ObserveResult(rza.Compute(rza.KindUnknown, nil))
	reg.ObserveValidationFailure(rza.KindOvercurrent)

	mfs := reg.Gather()
	for i := 1; i < len(mfs); i++ {
		if mfs[i-1].GetName() > mfs[i].GetName() {
			t.Errorf("Gather: %s before %s", mfs[i-1].GetName(), mfs[i].GetName())
		}
	}
}
