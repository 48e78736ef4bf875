package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/rzadesk/rzadesk/pkg/rza"
)

// Family names.
const (
	Calculations       = "rzadesk_calculations_total"
	InvalidResults     = "rzadesk_invalid_results_total"
	ValidationFailures = "rzadesk_validation_failures_total"
	Sessions           = "rzadesk_sessions"
)

// Registry holds per-kind counters. Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	counters map[string]map[rza.Kind]float64
	sessions func() int
}

// New creates a Registry. sessions, if non-nil, is read at scrape time for
// the rzadesk_sessions gauge.
func New(sessions func() int) *Registry {
	return &Registry{
		counters: map[string]map[rza.Kind]float64{
			Calculations:       {},
			InvalidResults:     {},
			ValidationFailures: {},
		},
		sessions: sessions,
	}
}

// ObserveResult counts one computed result, and one invalid result if any of
// its metrics rendered as NaN or Infinity.
func (r *Registry) ObserveResult(res rza.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[Calculations][res.Kind]++
	if !res.Valid() {
		r.counters[InvalidResults][res.Kind]++
	}
}

// ObserveValidationFailure counts one input rejected before computing.
func (r *Registry) ObserveValidationFailure(kind rza.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[ValidationFailures][kind]++
}

// Gather returns the current metric families sorted by name. Counter
// families with no observations yet are omitted.
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*dto.MetricFamily
	for _, c := range []struct{ name, help string }{
		{Calculations, "Calculations computed, by kind."},
		{InvalidResults, "Results with a metric rendered as NaN or Infinity, by kind."},
		{ValidationFailures, "Calculation requests rejected for invalid input, by kind."},
	} {
		// The text encoder rejects families without samples.
		if len(r.counters[c.name]) > 0 {
			out = append(out, counterFamily(c.name, c.help, r.counters[c.name]))
		}
	}
	if r.sessions != nil {
		out = append(out, &dto.MetricFamily{
			Name: proto.String(Sessions),
			Help: proto.String("Calculator sessions currently held."),
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Gauge: &dto.Gauge{Value: proto.Float64(float64(r.sessions()))},
			}},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

func counterFamily(name, help string, values map[rza.Kind]float64) *dto.MetricFamily {
	kinds := make([]string, 0, len(values))
	for k := range values {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range kinds {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: proto.String("kind"), Value: proto.String(k)}},
			Counter: &dto.Counter{Value: proto.Float64(values[rza.Kind(k)])},
		})
	}
	return mf
}

// ServeHTTP writes the families in the text exposition format.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range r.Gather() {
		if err := enc.Encode(mf); err != nil {
			slog.Error("metrics: encode family", "family", mf.GetName(), "err", err)
			return
		}
	}
}
