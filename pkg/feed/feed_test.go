package feed

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/rzadesk/rzadesk/pkg/rza"
)

// result returns a distinguishable result tagged by its title.
func result(tag string) rza.Result {
	return rza.Result{Kind: rza.KindOvercurrent, Title: tag, Metrics: []rza.Metric{}}
}

func titles(rs []rza.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Title
	}
	return out
}

func TestNew_Empty(t *testing.T) {
	f := New()
	if f.Len() != 0 {
		t.Errorf("Len: got %d, want 0", f.Len())
	}
	if got := f.Results(); len(got) != 0 {
		t.Errorf("Results: got %v, want empty", got)
	}
	if f.Selected() != rza.KindOvercurrent {
		t.Errorf("Selected: got %q, want mtz", f.Selected())
	}
}

func TestPush_NewestFirst(t *testing.T) {
	f := New()
	f.Push(result("r1"))
	f.Push(result("r2"))
	f.Push(result("r3"))

	got := titles(f.Results())
	want := []string{"r3", "r2", "r1"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Results: got %v, want %v", got, want)
	}
}

func TestPush_FifthEvictsOnlyOldest(t *testing.T) {
	f := New()
	for i := 1; i <= 4; i++ {
		f.Push(result(fmt.Sprintf("r%d", i)))
	}
	before := titles(f.Results())

	f.Push(result("r5"))

	got := titles(f.Results())
	want := []string{"r5", "r4", "r3", "r2"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Results: got %v, want %v", got, want)
	}
	// Everything except the previous tail survives in place.
	if fmt.Sprint(got[1:]) != fmt.Sprint(before[:3]) {
		t.Errorf("survivors: got %v, want %v", got[1:], before[:3])
	}
}

func TestPush_DuplicatesKept(t *testing.T) {
	f := New()
	r := rza.Compute(rza.KindOvercurrent, rza.Input{"in": "100", "ks": "1.3", "t": "0.5"})
	f.Push(r)
	f.Push(r)
	if f.Len() != 2 {
		t.Errorf("Len: got %d, want 2", f.Len())
	}
}

func TestClear(t *testing.T) {
	f := New()
	f.SelectKind(rza.KindDistance)
	f.Push(result("r1"))
	f.Push(result("r2"))

	f.Clear()

	if f.Len() != 0 || len(f.Results()) != 0 {
		t.Errorf("after Clear: Len %d, Results %v", f.Len(), f.Results())
	}
	if f.Selected() != rza.KindDistance {
		t.Errorf("Selected after Clear: got %q, want distance", f.Selected())
	}

	f.Push(result("r3"))
	if got := titles(f.Results()); len(got) != 1 || got[0] != "r3" {
		t.Errorf("Results after Clear+Push: got %v, want [r3]", got)
	}
}

func TestSelectKind_LeavesFeedAlone(t *testing.T) {
	f := New()
	f.Push(result("r1"))
	f.SelectKind(rza.KindZeroSequence)

	if f.Selected() != rza.KindZeroSequence {
		t.Errorf("Selected: got %q, want tznp", f.Selected())
	}
	if got := titles(f.Results()); len(got) != 1 || got[0] != "r1" {
		t.Errorf("Results: got %v, want [r1]", got)
	}
}

func TestResults_ReturnsCopy(t *testing.T) {
	f := New()
	f.Push(result("r1"))
	got := f.Results()
	got[0].Title = "mutated"
	if f.Results()[0].Title != "r1" {
		t.Error("Results: caller mutation leaked into feed")
	}
}

// TestPush_Bounded_Property checks that for any number of pushes the feed
// holds the last min(n, 4) results in reverse push order.
func TestPush_Bounded_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(rt, "pushes")
		f := New()
		for i := 0; i < n; i++ {
			f.Push(result(fmt.Sprint(i)))
			if f.Len() > Capacity {
				rt.Fatalf("Len %d exceeds capacity after %d pushes", f.Len(), i+1)
			}
		}

		want := min(n, Capacity)
		got := f.Results()
		if len(got) != want {
			rt.Fatalf("Results: got %d, want %d", len(got), want)
		}
		for i, r := range got {
			if exp := fmt.Sprint(n - 1 - i); r.Title != exp {
				rt.Fatalf("Results[%d]: got %s, want %s", i, r.Title, exp)
			}
		}
	})
}
