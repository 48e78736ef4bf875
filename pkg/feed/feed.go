// Package feed holds the bounded, newest-first history of calculation results
// shown next to the calculator, together with the currently selected tab.
//
// A Feed is not safe for concurrent use; the owner (one UI session)
// serialises access.
package feed

import "github.com/rzadesk/rzadesk/pkg/rza"

// Capacity is the maximum number of results a Feed keeps.
const Capacity = 4

// Feed is a fixed-size ring of results, newest first.
type Feed struct {
	items    [Capacity]rza.Result
	head     int // index of the newest result
	n        int
	selected rza.Kind
}

// New returns an empty Feed with the first calculation tab selected.
func New() *Feed {
	return &Feed{selected: rza.KindOvercurrent}
}

// Push adds r as the newest result. When the feed is full the oldest result
// is dropped.
func (f *Feed) Push(r rza.Result) {
	f.head = (f.head + Capacity - 1) % Capacity
	f.items[f.head] = r
	if f.n < Capacity {
		f.n++
	}
}

// Clear removes all results. The selected kind is kept.
func (f *Feed) Clear() {
	f.items = [Capacity]rza.Result{}
	f.head = 0
	f.n = 0
}

// SelectKind switches the active calculation tab. Feed contents are not
// touched.
func (f *Feed) SelectKind(k rza.Kind) {
	f.selected = k
}

// Selected returns the active calculation tab.
func (f *Feed) Selected() rza.Kind {
	return f.selected
}

// Len returns the number of results held.
func (f *Feed) Len() int {
	return f.n
}

// Results returns a copy of the held results, newest first.
func (f *Feed) Results() []rza.Result {
	out := make([]rza.Result, f.n)
	for i := 0; i < f.n; i++ {
		out[i] = f.items[(f.head+i)%Capacity]
	}
	return out
}
