// Package batch loads and runs YAML files of calculations for rzacalc.
//
// A batch file looks like:
//
//	calculations:
//	  - kind: mtz
//	    input: {in: "100", ks: "1.3", t: "0.5"}
//	  - kind: distance
//	    input: {zl: "0.4", u: "110", length: "25"}
//
// Input values are strings so they reach the calculator exactly as typed;
// bare YAML numbers are accepted and converted with their literal text.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rzadesk/rzadesk/pkg/feed"
	"github.com/rzadesk/rzadesk/pkg/rza"
	"github.com/rzadesk/rzadesk/pkg/types"
)

// File is a parsed batch file.
type File struct {
	Calculations []Calculation `yaml:"calculations"`
}

// Calculation is one entry of a batch file.
type Calculation struct {
	Kind  string    `yaml:"kind"`
	Input rza.Input `yaml:"input"`
}

// Load reads and parses the batch file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("batch: read file: %w", err)
	}
	return Parse(data)
}

// Parse parses batch YAML and checks that it is runnable.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("batch: parse yaml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, fmt.Errorf("batch: %w", err)
	}
	return f, nil
}

// Validate checks that there is at least one calculation and that every
// kind is a known tag. Input values are not checked.
func (f File) Validate() error {
	if len(f.Calculations) == 0 {
		return errors.New("calculations must not be empty")
	}
	for i, c := range f.Calculations {
		if strings.TrimSpace(c.Kind) == "" {
			return fmt.Errorf("calculations[%d]: kind is required", i)
		}
		if !rza.ParseKind(c.Kind).Known() {
			return fmt.Errorf("calculations[%d]: unknown kind %q", i, c.Kind)
		}
	}
	return nil
}

// Run computes every calculation in order through a fresh feed and returns
// it. The feed holds the newest results first, capped at feed.Capacity; the
// last calculation's kind is left selected.
func (f File) Run() *feed.Feed {
	fd := feed.New()
	for _, c := range f.Calculations {
		kind := rza.ParseKind(c.Kind)
		fd.SelectKind(kind)
		fd.Push(rza.Compute(kind, c.Input))
	}
	return fd
}

// SessionClient is the part of the server API a remote batch needs.
type SessionClient interface {
	SelectKind(ctx context.Context, id string, kind rza.Kind) (types.SessionResponse, error)
	SessionCalculate(ctx context.Context, id string, kind rza.Kind, in rza.Input) (types.CalculateResponse, error)
}

// RunSession replays the calculations in the server session id, selecting
// each entry's kind before computing it as Run does, and returns the
// session as it stands after the last entry.
func (f File) RunSession(ctx context.Context, c SessionClient, id string) (types.SessionResponse, error) {
	var sess types.SessionResponse
	for i, calc := range f.Calculations {
		kind := rza.ParseKind(calc.Kind)
		var err error
		if sess, err = c.SelectKind(ctx, id, kind); err != nil {
			return sess, fmt.Errorf("calculations[%d]: select %s: %w", i, kind, err)
		}
		resp, err := c.SessionCalculate(ctx, id, kind, calc.Input)
		if err != nil {
			return sess, fmt.Errorf("calculations[%d]: %w", i, err)
		}
		if resp.Session != nil {
			sess = *resp.Session
		}
	}
	return sess, nil
}
