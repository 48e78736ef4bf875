// Package rza computes relay-protection (RZA) settings from named form inputs.
//
// kind.go defines the closed set of calculation kinds and their field catalog.
// formulas.go holds one typed function per kind (Overcurrent, Differential, ...)
// taking an explicit input record and returning a Result.
// engine.go provides Compute(kind, Input), which decodes the generic
// string-keyed form map into the per-kind record and dispatches.
//
// Compute never returns an error. Missing or non-numeric fields parse to NaN
// and propagate into the formatted metric values ("NaN"). Callers that want
// to reject such input call Validate first.
//
// All values are formatted with FormatFixed, which rounds the exact binary
// value half away from zero, matching the browser shell's fixed-point output.
package rza
