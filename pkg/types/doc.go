// Package types defines the JSON request and response bodies shared by
// rzadesk-server and the rzacalc client. Calculation results themselves are
// rza.Result values.
package types
