// Package metrics keeps the server's calculation counters and serves them in
// the Prometheus text exposition format at GET /metrics.
//
// Families:
//
//	rzadesk_calculations_total{kind}         counter
//	rzadesk_invalid_results_total{kind}      counter, a metric rendered NaN or Infinity
//	rzadesk_validation_failures_total{kind}  counter, input rejected in strict mode
//	rzadesk_sessions                         gauge
package metrics
