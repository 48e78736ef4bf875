// Package alerts evaluates threshold rules against calculation results and
// delivers webhook notifications to Slack, Teams or generic HTTP targets.
//
// A rule names a metric key and a comparison:
//
//	relative_error > 10
//	stability_margin < 0
//	fault_current == nan
//
// Rules are evaluated per session; a rule that fires is not re-fired for the
// same session until its cooldown has passed, and resolves the first time a
// later result no longer meets the condition. Forget resolves whatever is
// still firing when a session is deleted or evicted.
//
// Slack and Teams messages list the calculation, the tripped metric, the
// condition and the session as attachment fields or card facts. Generic
// http targets receive {"event": "alert.firing" | "alert.resolved",
// "alert": {...}}.
package alerts
