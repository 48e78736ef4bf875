// Package api implements the HTTP REST API for rzadesk-server.
//
// New(store, opts) returns a Handler that serves:
//
//	GET    /api/v1/health                    status, version, session count
//	GET    /api/v1/kinds                     calculation tabs with their input fields
//	POST   /api/v1/calculate                 one-off calculation: {result, hints}
//	GET    /api/v1/sessions                  live sessions
//	POST   /api/v1/sessions                  new session (201)
//	GET    /api/v1/sessions/{id}             session with its result feed
//	DELETE /api/v1/sessions/{id}             end session (204)
//	POST   /api/v1/sessions/{id}/calculate   calculate and push onto the feed
//	PUT    /api/v1/sessions/{id}/kind        switch the selected tab
//	DELETE /api/v1/sessions/{id}/feed        clear the feed
//	GET    /api/v1/alerts                    firing and recently resolved alerts
//
// All endpoints respond with Content-Type: application/json and return 405
// for methods they do not serve. Errors use {"error": "..."}; strict-mode
// input rejections (422) add "fields".
//
// In permissive mode (the default) unusable input is computed anyway and
// shows up as NaN in the result plus an invalid_input hint per field.
//
// CORS(origins, next) adds cross-origin headers for the browser UI.
// JSON types live in pkg/types. No external HTTP framework is used.
package api
