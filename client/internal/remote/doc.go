// Package remote is the rzacalc HTTP client for the rzadesk-server REST API.
//
// Every call goes through fetchJSON: the body is sent as JSON with
// Accept: application/json, a 2xx JSON body is decoded into the result, and
// anything else becomes an *APIError whose Message is taken from the body's
// detail, message or error field (a text body is used verbatim), falling back
// to "API error (<status>)". 422 responses also carry the rejected Fields.
//
// Transient failures are retried up to ClientConfig.Retries times with
// truncated exponential backoff and ±25% jitter: transport errors and 5xx
// responses for GET, PUT and DELETE, and only dial failures for POST.
//
// List endpoints accept either a bare JSON array or an object wrapping the
// array in items, data or results; any other shape decodes as an empty list.
//
// Authentication headers are injected by a RoundTripper: apikey sends the key
// in the configured header (X-API-Key by default), bearer sends
// "Authorization: Bearer <token>".
package remote
