// Package api contains the HTTP handlers for the design job endpoints
// and the error-to-status mapping that keeps internal errors out of
// client responses.
package api
