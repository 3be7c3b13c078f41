// Package store defines persistence interfaces and shared database helpers.
// Implementations live under internal/platform.
package store
