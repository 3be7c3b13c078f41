// Package task implements durable background work item processing: a
// store-backed queue, a worker pool with crash recovery and bounded
// redelivery, and the design spec generation work item.
package task
