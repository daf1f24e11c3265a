// Package tasks runs metadata builds in the background.
//
// Run wraps one unit of work with a retry policy and a per-attempt deadline.
// Queue feeds remote names to build workers, dropping names that are
// already waiting, and Scheduler enqueues a full rebuild on a fixed period.
package tasks
