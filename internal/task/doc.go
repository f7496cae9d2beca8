// Package task implements the asynchronous queue at the center of the
// service: submission, a bounded worker pool, status tracking, artifact
// handoff, and expiry of abandoned work.
//
// Task state lives in process memory. A restart forgets queued and
// finished tasks alike; callers are expected to resubmit, and artifact
// blobs from a previous run are cleared by the store at startup.
package task
