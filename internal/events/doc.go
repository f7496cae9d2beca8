// Package events defines the task lifecycle events the queue publishes and
// the Publisher contract consumers implement.
//
// The queue emits an event at every externally visible transition (queued,
// started, succeeded, failed, expired) without knowing who listens. Sinks
// register on a Fanout: the NATS publisher in internal/platform/natsbus for
// cross-service consumers, or test doubles in package tests. An empty Fanout
// is valid and makes publishing a no-op.
package events
