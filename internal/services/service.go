// Package services implements the cooperative service runtime: a small set
// of named, resource-constrained backends (an LLM endpoint, process and
// thread pools, a file cache, a usage recorder) each processed by its own
// dispatcher goroutine behind a bounded queue, with a single Call
// entrypoint that suspends the caller until a result is ready.
package services

import "context"

// Service is a named capability with a bounded input queue and a process
// operation. CanProcess should be fast and side-effect free; the dispatcher
// calls it before pulling each job off the queue.
type Service interface {
	Name() string
	CanProcess() bool
	Process(ctx context.Context, payload any) (any, error)
}

// ResourceManager is implemented by services that hold resources (file
// handles, worker pools, external processes) needing explicit setup and
// teardown around the provider's lifetime.
type ResourceManager interface {
	AcquireResources() error
	ReleaseResources() error
}
