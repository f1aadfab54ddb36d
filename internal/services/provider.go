package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrServiceNotInitialized is returned by Call when the named service was
// never registered with the Provider.
var ErrServiceNotInitialized = errors.New("services: service not initialized")

// ErrNoServices is returned by NewProvider when given an empty service list,
// mirroring RunningAsyncServices' refusal to start with nothing to run.
var ErrNoServices = errors.New("services: must provide at least one service to run")

type job struct {
	ctx     context.Context
	payload any
	result  chan result
}

type result struct {
	value any
	err   error
}

// dispatcher owns one service's queue and pulls jobs from it whenever the
// service reports it can accept more work.
type dispatcher struct {
	service  Service
	queue    chan job
	inFlight sync.WaitGroup
}

// pollInterval is how often a dispatcher rechecks CanProcess when the
// service is reporting it is at capacity.
const pollInterval = 5 * time.Millisecond

func (d *dispatcher) run(ctx context.Context) {
	for {
		if !d.service.CanProcess() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.queue:
			if !ok {
				return
			}
			d.inFlight.Add(1)
			go func(j job) {
				defer d.inFlight.Done()
				v, err := d.service.Process(j.ctx, j.payload)
				select {
				case j.result <- result{value: v, err: err}:
				case <-j.ctx.Done():
				}
			}(j)
		}
	}
}

// Provider runs a fixed set of services, each behind its own dispatcher
// goroutine and bounded queue, and exposes Call as the sole entrypoint for
// submitting work.
type Provider struct {
	queueDepth  int
	dispatchers map[string]*dispatcher
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewProvider registers services and returns a Provider ready to Start.
// queueDepth bounds how many pending jobs may sit in a service's queue
// before Call blocks the submitter.
func NewProvider(queueDepth int, svcs ...Service) (*Provider, error) {
	if len(svcs) == 0 {
		return nil, ErrNoServices
	}
	if queueDepth <= 0 {
		queueDepth = 1
	}
	p := &Provider{queueDepth: queueDepth, dispatchers: make(map[string]*dispatcher, len(svcs))}
	for _, s := range svcs {
		p.dispatchers[s.Name()] = &dispatcher{service: s, queue: make(chan job, queueDepth)}
	}
	return p, nil
}

// Start acquires resources for every service and launches its dispatcher.
func (p *Provider) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, d := range p.dispatchers {
		if rm, ok := d.service.(ResourceManager); ok {
			if err := rm.AcquireResources(); err != nil {
				cancel()
				return fmt.Errorf("services: acquire resources for %s: %w", d.service.Name(), err)
			}
		}
	}
	for _, d := range p.dispatchers {
		d := d
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			d.run(ctx)
		}()
	}
	return nil
}

// Call submits payload to the named service's queue and blocks until a
// result is available or ctx is done.
func (p *Provider) Call(ctx context.Context, name string, payload any) (any, error) {
	d, ok := p.dispatchers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotInitialized, name)
	}
	resultCh := make(chan result, 1)
	j := job{ctx: ctx, payload: payload, result: resultCh}
	select {
	case d.queue <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resultCh:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drains every service's queue (waiting for in-flight jobs to
// finish), stops the dispatchers, and releases resources in that order —
// even if ctx is already cancelled.
func (p *Provider) Close(ctx context.Context) error {
	for _, d := range p.dispatchers {
		close(d.queue)
	}
	// A dispatcher returns once its closed queue is empty, so every queued
	// job has been handed to its service before in-flight jobs are awaited.
	p.wg.Wait()
	for _, d := range p.dispatchers {
		d.inFlight.Wait()
	}
	if p.cancel != nil {
		p.cancel()
	}

	var errs []error
	for _, d := range p.dispatchers {
		if rm, ok := d.service.(ResourceManager); ok {
			if err := rm.ReleaseResources(); err != nil {
				errs = append(errs, fmt.Errorf("services: release resources for %s: %w", d.service.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
