package services

import (
	"context"
	"fmt"
	"sync"
)

// PoolJob is the payload type accepted by ProcessPoolService and
// ThreadPoolService: an arbitrary unit of work plus its result.
type PoolJob struct {
	Fn func(ctx context.Context) (any, error)
}

// boundedPoolService limits the number of concurrently executing jobs to
// Size, tracked with a counting semaphore. ProcessPoolService and
// ThreadPoolService are thin, separately-named wrappers around this so
// config can size them independently (CPU-bound parsing/OCR work vs.
// IO-bound fetches).
type boundedPoolService struct {
	name string
	size int

	mu      sync.Mutex
	inUse   int
	started bool
	sem     chan struct{}
}

func newBoundedPoolService(name string, size int) *boundedPoolService {
	if size <= 0 {
		size = 1
	}
	return &boundedPoolService{name: name, size: size, sem: make(chan struct{}, size)}
}

func (s *boundedPoolService) Name() string { return s.name }

func (s *boundedPoolService) CanProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse < s.size
}

func (s *boundedPoolService) Process(ctx context.Context, payload any) (any, error) {
	job, ok := payload.(PoolJob)
	if !ok {
		return nil, fmt.Errorf("services: %s expects PoolJob, got %T", s.name, payload)
	}
	s.mu.Lock()
	s.inUse++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inUse--
		s.mu.Unlock()
	}()
	if job.Fn == nil {
		return nil, fmt.Errorf("services: %s received a PoolJob with no Fn", s.name)
	}
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()
	return job.Fn(ctx)
}

// ProcessPoolService bounds concurrent CPU-bound work (PDF parsing, OCR
// invocations) to Size workers, modeling the original's multiprocessing
// pool as a goroutine-count limiter rather than a true OS process pool.
type ProcessPoolService struct {
	*boundedPoolService
}

// NewProcessPoolService returns a ProcessPoolService bounded to size
// concurrent jobs.
func NewProcessPoolService(size int) *ProcessPoolService {
	return &ProcessPoolService{boundedPoolService: newBoundedPoolService("ProcessPoolService", size)}
}

// ThreadPoolService bounds concurrent IO-bound work (document fetches,
// file reads) to Size workers.
type ThreadPoolService struct {
	*boundedPoolService
}

// NewThreadPoolService returns a ThreadPoolService bounded to size
// concurrent jobs.
func NewThreadPoolService(size int) *ThreadPoolService {
	return &ThreadPoolService{boundedPoolService: newBoundedPoolService("ThreadPoolService", size)}
}
