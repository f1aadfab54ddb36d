package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/NREL/elm-sub000/internal/cache"
)

// FileCacheWrite is the payload accepted by FileCacheService for a write.
type FileCacheWrite struct {
	URL         string
	ContentType string
	Body        []byte
}

// FileCacheRead is the payload accepted by FileCacheService for a lookup.
type FileCacheRead struct {
	URL string
}

// FileCacheResult is returned by FileCacheService.Process for a read.
type FileCacheResult struct {
	Body  []byte
	Found bool
}

// FileCacheService serializes access to the on-disk document cache so that
// concurrent per-location pipelines never race on the same cache file.
type FileCacheService struct {
	Cache *cache.HTTPCache

	mu sync.Mutex
}

func NewFileCacheService(c *cache.HTTPCache) *FileCacheService {
	return &FileCacheService{Cache: c}
}

func (s *FileCacheService) Name() string     { return "FileCacheService" }
func (s *FileCacheService) CanProcess() bool { return true }

func (s *FileCacheService) Process(ctx context.Context, payload any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch p := payload.(type) {
	case FileCacheWrite:
		return nil, s.Cache.Save(ctx, p.URL, p.ContentType, "", "", p.Body)
	case FileCacheRead:
		body, err := s.Cache.LoadBody(ctx, p.URL)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return FileCacheResult{Found: false}, nil
			}
			return nil, err
		}
		return FileCacheResult{Body: body, Found: true}, nil
	default:
		return nil, fmt.Errorf("services: FileCacheService expects FileCacheWrite/FileCacheRead, got %T", payload)
	}
}
