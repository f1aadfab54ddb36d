package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileMoveRequest asks FileMoverService to place content produced mid-run
// (cleaned ordinance text, raw document bytes) at a path under one of the
// pipeline's output directories.
type FileMoveRequest struct {
	DestDir  string
	FileName string
	Content  []byte
}

// FileMoverService writes per-location artifacts (cleaned text, cached
// documents) to their final directory, bounded to Size concurrent writers
// so a burst of locations finishing at once doesn't exhaust file handles.
type FileMoverService struct {
	*boundedPoolService
}

// NewFileMoverService returns a FileMoverService bounded to size concurrent
// writes.
func NewFileMoverService(size int) *FileMoverService {
	return &FileMoverService{boundedPoolService: newBoundedPoolService("FileMoverService", size)}
}

func (s *FileMoverService) Process(ctx context.Context, payload any) (any, error) {
	req, ok := payload.(FileMoveRequest)
	if !ok {
		return nil, fmt.Errorf("services: FileMoverService expects FileMoveRequest, got %T", payload)
	}
	return s.boundedPoolService.Process(ctx, PoolJob{Fn: func(ctx context.Context) (any, error) {
		if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
			return nil, err
		}
		dest := filepath.Join(req.DestDir, req.FileName)
		tmp := dest + ".tmp"
		f, err := os.Create(tmp)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(f, bytes.NewReader(req.Content)); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		return nil, os.Rename(tmp, dest)
	}})
}
