package services

import (
	"context"
	"testing"
)

func TestProcessPoolService_CanProcessReflectsInUseCount(t *testing.T) {
	s := NewProcessPoolService(2)
	block := make(chan struct{})
	started := make(chan struct{}, 2)
	done := make(chan struct{}, 2)

	run := func() {
		s.Process(context.Background(), PoolJob{Fn: func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-block
			return nil, nil
		}})
		done <- struct{}{}
	}
	go run()
	go run()

	<-started
	<-started
	if s.CanProcess() {
		t.Error("expected CanProcess() = false once both slots are in use")
	}

	close(block)
	<-done
	<-done
	if !s.CanProcess() {
		t.Error("expected CanProcess() = true once all jobs finish")
	}
}

func TestThreadPoolService_RejectsWrongPayload(t *testing.T) {
	s := NewThreadPoolService(1)
	if _, err := s.Process(context.Background(), "not a pool job"); err == nil {
		t.Error("expected error for wrong payload type")
	}
}

func TestProcessPoolService_ReturnsFnResult(t *testing.T) {
	s := NewProcessPoolService(1)
	v, err := s.Process(context.Background(), PoolJob{Fn: func(ctx context.Context) (any, error) {
		return 42, nil
	}})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if v != 42 {
		t.Errorf("Process() = %v, want 42", v)
	}
}

func TestThreadPoolService_Name(t *testing.T) {
	s := NewThreadPoolService(1)
	if s.Name() != "ThreadPoolService" {
		t.Errorf("Name() = %q", s.Name())
	}
}
