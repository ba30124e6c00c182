package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msomdec/internsync/internal/domain"
	"github.com/msomdec/internsync/internal/service"
)

type countingSource struct {
	calls atomic.Int32
	jobs  []domain.Job
	err   error
	delay time.Duration
}

func (s *countingSource) Load(ctx context.Context) ([]domain.Job, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return s.jobs, s.err
}

func TestCatalogService_OpenAndSnapshot(t *testing.T) {
	src := &countingSource{jobs: []domain.Job{job42(), {ID: "43", JobTitle: "Data Intern"}}}
	catalog := service.NewCatalogService(src, time.Minute)

	pageID, jobs, err := catalog.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if pageID == "" || len(jobs) != 2 {
		t.Fatalf("unexpected open result %q %d", pageID, len(jobs))
	}

	snap, ok := catalog.Snapshot(pageID)
	if !ok || len(snap) != 2 {
		t.Fatalf("expected snapshot of 2 jobs, got %v %d", ok, len(snap))
	}
	if src.calls.Load() != 1 {
		t.Fatalf("snapshot must not refetch, got %d calls", src.calls.Load())
	}

	job, err := catalog.Find(pageID, "43")
	if err != nil || job.JobTitle != "Data Intern" {
		t.Fatalf("Find: %v %+v", err, job)
	}
	if _, err := catalog.Find(pageID, "999"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, ok := catalog.Snapshot("missing"); ok {
		t.Fatal("unknown page should have no snapshot")
	}
}

func TestCatalogService_OpenError(t *testing.T) {
	src := &countingSource{err: errors.New("Failed to fetch jobs: 500")}
	catalog := service.NewCatalogService(src, time.Minute)

	if _, _, err := catalog.Open(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if catalog.Pages() != 0 {
		t.Fatal("failed open must not store a snapshot")
	}
}

func TestCatalogService_ConcurrentOpensShareFetch(t *testing.T) {
	src := &countingSource{jobs: []domain.Job{job42()}, delay: 50 * time.Millisecond}
	catalog := service.NewCatalogService(src, time.Minute)

	var wg sync.WaitGroup
	pageIDs := make([]string, 5)
	for i := range pageIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _, err := catalog.Open(context.Background())
			if err != nil {
				t.Errorf("Open: %v", err)
			}
			pageIDs[i] = id
		}()
	}
	wg.Wait()

	if n := src.calls.Load(); n >= 5 {
		t.Fatalf("expected shared fetches, got %d", n)
	}
	if catalog.Pages() != 5 {
		t.Fatalf("each open gets its own page, got %d", catalog.Pages())
	}
}

func TestCatalogService_Sweep(t *testing.T) {
	src := &countingSource{jobs: []domain.Job{job42()}}
	catalog := service.NewCatalogService(src, 10*time.Millisecond)

	if _, _, err := catalog.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n := catalog.Sweep(); n != 0 {
		t.Fatalf("fresh page should survive, swept %d", n)
	}
	time.Sleep(30 * time.Millisecond)
	if n := catalog.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
}

// slowSource honours its context and reports when a load starts.
type slowSource struct {
	calls   atomic.Int32
	started chan struct{}
	delay   time.Duration
}

func (s *slowSource) Load(ctx context.Context) ([]domain.Job, error) {
	if s.calls.Add(1) == 1 {
		close(s.started)
	}
	select {
	case <-time.After(s.delay):
		return []domain.Job{job42()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCatalogService_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	src := &slowSource{started: make(chan struct{}), delay: 200 * time.Millisecond}
	catalog := service.NewCatalogService(src, time.Minute)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := catalog.Open(firstCtx)
		firstErr <- err
	}()
	<-src.started

	type result struct {
		jobs []domain.Job
		err  error
	}
	second := make(chan result, 1)
	go func() {
		_, jobs, err := catalog.Open(context.Background())
		second <- result{jobs, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
	}
	got := <-second
	if got.err != nil || len(got.jobs) != 1 {
		t.Fatalf("second caller should get the catalog, got %v %d", got.err, len(got.jobs))
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("expected one shared fetch, got %d", n)
	}
}
