package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/msomdec/internsync/internal/domain"
)

// JobSource fetches the full listings catalog.
type JobSource interface {
	Load(ctx context.Context) ([]domain.Job, error)
}

// CatalogService fetches the catalog once per page load and keeps that
// snapshot for the page's follow-up filter requests. Snapshots are immutable.
type CatalogService struct {
	source JobSource
	ttl    time.Duration
	group  singleflight.Group
	now    func() time.Time

	mu    sync.Mutex
	pages map[string]*page
}

type page struct {
	jobs     []domain.Job
	lastUsed time.Time
}

// NewCatalogService creates a new CatalogService. Snapshots idle for longer
// than ttl are dropped by Sweep.
func NewCatalogService(source JobSource, ttl time.Duration) *CatalogService {
	return &CatalogService{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		pages:  make(map[string]*page),
	}
}

// Open fetches the catalog for a new page load and returns the page ID the
// snapshot is stored under. Concurrent opens share one fetch, which runs
// detached from any single caller: a caller that goes away stops waiting
// without failing the others.
func (s *CatalogService) Open(ctx context.Context) (string, []domain.Job, error) {
	ch := s.group.DoChan("catalog", func() (any, error) {
		return s.source.Load(context.WithoutCancel(ctx))
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
	if res.Err != nil {
		return "", nil, res.Err
	}
	jobs := res.Val.([]domain.Job)

	id := uuid.NewString()
	s.mu.Lock()
	s.pages[id] = &page{jobs: jobs, lastUsed: s.now()}
	s.mu.Unlock()

	return id, jobs, nil
}

// Snapshot returns the jobs fetched for pageID.
func (s *CatalogService) Snapshot(pageID string) ([]domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[pageID]
	if !ok {
		return nil, false
	}
	p.lastUsed = s.now()
	return p.jobs, true
}

// Find returns a single job from the page's snapshot.
func (s *CatalogService) Find(pageID string, id domain.JobID) (domain.Job, error) {
	jobs, ok := s.Snapshot(pageID)
	if !ok {
		return domain.Job{}, fmt.Errorf("page %q: %w", pageID, domain.ErrNotFound)
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return domain.Job{}, fmt.Errorf("job %q: %w", id, domain.ErrNotFound)
}

// Sweep drops idle snapshots and returns how many were removed.
func (s *CatalogService) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, p := range s.pages {
		if p.lastUsed.Before(cutoff) {
			delete(s.pages, id)
			removed++
		}
	}
	return removed
}

// Pages returns the number of live snapshots.
func (s *CatalogService) Pages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}
