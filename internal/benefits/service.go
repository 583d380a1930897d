package benefits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service resolves worker eligibility for the kiosk flow.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	sf     singleflight.Group
	now    func() time.Time
}

// NewService constructs the resolver. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve determines whether an active benefit exists for the RUT and
// whether stock is available today. It has no side effects and never
// fabricates a positive result: lookup failures surface as errors so the
// kiosk can offer a retry.
func (s *Service) Resolve(ctx context.Context, rut string) (*Eligibility, error) {
	if err := ValidateRUT(rut); err != nil {
		return nil, err
	}
	normalized := NormalizeRUT(rut)

	worker, err := s.lookupWorker(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrWorkerNotFound) {
			return &Eligibility{Status: EligibilityNoBenefit}, nil
		}
		return nil, fmt.Errorf("benefits: resolve %s: %w", normalized, err)
	}
	if !worker.Benefit.Active {
		return &Eligibility{Status: EligibilityNoBenefit, Worker: worker}, nil
	}

	remaining, err := s.repo.StockRemaining(ctx, worker.Benefit.Type, s.now())
	if err != nil {
		return nil, fmt.Errorf("benefits: resolve %s: %w", normalized, err)
	}
	status := EligibilityWithStock
	if remaining <= 0 {
		status = EligibilityWithoutStock
	}
	return &Eligibility{Status: status, Worker: worker, StockRemaining: remaining}, nil
}

// lookupWorker reads through the cache, collapsing concurrent lookups for
// the same RUT into one repository call.
func (s *Service) lookupWorker(ctx context.Context, rut string) (*Worker, error) {
	if cached, err := s.cache.GetWorker(ctx, rut); err == nil && cached != nil {
		return cached, nil
	} else if err != nil && s.logger != nil {
		s.logger.Warn("benefit cache read", slog.Any("error", err))
	}

	// Detached from the caller: the shared flight serves every waiter, so a
	// cancelled winner must not fail the lookup for the rest.
	lctx := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do(rut, func() (any, error) {
		w, err := s.repo.GetWorker(lctx, rut)
		if err != nil {
			return nil, err
		}
		if err := s.cache.PutWorker(lctx, w); err != nil && s.logger != nil {
			s.logger.Warn("benefit cache write", slog.Any("error", err))
		}
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Worker), nil
}
