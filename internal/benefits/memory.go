package benefits

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepository is the in-memory Repository double used by tests and by
// the ticket memory repository for stock decrements.
type MemoryRepository struct {
	mu      sync.Mutex
	workers map[string]Worker
	stock   map[string]int
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		workers: make(map[string]Worker),
		stock:   make(map[string]int),
	}
}

func stockKey(benefitType string, day time.Time) string {
	return benefitType + ":" + day.Format("2006-01-02")
}

// SeedWorker registers a worker with their benefit.
func (r *MemoryRepository) SeedWorker(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.RUT = NormalizeRUT(w.RUT)
	r.workers[w.RUT] = w
}

// SetStock sets the counter for a benefit type on a day.
func (r *MemoryRepository) SetStock(benefitType string, day time.Time, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[stockKey(benefitType, day)] = remaining
}

// GetWorker implements Repository.
func (r *MemoryRepository) GetWorker(ctx context.Context, rut string) (*Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[NormalizeRUT(rut)]
	if !ok {
		return nil, ErrWorkerNotFound
	}
	copied := w
	return &copied, nil
}

// StockRemaining implements Repository.
func (r *MemoryRepository) StockRemaining(ctx context.Context, benefitType string, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[stockKey(benefitType, day)], nil
}

// DecrementStock implements Repository.
func (r *MemoryRepository) DecrementStock(ctx context.Context, benefitType string, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := stockKey(benefitType, day)
	if _, ok := r.stock[key]; !ok {
		return fmt.Errorf("benefits: decrement stock: no counter for %s", key)
	}
	r.stock[key]--
	return nil
}
