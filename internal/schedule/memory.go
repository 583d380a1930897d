package schedule

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory Repository used by tests and local runs.
type MemoryRepository struct {
	mu           sync.Mutex
	appointments []*Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.WorkerRUT == a.WorkerRUT && existing.Date == a.Date {
			return ErrAppointmentExists
		}
	}
	cp := *a
	r.appointments = append(r.appointments, &cp)
	return nil
}

func (r *MemoryRepository) ListByWorker(_ context.Context, rut string) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, a := range r.appointments {
		if a.WorkerRUT == rut {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
