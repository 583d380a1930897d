package incidents

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by tests and local runs.
type MemoryRepository struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]*Incident
	seq       int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{incidents: make(map[uuid.UUID]*Incident)}
}

func (r *MemoryRepository) Create(_ context.Context, inc *Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inc
	r.incidents[inc.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc, ok := r.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	cp := *inc
	return &cp, nil
}

func (r *MemoryRepository) ListByTicket(_ context.Context, ticketID uuid.UUID) ([]*Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Incident
	for _, inc := range r.incidents {
		if inc.TicketID != nil && *inc.TicketID == ticketID {
			cp := *inc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) NextSequence(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}
