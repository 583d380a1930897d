package tickets

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StockDecrementer is the slice of the benefits repository the memory ticket
// repository needs to mirror the pg Deliver transaction.
type StockDecrementer interface {
	DecrementStock(ctx context.Context, benefitType string, day time.Time) error
}

// MemoryRepository is the in-memory Repository double. It honors the same
// check-and-set contract as the pg implementation: transitions are guarded
// under one mutex so only one of two concurrent deliveries can win.
type MemoryRepository struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]*Ticket
	stock   StockDecrementer
}

// NewMemoryRepository constructs an empty repository. stock may be nil when
// the test does not care about counters.
func NewMemoryRepository(stock StockDecrementer) *MemoryRepository {
	return &MemoryRepository{
		tickets: make(map[uuid.UUID]*Ticket),
		stock:   stock,
	}
}

func (r *MemoryRepository) clone(t *Ticket) *Ticket {
	copied := *t
	copied.Events = append([]Event(nil), t.Events...)
	if t.BoxCodeUsed != nil {
		box := *t.BoxCodeUsed
		copied.BoxCodeUsed = &box
	}
	return &copied
}

// Create implements Repository.
func (r *MemoryRepository) Create(ctx context.Context, t *Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tickets {
		if existing.WorkerRUT == t.WorkerRUT && existing.State.Redeemable() {
			return ErrActiveTicketExists
		}
	}
	r.tickets[t.ID] = r.clone(t)
	return nil
}

// Get implements Repository.
func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return r.clone(t), nil
}

// ActiveForWorker implements Repository.
func (r *MemoryRepository) ActiveForWorker(ctx context.Context, rut string) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *Ticket
	for _, t := range r.tickets {
		if t.WorkerRUT != rut || !t.State.Redeemable() {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, ErrTicketNotFound
	}
	return r.clone(latest), nil
}

func stateIn(s State, states []State) bool {
	for _, candidate := range states {
		if s == candidate {
			return true
		}
	}
	return false
}

// Transition implements Repository.
func (r *MemoryRepository) Transition(ctx context.Context, id uuid.UUID, from []State, to State, ev Event) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	if !stateIn(t.State, from) {
		return nil, ErrStateChanged
	}
	t.State = to
	t.Events = append(t.Events, ev)
	return r.clone(t), nil
}

// Deliver implements Repository.
func (r *MemoryRepository) Deliver(ctx context.Context, id uuid.UUID, boxCode string, at time.Time) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	if !t.State.Redeemable() {
		return nil, ErrStateChanged
	}
	t.State = StateDelivered
	t.BoxCodeUsed = &boxCode
	t.Events = append(t.Events, Event{
		Type:      EventDelivery,
		Timestamp: at,
		Metadata:  map[string]any{"codigo_caja": boxCode},
	})
	if r.stock != nil {
		if err := r.stock.DecrementStock(ctx, t.BenefitType, at); err != nil {
			return nil, err
		}
	}
	return r.clone(t), nil
}

// AppendEvent implements Repository.
func (r *MemoryRepository) AppendEvent(ctx context.Context, id uuid.UUID, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return ErrTicketNotFound
	}
	t.Events = append(t.Events, ev)
	return nil
}

// ExpireDue implements Repository.
func (r *MemoryRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var swept int64
	for _, t := range r.tickets {
		if t.State.Redeemable() && !now.Before(t.ExpiresAt) {
			t.State = StateExpired
			t.Events = append(t.Events, Event{Type: EventExpired, Timestamp: now})
			swept++
		}
	}
	return swept, nil
}
