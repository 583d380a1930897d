package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retiro-core/retiro-core/internal/platform/db"
)

// Common errors
var (
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrStateChanged signals a lost check-and-set race: the ticket exists
	// but left the expected state before the guarded update ran. Callers
	// re-read and classify (already-delivered, already-annulled, ...).
	ErrStateChanged = errors.New("ticket state changed concurrently")
	// ErrActiveTicketExists enforces at most one non-terminal ticket per
	// worker.
	ErrActiveTicketExists = errors.New("worker already holds a live ticket")
)

// Repository abstracts ticket persistence. The pg implementation performs
// every state transition as an atomic guarded update so concurrent guard
// stations cannot both deliver the same ticket; the in-memory double mirrors
// that contract under a mutex.
type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*Ticket, error)
	ActiveForWorker(ctx context.Context, rut string) (*Ticket, error)
	// Transition moves the ticket to the target state iff its current state
	// is in from, appending the event in the same statement.
	Transition(ctx context.Context, id uuid.UUID, from []State, to State, ev Event) (*Ticket, error)
	// Deliver is the phase-two success path: guarded transition to
	// delivered, box code recorded, delivery event appended and the day's
	// stock counter decremented — one transaction.
	Deliver(ctx context.Context, id uuid.UUID, boxCode string, at time.Time) (*Ticket, error)
	// AppendEvent adds a log entry without changing state, used when a
	// repeat mismatch hits a ticket already in incident state.
	AppendEvent(ctx context.Context, id uuid.UUID, ev Event) error
	// ExpireDue sweeps redeemable tickets whose TTL ran out, returning how
	// many were marked expired.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// PgRepository implements Repository against PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs the repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const ticketColumns = `id, trabajador_rut, trabajador_nombre, tipo_beneficio, caja_asignada, caja_usada, estado, sucursal, creado_at, expira_at, eventos`

func scanTicket(row pgx.Row) (*Ticket, error) {
	var t Ticket
	var events []byte
	err := row.Scan(
		&t.ID, &t.WorkerRUT, &t.WorkerName, &t.BenefitType,
		&t.AssignedBox, &t.BoxCodeUsed, &t.State, &t.Branch,
		&t.CreatedAt, &t.ExpiresAt, &events,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &t.Events); err != nil {
			return nil, fmt.Errorf("tickets: decode events: %w", err)
		}
	}
	return &t, nil
}

func statesToStrings(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

// Create inserts the ticket. A partial unique index on
// (trabajador_rut) WHERE estado IN (redeemable states) backs the one-live-
// ticket invariant; its violation maps to ErrActiveTicketExists.
func (r *PgRepository) Create(ctx context.Context, t *Ticket) error {
	events, err := json.Marshal(t.Events)
	if err != nil {
		return fmt.Errorf("tickets: encode events: %w", err)
	}
	const query = `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.pool.Exec(ctx, query,
		t.ID, t.WorkerRUT, t.WorkerName, t.BenefitType,
		t.AssignedBox, t.BoxCodeUsed, t.State, t.Branch,
		t.CreatedAt, t.ExpiresAt, events,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveTicketExists
		}
		return fmt.Errorf("tickets: create: %w", err)
	}
	return nil
}

// Get loads a ticket by id.
func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	t, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("tickets: get: %w", err)
	}
	return t, nil
}

// ActiveForWorker returns the worker's live (non-terminal) ticket, if any.
func (r *PgRepository) ActiveForWorker(ctx context.Context, rut string) (*Ticket, error) {
	const query = `
		SELECT ` + ticketColumns + ` FROM tickets
		WHERE trabajador_rut = $1 AND estado = ANY($2)
		ORDER BY creado_at DESC LIMIT 1`
	t, err := scanTicket(r.pool.QueryRow(ctx, query, rut, statesToStrings(RedeemableStates())))
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("tickets: active for worker: %w", err)
	}
	return t, nil
}

// Transition performs the guarded state update.
func (r *PgRepository) Transition(ctx context.Context, id uuid.UUID, from []State, to State, ev Event) (*Ticket, error) {
	event, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("tickets: encode event: %w", err)
	}
	const query = `
		UPDATE tickets
		SET estado = $1, eventos = eventos || $2::jsonb
		WHERE id = $3 AND estado = ANY($4)
		RETURNING ` + ticketColumns
	t, err := scanTicket(r.pool.QueryRow(ctx, query, to, event, id, statesToStrings(from)))
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return nil, r.classifyMiss(ctx, id)
		}
		return nil, fmt.Errorf("tickets: transition: %w", err)
	}
	return t, nil
}

// Deliver commits the delivered transition and the stock decrement together.
func (r *PgRepository) Deliver(ctx context.Context, id uuid.UUID, boxCode string, at time.Time) (*Ticket, error) {
	ev := Event{Type: EventDelivery, Timestamp: at, Metadata: map[string]any{"codigo_caja": boxCode}}
	event, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("tickets: encode event: %w", err)
	}

	var delivered *Ticket
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const update = `
			UPDATE tickets
			SET estado = $1, caja_usada = $2, eventos = eventos || $3::jsonb
			WHERE id = $4 AND estado = ANY($5)
			RETURNING ` + ticketColumns
		t, err := scanTicket(tx.QueryRow(ctx, update, StateDelivered, boxCode, event, id, statesToStrings(RedeemableStates())))
		if err != nil {
			return err
		}
		const decrement = `
			UPDATE stock_counters SET restante = restante - 1
			WHERE tipo_beneficio = $1 AND dia = $2`
		if _, err := tx.Exec(ctx, decrement, t.BenefitType, at.Format("2006-01-02")); err != nil {
			return fmt.Errorf("tickets: decrement stock: %w", err)
		}
		delivered = t
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return nil, r.classifyMiss(ctx, id)
		}
		return nil, err
	}
	return delivered, nil
}

// AppendEvent adds a log entry without touching state.
func (r *PgRepository) AppendEvent(ctx context.Context, id uuid.UUID, ev Event) error {
	event, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("tickets: encode event: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE tickets SET eventos = eventos || $1::jsonb WHERE id = $2`, event, id)
	if err != nil {
		return fmt.Errorf("tickets: append event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// ExpireDue marks overdue redeemable tickets expired.
func (r *PgRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	ev := Event{Type: EventExpired, Timestamp: now}
	event, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("tickets: encode event: %w", err)
	}
	const query = `
		UPDATE tickets
		SET estado = $1, eventos = eventos || $2::jsonb
		WHERE estado = ANY($3) AND expira_at <= $4`
	tag, err := r.pool.Exec(ctx, query, StateExpired, event, statesToStrings(RedeemableStates()), now)
	if err != nil {
		return 0, fmt.Errorf("tickets: expire due: %w", err)
	}
	return tag.RowsAffected(), nil
}

// classifyMiss distinguishes a missing row from a lost CAS race.
func (r *PgRepository) classifyMiss(ctx context.Context, id uuid.UUID) error {
	const query = `SELECT 1 FROM tickets WHERE id = $1`
	var one int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTicketNotFound
		}
		return fmt.Errorf("tickets: classify miss: %w", err)
	}
	return ErrStateChanged
}
