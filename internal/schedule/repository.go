package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAppointmentExists   = errors.New("worker already has an appointment for that date")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository persists appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	ListByWorker(ctx context.Context, rut string) ([]*Appointment, error)
}

// ============================================================================
// POSTGRES REPOSITORY
// ============================================================================

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Create inserts the appointment. The (trabajador_rut, fecha) unique index
// turns a duplicate booking into ErrAppointmentExists.
func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agendamientos (id, trabajador_rut, tipo_beneficio, fecha, sucursal, creado_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.WorkerRUT, a.BenefitType, a.Date, a.Branch, a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAppointmentExists
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) ListByWorker(ctx context.Context, rut string) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, trabajador_rut, tipo_beneficio, fecha, sucursal, creado_at
		FROM agendamientos WHERE trabajador_rut = $1 ORDER BY fecha`, rut)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.WorkerRUT, &a.BenefitType, &a.Date, &a.Branch, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
