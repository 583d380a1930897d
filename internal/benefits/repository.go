package benefits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrWorkerNotFound = errors.New("worker not found")
)

// Repository abstracts worker and stock persistence so the resolver can be
// exercised against the pg implementation or the in-memory double.
type Repository interface {
	GetWorker(ctx context.Context, rut string) (*Worker, error)
	StockRemaining(ctx context.Context, benefitType string, day time.Time) (int, error)
	DecrementStock(ctx context.Context, benefitType string, day time.Time) error
}

// PgRepository implements Repository against PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs the repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// GetWorker loads a worker and their benefit descriptor by normalized RUT.
func (r *PgRepository) GetWorker(ctx context.Context, rut string) (*Worker, error) {
	const query = `
		SELECT t.rut, t.nombre, t.updated_at, b.tipo, b.codigo_caja, b.activo
		FROM trabajadores t
		JOIN beneficios b ON b.trabajador_rut = t.rut
		WHERE t.rut = $1`
	var w Worker
	err := r.pool.QueryRow(ctx, query, NormalizeRUT(rut)).Scan(
		&w.RUT, &w.Name, &w.UpdatedAt,
		&w.Benefit.Type, &w.Benefit.BoxCode, &w.Benefit.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("benefits: get worker: %w", err)
	}
	return &w, nil
}

// StockRemaining reads the counter for the benefit type on the given day.
// A missing row means no stock was provisioned for that day.
func (r *PgRepository) StockRemaining(ctx context.Context, benefitType string, day time.Time) (int, error) {
	const query = `SELECT restante FROM stock_counters WHERE tipo_beneficio = $1 AND dia = $2`
	var remaining int
	err := r.pool.QueryRow(ctx, query, benefitType, day.Format("2006-01-02")).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("benefits: stock remaining: %w", err)
	}
	return remaining, nil
}

// DecrementStock subtracts one box from the day counter. Callers invoke it
// exactly once per delivered ticket, inside the delivery transaction.
func (r *PgRepository) DecrementStock(ctx context.Context, benefitType string, day time.Time) error {
	const query = `
		UPDATE stock_counters SET restante = restante - 1
		WHERE tipo_beneficio = $1 AND dia = $2`
	tag, err := r.pool.Exec(ctx, query, benefitType, day.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("benefits: decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("benefits: decrement stock: no counter for %s on %s", benefitType, day.Format("2006-01-02"))
	}
	return nil
}
