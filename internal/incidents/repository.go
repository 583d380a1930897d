package incidents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrIncidentNotFound = errors.New("incident not found")

// Repository persists incident records.
type Repository interface {
	Create(ctx context.Context, inc *Incident) error
	Get(ctx context.Context, id uuid.UUID) (*Incident, error)
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*Incident, error)
	NextSequence(ctx context.Context) (int64, error)
}

// ============================================================================
// POSTGRES REPOSITORY
// ============================================================================

const incidentColumns = `id, codigo, tipo, descripcion, origen, trabajador_rut, ticket_id, metadata, estado, creado_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, inc *Incident) error {
	meta, err := json.Marshal(inc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO incidencias (id, codigo, tipo, descripcion, origen, trabajador_rut, ticket_id, metadata, estado, creado_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inc.ID, inc.Code, string(inc.Tipo), inc.Descripcion, string(inc.Origen),
		inc.TrabajadorRUT, inc.TicketID, meta, string(inc.State), inc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Incident, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidencias WHERE id = $1`, id)
	inc, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

func (r *PgRepository) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*Incident, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+incidentColumns+` FROM incidencias
		WHERE ticket_id = $1 ORDER BY creado_at`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (r *PgRepository) NextSequence(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('incidencias_codigo_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("next incident sequence: %w", err)
	}
	return n, nil
}

func scanIncident(row pgx.Row) (*Incident, error) {
	var (
		inc  Incident
		meta []byte
	)
	err := row.Scan(&inc.ID, &inc.Code, &inc.Tipo, &inc.Descripcion, &inc.Origen,
		&inc.TrabajadorRUT, &inc.TicketID, &meta, &inc.State, &inc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &inc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &inc, nil
}
