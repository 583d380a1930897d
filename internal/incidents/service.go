package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidIncident = errors.New("invalid incident")

// Recorder is implemented by the observability layer.
type Recorder interface {
	IncidentFiled(tipo string)
}

type Service struct {
	repo    Repository
	logger  *slog.Logger
	metrics Recorder
	now     func() time.Time
}

func NewService(repo Repository, logger *slog.Logger, metrics Recorder) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Report files a new incident in pendiente state. Filing never touches
// ticket or stock records, so a failure here cannot corrupt the workflow.
func (s *Service) Report(ctx context.Context, req CreateIncidentRequest) (*Incident, error) {
	if !req.Tipo.IsValid() {
		return nil, fmt.Errorf("%w: tipo %q", ErrInvalidIncident, req.Tipo)
	}
	if !req.Origen.IsValid() {
		return nil, fmt.Errorf("%w: origen %q", ErrInvalidIncident, req.Origen)
	}
	if req.Descripcion == "" {
		return nil, fmt.Errorf("%w: descripcion requerida", ErrInvalidIncident)
	}

	var ticketID *uuid.UUID
	if req.TicketUUID != nil {
		id, err := uuid.Parse(*req.TicketUUID)
		if err != nil {
			return nil, fmt.Errorf("%w: ticket_uuid", ErrInvalidIncident)
		}
		ticketID = &id
	}

	seq, err := s.repo.NextSequence(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	inc := &Incident{
		ID:            uuid.New(),
		Code:          fmt.Sprintf("INC-%s-%04d", now.Format("20060102"), seq),
		Tipo:          req.Tipo,
		Descripcion:   req.Descripcion,
		Origen:        req.Origen,
		TrabajadorRUT: req.TrabajadorRUT,
		TicketID:      ticketID,
		Metadata:      req.Metadata,
		State:         StatePending,
		CreatedAt:     now,
	}
	if err := s.repo.Create(ctx, inc); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncidentFiled(string(inc.Tipo))
	}
	s.logger.Info("incident filed",
		"codigo", inc.Code,
		"tipo", inc.Tipo,
		"origen", inc.Origen,
	)
	return inc, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Incident, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]*Incident, error) {
	return s.repo.ListByTicket(ctx, ticketID)
}
