package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/retiro-core/retiro-core/internal/benefits"
)

var (
	// ErrDateNotBookable rejects weekends, past dates and dates outside the
	// current Monday-Friday week.
	ErrDateNotBookable = errors.New("date is not bookable")
	// ErrNotEligible means the worker cannot book: no benefit, or stock is
	// still available so the normal issuance path applies.
	ErrNotEligible = errors.New("worker is not eligible for scheduling")
)

// EligibilityResolver is the slice of the benefits service booking needs.
type EligibilityResolver interface {
	Resolve(ctx context.Context, rut string) (*benefits.Eligibility, error)
}

// Service books pickup appointments as the fallback when today's stock ran
// out before the worker reached the kiosk.
type Service struct {
	repo        Repository
	eligibility EligibilityResolver
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(repo Repository, eligibility EligibilityResolver, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		eligibility: eligibility,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Book validates the date against the weekday window and creates the
// appointment. Only workers resolving to beneficio_sin_stock may book.
func (s *Service) Book(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error) {
	rut := benefits.NormalizeRUT(req.TrabajadorRUT)
	if err := benefits.ValidateRUT(rut); err != nil {
		return nil, err
	}

	date, err := time.Parse("2006-01-02", req.Fecha)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha mal formada", ErrDateNotBookable)
	}
	if err := s.checkDate(date); err != nil {
		return nil, err
	}

	elig, err := s.eligibility.Resolve(ctx, rut)
	if err != nil {
		return nil, err
	}
	if elig.Status != benefits.EligibilityWithoutStock {
		return nil, fmt.Errorf("%w: estado %s", ErrNotEligible, elig.Status)
	}

	a := &Appointment{
		ID:          uuid.New(),
		WorkerRUT:   rut,
		BenefitType: elig.Worker.Benefit.Type,
		Date:        date.Format("2006-01-02"),
		Branch:      req.Sucursal,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked", "rut", rut, "fecha", a.Date)
	return a, nil
}

// checkDate enforces the booking window: a weekday, not before today, not
// past the Friday of the current week.
func (s *Service) checkDate(date time.Time) error {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return fmt.Errorf("%w: solo dias habiles", ErrDateNotBookable)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return fmt.Errorf("%w: fecha pasada", ErrDateNotBookable)
	}

	// Friday closing the current booking window. On the weekend the window
	// rolls forward, so Saturday and Sunday both book into the week ahead.
	offset := int(time.Friday - today.Weekday())
	if offset < 0 {
		offset += 7
	}
	friday := today.AddDate(0, 0, offset)
	if date.After(friday) {
		return fmt.Errorf("%w: fuera de la semana en curso", ErrDateNotBookable)
	}
	return nil
}

// Available returns the bookable dates for the kiosk to render.
func (s *Service) Available() []string {
	return AvailableDates(s.now())
}

// ListByWorker returns the worker's bookings, soonest first.
func (s *Service) ListByWorker(ctx context.Context, rut string) ([]*Appointment, error) {
	normalized := benefits.NormalizeRUT(rut)
	if err := benefits.ValidateRUT(normalized); err != nil {
		return nil, err
	}
	return s.repo.ListByWorker(ctx, normalized)
}
