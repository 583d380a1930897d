package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retiro-core/retiro-core/internal/benefits"
	"github.com/retiro-core/retiro-core/internal/incidents"
	"github.com/retiro-core/retiro-core/internal/shared"
)

var (
	// ErrNoBenefit means the worker resolved without an active benefit.
	ErrNoBenefit = errors.New("worker has no active benefit")
	// ErrNoStock means the benefit exists but today's counter is exhausted.
	ErrNoStock = errors.New("no stock available for benefit")
)

// EligibilityResolver is the slice of the benefits service issuance needs.
type EligibilityResolver interface {
	Resolve(ctx context.Context, rut string) (*benefits.Eligibility, error)
}

// IncidentReporter files wrong-box incidents on behalf of guard validation.
type IncidentReporter interface {
	Report(ctx context.Context, req incidents.CreateIncidentRequest) (*incidents.Incident, error)
}

// Recorder is implemented by the observability layer. Nil-safe on the
// concrete type, so a nil interface check suffices here.
type Recorder interface {
	TicketIssued()
	TicketDelivered()
	TicketExpired()
}

// ServiceConfig carries the issuance knobs.
type ServiceConfig struct {
	// TTL is the validity window granted at issuance.
	TTL time.Duration
	// Branch stamps every ticket with the operating site.
	Branch string
}

// Service orchestrates the ticket lifecycle across both fronts: issuance on
// the kiosk side, two-phase validation on the guard side.
type Service struct {
	repo        Repository
	eligibility EligibilityResolver
	reporter    IncidentReporter
	idem        shared.IdempotencyStore
	cfg         ServiceConfig
	logger      *slog.Logger
	metrics     Recorder
	audit       *shared.AuditLogger
	now         func() time.Time
}

func NewService(
	repo Repository,
	eligibility EligibilityResolver,
	reporter IncidentReporter,
	idem shared.IdempotencyStore,
	cfg ServiceConfig,
	logger *slog.Logger,
	metrics Recorder,
) *Service {
	return &Service{
		repo:        repo,
		eligibility: eligibility,
		reporter:    reporter,
		idem:        idem,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithAudit attaches the audit trail. Audit failures never block the
// workflow; they are logged and dropped.
func (s *Service) WithAudit(audit *shared.AuditLogger) *Service {
	s.audit = audit
	return s
}

func (s *Service) auditRecord(ctx context.Context, actor, action string, t *Ticket) {
	if s.audit == nil || t == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "ticket",
		EntityID: t.ID.String(),
		Meta:     map[string]any{"rut": t.WorkerRUT, "estado": string(t.State)},
		At:       s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit record", "action", action, "error", err)
	}
}

// ============================================================================
// ISSUANCE
// ============================================================================

// Issue creates a ticket for an eligible worker. The returned bool is true
// when a new ticket was created; false when an existing live ticket was
// returned instead (idempotent replay or the one-live-ticket rule).
func (s *Service) Issue(ctx context.Context, req IssueTicketRequest) (*Ticket, bool, error) {
	rut := benefits.NormalizeRUT(req.TrabajadorRUT)
	if err := benefits.ValidateRUT(rut); err != nil {
		return nil, false, err
	}

	insertedKey := false
	if req.IdempotencyToken != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, req.IdempotencyToken, "tickets"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return s.replay(ctx, rut, err)
			}
			return nil, false, err
		}
		insertedKey = true
	}

	t, created, err := s.create(ctx, rut, req)
	if err != nil && insertedKey {
		// No ticket came out of this reservation: release the token so a
		// retry is not locked out of issuance.
		if derr := s.idem.Delete(ctx, req.IdempotencyToken, "tickets"); derr != nil {
			s.logger.Warn("idempotency rollback", "token", req.IdempotencyToken, "error", derr)
		}
	}
	return t, created, err
}

// create runs the issuance itself, after the RUT and idempotency gates.
func (s *Service) create(ctx context.Context, rut string, req IssueTicketRequest) (*Ticket, bool, error) {
	// One live ticket per worker: return the existing one, first expiring it
	// lazily if its window already closed.
	if existing, err := s.repo.ActiveForWorker(ctx, rut); err == nil {
		existing, err = s.lazyExpire(ctx, existing)
		if err != nil {
			return nil, false, err
		}
		if !existing.State.IsTerminal() {
			return existing, false, nil
		}
	} else if !errors.Is(err, ErrTicketNotFound) {
		return nil, false, err
	}

	elig, err := s.eligibility.Resolve(ctx, rut)
	if err != nil {
		return nil, false, err
	}
	switch elig.Status {
	case benefits.EligibilityNoBenefit:
		return nil, false, ErrNoBenefit
	case benefits.EligibilityWithoutStock:
		return nil, false, ErrNoStock
	}

	now := s.now().UTC()
	t := &Ticket{
		ID:          uuid.New(),
		WorkerRUT:   rut,
		WorkerName:  elig.Worker.Name,
		BenefitType: elig.Worker.Benefit.Type,
		AssignedBox: elig.Worker.Benefit.BoxCode,
		State:       StateIssued,
		Branch:      req.Sucursal,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
		Events: []Event{{
			Type:      EventIssued,
			Timestamp: now,
			Metadata:  map[string]any{"sucursal": req.Sucursal},
		}},
	}
	if t.Branch == "" {
		t.Branch = s.cfg.Branch
	}

	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, ErrActiveTicketExists) {
			return s.replay(ctx, rut, err)
		}
		return nil, false, err
	}

	s.metricTicketIssued()
	s.auditRecord(ctx, "totem", "ticket.emitido", t)
	s.logger.Info("ticket issued",
		"ticket_id", t.ID,
		"rut", rut,
		"caja", t.AssignedBox,
		"expira_at", t.ExpiresAt,
	)
	return t, true, nil
}

// replay resolves a duplicate-issue signal to the worker's live ticket.
func (s *Service) replay(ctx context.Context, rut string, cause error) (*Ticket, bool, error) {
	t, err := s.repo.ActiveForWorker(ctx, rut)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			// The earlier ticket already reached a terminal state.
			return nil, false, cause
		}
		return nil, false, err
	}
	t, err = s.lazyExpire(ctx, t)
	if err != nil {
		return nil, false, err
	}
	if t.State.IsTerminal() {
		return nil, false, cause
	}
	return t, false, nil
}

// ============================================================================
// STATUS
// ============================================================================

// Status returns the countdown-bearing snapshot. A ticket found past its
// expiry is flipped to expired before being returned; the sweep job is a
// backstop, not the source of truth.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*StatusResponse, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err = s.lazyExpire(ctx, t)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		Ticket:           t,
		RemainingSeconds: RemainingSeconds(t, s.now()),
	}, nil
}

// lazyExpire transitions a redeemable ticket whose window has closed. A lost
// race means someone else moved it first; the re-read is authoritative.
func (s *Service) lazyExpire(ctx context.Context, t *Ticket) (*Ticket, error) {
	if !t.State.Redeemable() || !t.Expired(s.now()) {
		return t, nil
	}
	ev := Event{Type: EventExpired, Timestamp: s.now().UTC()}
	updated, err := s.repo.Transition(ctx, t.ID, RedeemableStates(), StateExpired, ev)
	if err != nil {
		if errors.Is(err, ErrStateChanged) {
			return s.repo.Get(ctx, t.ID)
		}
		return nil, err
	}
	s.metricTicketExpired()
	s.logger.Info("ticket expired on read", "ticket_id", t.ID)
	return updated, nil
}

// ============================================================================
// GUARD VALIDATION
// ============================================================================

// ValidateGuard runs the two-phase redemption. Phase one classifies the
// ticket state; phase two, entered only when a box code is present and the
// ticket is still redeemable, either delivers on a match or files a wrong-box
// incident on a mismatch. Every call returns a renderable outcome; only
// lookup and infrastructure failures surface as errors.
func (s *Service) ValidateGuard(ctx context.Context, id uuid.UUID, req GuardValidationRequest) (*ValidationResult, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err = s.lazyExpire(ctx, t)
	if err != nil {
		return nil, err
	}

	if out, done := classifyState(t); done {
		return out, nil
	}

	box := strings.TrimSpace(req.CodigoCaja)
	if box == "" {
		return &ValidationResult{Outcome: OutcomeValidPending, Ticket: t}, nil
	}

	if strings.EqualFold(box, t.AssignedBox) {
		return s.deliver(ctx, t, box)
	}
	return s.wrongBox(ctx, t, box)
}

// classifyState maps terminal states to their outcomes. done=false means the
// ticket is still redeemable.
func classifyState(t *Ticket) (*ValidationResult, bool) {
	switch t.State {
	case StateDelivered:
		return &ValidationResult{Outcome: OutcomeAlreadyDelivered, Ticket: t}, true
	case StateAnnulled:
		return &ValidationResult{Outcome: OutcomeAlreadyAnnulled, Ticket: t}, true
	case StateExpired:
		return &ValidationResult{Outcome: OutcomeExpired, Ticket: t}, true
	default:
		return nil, false
	}
}

// deliver runs the atomic delivery: state flip plus stock decrement in one
// repository transaction. A lost race re-reads and reports what actually
// happened instead of an error.
func (s *Service) deliver(ctx context.Context, t *Ticket, box string) (*ValidationResult, error) {
	updated, err := s.repo.Deliver(ctx, t.ID, box, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrStateChanged) {
			current, gerr := s.repo.Get(ctx, t.ID)
			if gerr != nil {
				return nil, gerr
			}
			if out, done := classifyState(current); done {
				return out, nil
			}
			return nil, err
		}
		return nil, err
	}

	s.metricTicketDelivered()
	s.auditRecord(ctx, "guardia", "ticket.entregado", updated)
	s.logger.Info("ticket delivered",
		"ticket_id", updated.ID,
		"rut", updated.WorkerRUT,
		"caja", box,
	)
	return &ValidationResult{Outcome: OutcomeDelivered, Ticket: updated}, nil
}

// wrongBox moves the ticket to incident (or just appends the event when it is
// already there) and files the incident record. The ticket stays redeemable:
// a later scan against the correct box still delivers.
func (s *Service) wrongBox(ctx context.Context, t *Ticket, box string) (*ValidationResult, error) {
	ev := Event{
		Type:      EventWrongBox,
		Timestamp: s.now().UTC(),
		Metadata: map[string]any{
			"caja_escaneada": box,
			"caja_asignada":  t.AssignedBox,
		},
	}

	if t.State == StateIncident {
		if err := s.repo.AppendEvent(ctx, t.ID, ev); err != nil {
			return nil, err
		}
	} else {
		updated, err := s.repo.Transition(ctx, t.ID, []State{StateIssued, StatePendingRedemption}, StateIncident, ev)
		if err != nil {
			if errors.Is(err, ErrStateChanged) {
				current, gerr := s.repo.Get(ctx, t.ID)
				if gerr != nil {
					return nil, gerr
				}
				if out, done := classifyState(current); done {
					return out, nil
				}
				t = current
			} else {
				return nil, err
			}
		} else {
			t = updated
		}
	}

	inc, err := s.reportWrongBox(ctx, t, box)
	if err != nil {
		return nil, err
	}

	// Re-read so the snapshot carries the incident state and the new event.
	t, err = s.repo.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("wrong box scanned",
		"ticket_id", t.ID,
		"caja_escaneada", box,
		"caja_asignada", t.AssignedBox,
		"incidencia", inc.Code,
	)
	return &ValidationResult{Outcome: OutcomeWrongBox, Ticket: t, IncidentCode: inc.Code}, nil
}

func (s *Service) reportWrongBox(ctx context.Context, t *Ticket, box string) (*incidents.Incident, error) {
	ticketID := t.ID.String()
	rut := t.WorkerRUT
	return s.reporter.Report(ctx, incidents.CreateIncidentRequest{
		Tipo:          incidents.TypeWrongBox,
		Descripcion:   fmt.Sprintf("caja escaneada %s no corresponde a la asignada %s", box, t.AssignedBox),
		Origen:        incidents.OriginGuardia,
		TrabajadorRUT: &rut,
		TicketUUID:    &ticketID,
		Metadata: map[string]any{
			"caja_escaneada": box,
			"caja_asignada":  t.AssignedBox,
		},
	})
}

// ============================================================================
// ANNULMENT / REISSUE
// ============================================================================

// Annul voids a redeemable ticket, typically ahead of a replacement issue.
func (s *Service) Annul(ctx context.Context, id uuid.UUID, reason string) (*Ticket, error) {
	ev := Event{Type: EventAnnulled, Timestamp: s.now().UTC()}
	if reason != "" {
		ev.Metadata = map[string]any{"motivo": reason}
	}
	t, err := s.repo.Transition(ctx, id, RedeemableStates(), StateAnnulled, ev)
	if err != nil {
		return nil, err
	}
	s.auditRecord(ctx, "totem", "ticket.anulado", t)
	s.logger.Info("ticket annulled", "ticket_id", id, "motivo", reason)
	return t, nil
}

// Reissue voids the worker's live ticket, if any, and issues a fresh one with
// a full validity window. Used when the printed ticket is lost or damaged.
func (s *Service) Reissue(ctx context.Context, req IssueTicketRequest) (*Ticket, error) {
	rut := benefits.NormalizeRUT(req.TrabajadorRUT)
	if err := benefits.ValidateRUT(rut); err != nil {
		return nil, err
	}

	if existing, err := s.repo.ActiveForWorker(ctx, rut); err == nil {
		if _, err := s.Annul(ctx, existing.ID, "reemision"); err != nil && !errors.Is(err, ErrStateChanged) {
			return nil, err
		}
	} else if !errors.Is(err, ErrTicketNotFound) {
		return nil, err
	}

	t, _, err := s.Issue(ctx, req)
	return t, err
}

// ============================================================================
// EXPIRY SWEEP
// ============================================================================

// ExpireDue bulk-expires every redeemable ticket past its window. Invoked by
// the scheduled sweep; lazy expiry on read covers the gap between runs.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireDue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for i := int64(0); i < n; i++ {
		s.metricTicketExpired()
	}
	if n > 0 {
		s.logger.Info("expiry sweep", "expired", n)
	}
	return n, nil
}

func (s *Service) metricTicketIssued() {
	if s.metrics != nil {
		s.metrics.TicketIssued()
	}
}

func (s *Service) metricTicketDelivered() {
	if s.metrics != nil {
		s.metrics.TicketDelivered()
	}
}

func (s *Service) metricTicketExpired() {
	if s.metrics != nil {
		s.metrics.TicketExpired()
	}
}
