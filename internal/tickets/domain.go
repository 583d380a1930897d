package tickets

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// TICKET STATE
// ============================================================================

// State is the shared vocabulary of the ticket lifecycle. A ticket moves
// forward only: issued (optionally relabelled pending_redemption for display)
// ends in exactly one of delivered, expired, annulled or incident — and
// incident is not terminal, a corrected box match before expiry still
// delivers.
type State string

const (
	StateIssued            State = "issued"
	StatePendingRedemption State = "pending_redemption"
	StateDelivered         State = "delivered"
	StateExpired           State = "expired"
	StateAnnulled          State = "annulled"
	StateIncident          State = "incident"
)

// IsValid checks if the state is part of the machine.
func (s State) IsValid() bool {
	switch s {
	case StateIssued, StatePendingRedemption, StateDelivered, StateExpired, StateAnnulled, StateIncident:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s State) IsTerminal() bool {
	switch s {
	case StateDelivered, StateExpired, StateAnnulled:
		return true
	default:
		return false
	}
}

// Redeemable reports whether a correct box match may still deliver the
// ticket. The issued/pending distinction is cosmetic: a ticket is redeemable
// from creation until expiry, incident included.
func (s State) Redeemable() bool {
	switch s {
	case StateIssued, StatePendingRedemption, StateIncident:
		return true
	default:
		return false
	}
}

// RedeemableStates lists the states a delivery or annulment may start from.
func RedeemableStates() []State {
	return []State{StateIssued, StatePendingRedemption, StateIncident}
}

// CanTransition reports whether from→to is a legal forward move.
func CanTransition(from, to State) bool {
	if !from.IsValid() || !to.IsValid() || from.IsTerminal() {
		return false
	}
	switch from {
	case StateIssued:
		return to != StateIssued
	case StatePendingRedemption:
		return to != StateIssued && to != StatePendingRedemption
	case StateIncident:
		return to == StateDelivered || to == StateExpired || to == StateAnnulled
	default:
		return false
	}
}

// ============================================================================
// TICKET ENTITY
// ============================================================================

// EventType labels entries in the ticket event log.
type EventType string

const (
	EventIssued   EventType = "emitido"
	EventDelivery EventType = "entrega"
	EventWrongBox EventType = "caja_incorrecta"
	EventAnnulled EventType = "anulado"
	EventExpired  EventType = "expirado"
)

// Event is one entry of the ordered ticket event log.
type Event struct {
	Type      EventType      `json:"tipo"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Ticket is a time-boxed withdrawal authorization. Its UUID doubles as the
// redemption code encoded in the kiosk QR.
type Ticket struct {
	ID          uuid.UUID `json:"uuid"`
	WorkerRUT   string    `json:"trabajador_rut"`
	WorkerName  string    `json:"trabajador_nombre"`
	BenefitType string    `json:"tipo_beneficio"`
	// AssignedBox is snapshotted from the benefit at issuance; phase two of
	// guard validation matches the scanned box code against it.
	AssignedBox string    `json:"codigo_caja_asignada"`
	BoxCodeUsed *string   `json:"codigo_caja,omitempty"`
	State       State     `json:"estado"`
	Branch      string    `json:"sucursal"`
	CreatedAt   time.Time `json:"creado_at"`
	ExpiresAt   time.Time `json:"ttl_expira_at"`
	Events      []Event   `json:"eventos,omitempty"`
}

// Expired reports whether the validity window has closed at the given time.
func (t *Ticket) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// IssueTicketRequest creates a ticket for an eligible worker.
type IssueTicketRequest struct {
	TrabajadorRUT string `json:"trabajador_rut" validate:"required"`
	Sucursal      string `json:"sucursal" validate:"required,max=50"`
	// IdempotencyToken is client-generated; a duplicate submission returns
	// the already-issued live ticket instead of creating a second one.
	IdempotencyToken string `json:"idempotency_token" validate:"omitempty,max=100"`
}

// GuardValidationRequest carries the optional box code for phase two.
// Omitting codigo_caja performs only the ticket-state phase.
type GuardValidationRequest struct {
	CodigoCaja string `json:"codigo_caja" validate:"omitempty,max=50"`
}

// ValidationOutcome is the tagged result of guard validation; the station UI
// renders each variant as a distinct terminal screen.
type ValidationOutcome string

const (
	OutcomeValidPending     ValidationOutcome = "valido_pendiente"
	OutcomeDelivered        ValidationOutcome = "entregado"
	OutcomeWrongBox         ValidationOutcome = "caja_incorrecta"
	OutcomeExpired          ValidationOutcome = "expirado"
	OutcomeAlreadyDelivered ValidationOutcome = "ya_entregado"
	OutcomeAlreadyAnnulled  ValidationOutcome = "ya_anulado"
)

// ValidationResult aggregates the outcome with the current ticket snapshot
// and, for mismatches, the incident that was filed.
type ValidationResult struct {
	Outcome      ValidationOutcome `json:"resultado"`
	Ticket       *Ticket           `json:"ticket,omitempty"`
	IncidentCode string            `json:"codigo_incidencia,omitempty"`
}

// StatusResponse is the countdown-bearing snapshot served to both fronts.
type StatusResponse struct {
	Ticket           *Ticket `json:"ticket"`
	RemainingSeconds int64   `json:"segundos_restantes"`
}
