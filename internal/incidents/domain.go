package incidents

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// INCIDENT TYPES
// ============================================================================

// Type is the closed set of incident categories.
type Type string

const (
	TypeIllegibleDocument Type = "documento_ilegible"
	TypeDamagedTicket     Type = "ticket_danado"
	TypeIncorrectData     Type = "datos_incorrectos"
	TypeWrongBox          Type = "caja_incorrecta"
	TypeOther             Type = "otro"
)

// IsValid checks membership in the closed set.
func (t Type) IsValid() bool {
	switch t {
	case TypeIllegibleDocument, TypeDamagedTicket, TypeIncorrectData, TypeWrongBox, TypeOther:
		return true
	default:
		return false
	}
}

// Origin identifies which front end filed the incident.
type Origin string

const (
	OriginTotem   Origin = "totem"
	OriginGuardia Origin = "guardia"
)

// IsValid checks the origin value.
func (o Origin) IsValid() bool {
	return o == OriginTotem || o == OriginGuardia
}

// IncidentState tracks resolution, which belongs to the external RRHH
// collaborator; this core only creates records in pendiente.
type IncidentState string

const (
	StatePending  IncidentState = "pendiente"
	StateResolved IncidentState = "resuelto"
)

// ============================================================================
// INCIDENT ENTITY
// ============================================================================

// Incident records an exception raised during the ticket workflow. Creating
// one is purely additive: it never mutates ticket or stock state.
type Incident struct {
	ID            uuid.UUID      `json:"uuid"`
	Code          string         `json:"codigo"`
	Tipo          Type           `json:"tipo"`
	Descripcion   string         `json:"descripcion"`
	Origen        Origin         `json:"origen"`
	TrabajadorRUT *string        `json:"trabajador_rut,omitempty"`
	TicketID      *uuid.UUID     `json:"ticket_uuid,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	State         IncidentState  `json:"estado"`
	CreatedAt     time.Time      `json:"creado_at"`
}

// CreateIncidentRequest is the body of POST /incidencias/.
type CreateIncidentRequest struct {
	Tipo          Type           `json:"tipo" validate:"required"`
	Descripcion   string         `json:"descripcion" validate:"required"`
	Origen        Origin         `json:"origen" validate:"required,oneof=totem guardia"`
	TrabajadorRUT *string        `json:"trabajador_rut,omitempty" validate:"omitempty,max=12"`
	TicketUUID    *string        `json:"ticket_uuid,omitempty" validate:"omitempty,uuid4"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
