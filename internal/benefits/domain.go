package benefits

import (
	"time"
)

// Benefit describes the assignment a worker may withdraw. BoxCode is the
// physical container type the guard matches against at redemption.
type Benefit struct {
	Type    string `json:"tipo" db:"tipo"`
	BoxCode string `json:"codigo_caja" db:"codigo_caja"`
	Active  bool   `json:"activo" db:"activo"`
}

// Worker is a beneficiary identified by their RUT. Worker rows are owned by
// the external HR collaborator; this core only reads them.
type Worker struct {
	RUT       string    `json:"rut" db:"rut"`
	Name      string    `json:"nombre" db:"nombre"`
	Benefit   Benefit   `json:"beneficio" db:"-"`
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

// StockCounter tracks remaining boxes per benefit type per day. It is only
// decremented when a ticket reaches delivered, never at issuance.
type StockCounter struct {
	BenefitType string    `json:"tipo_beneficio" db:"tipo_beneficio"`
	Day         time.Time `json:"dia" db:"dia"`
	Remaining   int       `json:"restante" db:"restante"`
}

// EligibilityStatus is the outcome of resolving a worker's RUT.
type EligibilityStatus string

const (
	EligibilityNoBenefit    EligibilityStatus = "sin_beneficio"
	EligibilityWithStock    EligibilityStatus = "beneficio_con_stock"
	EligibilityWithoutStock EligibilityStatus = "beneficio_sin_stock"
)

// Eligibility routes the kiosk flow: no benefit ends at a terminal screen,
// with stock proceeds to issuance, without stock offers scheduling.
type Eligibility struct {
	Status         EligibilityStatus `json:"estado"`
	Worker         *Worker           `json:"trabajador,omitempty"`
	StockRemaining int               `json:"stock_restante"`
}
