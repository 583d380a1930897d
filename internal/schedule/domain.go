package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Appointment books a weekday pickup slot for a worker whose benefit had no
// stock at the kiosk. Dates are day-granular; no time-of-day is tracked.
type Appointment struct {
	ID          uuid.UUID `json:"uuid"`
	WorkerRUT   string    `json:"trabajador_rut"`
	BenefitType string    `json:"tipo_beneficio"`
	Date        string    `json:"fecha"`
	Branch      string    `json:"sucursal"`
	CreatedAt   time.Time `json:"creado_at"`
}

// CreateAppointmentRequest is the body of POST /agendamientos/.
type CreateAppointmentRequest struct {
	TrabajadorRUT string `json:"trabajador_rut" validate:"required"`
	Fecha         string `json:"fecha" validate:"required,datetime=2006-01-02"`
	Sucursal      string `json:"sucursal" validate:"required,max=50"`
}

// AvailableDates lists the bookable weekdays of the week containing now:
// today through Friday, Monday through Friday only. An empty slice on a
// weekend or after Friday's cutoff means no slot remains this week.
func AvailableDates(now time.Time) []string {
	wd := now.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return nil
	}
	var out []string
	for d := now; ; d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format("2006-01-02"))
		if d.Weekday() == time.Friday {
			break
		}
	}
	return out
}
