package incidents

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), nil).WithClock(func() time.Time {
		return time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	})
	return svc, repo
}

func TestReport(t *testing.T) {
	ctx := context.Background()

	t.Run("files a pending incident with a dated code", func(t *testing.T) {
		svc, _ := newTestService(t)
		rut := "123456785"
		inc, err := svc.Report(ctx, CreateIncidentRequest{
			Tipo:          TypeIllegibleDocument,
			Descripcion:   "cedula no se puede leer en el escaner",
			Origen:        OriginTotem,
			TrabajadorRUT: &rut,
		})
		require.NoError(t, err)
		assert.Equal(t, StatePending, inc.State)
		assert.Equal(t, "INC-20260826-0001", inc.Code)
		assert.Equal(t, TypeIllegibleDocument, inc.Tipo)
	})

	t.Run("codes are sequential", func(t *testing.T) {
		svc, _ := newTestService(t)
		first, err := svc.Report(ctx, CreateIncidentRequest{
			Tipo: TypeOther, Descripcion: "caja llego abierta", Origen: OriginGuardia,
		})
		require.NoError(t, err)
		second, err := svc.Report(ctx, CreateIncidentRequest{
			Tipo: TypeDamagedTicket, Descripcion: "pantalla del totem rota", Origen: OriginTotem,
		})
		require.NoError(t, err)
		assert.Equal(t, "INC-20260826-0001", first.Code)
		assert.Equal(t, "INC-20260826-0002", second.Code)
	})

	t.Run("links a ticket when given", func(t *testing.T) {
		svc, repo := newTestService(t)
		ticketID := uuid.New().String()
		inc, err := svc.Report(ctx, CreateIncidentRequest{
			Tipo:        TypeWrongBox,
			Descripcion: "caja escaneada no corresponde",
			Origen:      OriginGuardia,
			TicketUUID:  &ticketID,
		})
		require.NoError(t, err)
		require.NotNil(t, inc.TicketID)
		assert.Equal(t, ticketID, inc.TicketID.String())

		byTicket, err := repo.ListByTicket(ctx, *inc.TicketID)
		require.NoError(t, err)
		assert.Len(t, byTicket, 1)
	})

	t.Run("rejects unknown tipo", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Report(ctx, CreateIncidentRequest{
			Tipo: Type("cualquiera"), Descripcion: "x", Origen: OriginTotem,
		})
		assert.ErrorIs(t, err, ErrInvalidIncident)
	})

	t.Run("rejects unknown origen", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Report(ctx, CreateIncidentRequest{
			Tipo: TypeOther, Descripcion: "x", Origen: Origin("rrhh"),
		})
		assert.ErrorIs(t, err, ErrInvalidIncident)
	})

	t.Run("rejects empty descripcion", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Report(ctx, CreateIncidentRequest{
			Tipo: TypeOther, Origen: OriginTotem,
		})
		assert.ErrorIs(t, err, ErrInvalidIncident)
	})

	t.Run("rejects malformed ticket uuid", func(t *testing.T) {
		svc, _ := newTestService(t)
		bad := "not-a-uuid"
		_, err := svc.Report(ctx, CreateIncidentRequest{
			Tipo: TypeOther, Descripcion: "x", Origen: OriginTotem, TicketUUID: &bad,
		})
		assert.ErrorIs(t, err, ErrInvalidIncident)
	})
}
