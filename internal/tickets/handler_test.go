package tickets

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *fixture) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route("/tickets", h.MountRoutes)
	return r, f
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerIssue(t *testing.T) {
	t.Run("issues a ticket", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(t, router, http.MethodPost, "/tickets/",
			`{"trabajador_rut": "12.345.678-5", "sucursal": "CENTRAL"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "issued", body["estado"])
		assert.Equal(t, "123456785", body["trabajador_rut"])
		assert.Equal(t, "CAJA-07", body["codigo_caja_asignada"])
		assert.NotEmpty(t, body["uuid"])
		assert.NotEmpty(t, body["ttl_expira_at"])
	})

	t.Run("duplicate issue returns the live ticket with 200", func(t *testing.T) {
		router, _ := newTestRouter(t)
		first := doJSON(t, router, http.MethodPost, "/tickets/",
			`{"trabajador_rut": "12345678-5", "sucursal": "CENTRAL"}`)
		require.Equal(t, http.StatusCreated, first.Code)

		second := doJSON(t, router, http.MethodPost, "/tickets/",
			`{"trabajador_rut": "12345678-5", "sucursal": "CENTRAL"}`)
		require.Equal(t, http.StatusOK, second.Code)

		var a, b map[string]any
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
		assert.Equal(t, a["uuid"], b["uuid"])
	})

	t.Run("replayed token after delivery yields 409", func(t *testing.T) {
		router, _ := newTestRouter(t)
		first := doJSON(t, router, http.MethodPost, "/tickets/",
			`{"trabajador_rut": "12345678-5", "sucursal": "CENTRAL", "idempotency_token": "kiosk-1-touch-9"}`)
		require.Equal(t, http.StatusCreated, first.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
		id := body["uuid"].(string)

		delivered := doJSON(t, router, http.MethodPost, "/tickets/"+id+"/validar_guardia/",
			`{"codigo_caja": "CAJA-07"}`)
		require.Equal(t, http.StatusOK, delivered.Code)

		replay := doJSON(t, router, http.MethodPost, "/tickets/",
			`{"trabajador_rut": "12345678-5", "sucursal": "CENTRAL", "idempotency_token": "kiosk-1-touch-9"}`)
		assert.Equal(t, http.StatusConflict, replay.Code)
	})

	t.Run("invalid rut yields 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(t, router, http.MethodPost, "/tickets/",
			`{"trabajador_rut": "12345678-9", "sucursal": "CENTRAL"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("worker without benefit yields 404", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(t, router, http.MethodPost, "/tickets/",
			`{"trabajador_rut": "5000001-K", "sucursal": "CENTRAL"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandlerStatus(t *testing.T) {
	t.Run("serves the countdown", func(t *testing.T) {
		router, f := newTestRouter(t)
		ticket := f.issue(t)
		f.clock.Advance(5 * time.Minute)

		rec := doJSON(t, router, http.MethodGet, "/tickets/"+ticket.ID.String()+"/estado/", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Ticket           map[string]any `json:"ticket"`
			RemainingSeconds int64          `json:"segundos_restantes"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, int64(25*60), body.RemainingSeconds)
		assert.Equal(t, "issued", body.Ticket["estado"])
	})

	t.Run("unknown ticket yields 404", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(t, router, http.MethodGet, "/tickets/a3bb189e-8bf9-4888-9912-ace4e6543002/estado/", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed identifier yields 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(t, router, http.MethodGet, "/tickets/CAJA-07/estado/", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlerValidateGuard(t *testing.T) {
	t.Run("state phase without body", func(t *testing.T) {
		router, f := newTestRouter(t)
		ticket := f.issue(t)

		rec := doJSON(t, router, http.MethodPost, "/tickets/"+ticket.ID.String()+"/validar_guardia/", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var res ValidationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, OutcomeValidPending, res.Outcome)
	})

	t.Run("delivery with the right box", func(t *testing.T) {
		router, f := newTestRouter(t)
		ticket := f.issue(t)

		rec := doJSON(t, router, http.MethodPost, "/tickets/"+ticket.ID.String()+"/validar_guardia/",
			`{"codigo_caja": "CAJA-07"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res ValidationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, OutcomeDelivered, res.Outcome)
	})

	t.Run("wrong box reports the incident code", func(t *testing.T) {
		router, f := newTestRouter(t)
		ticket := f.issue(t)

		rec := doJSON(t, router, http.MethodPost, "/tickets/"+ticket.ID.String()+"/validar_guardia/",
			`{"codigo_caja": "SIM-INCORRECTA"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res ValidationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, OutcomeWrongBox, res.Outcome)
		assert.NotEmpty(t, res.IncidentCode)
	})

	t.Run("accepts a full qr payload as identifier", func(t *testing.T) {
		router, f := newTestRouter(t)
		ticket := f.issue(t)

		path := "/tickets/" + "retiro-" + ticket.ID.String() + "/validar_guardia/"
		rec := doJSON(t, router, http.MethodPost, path, `{"codigo_caja": "CAJA-07"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var res ValidationResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, OutcomeDelivered, res.Outcome)
	})
}

func TestHandlerAnnul(t *testing.T) {
	router, f := newTestRouter(t)
	ticket := f.issue(t)

	rec := doJSON(t, router, http.MethodPost, "/tickets/"+ticket.ID.String()+"/anular/",
		`{"motivo": "trabajador perdio el ticket"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "annulled", body["estado"])

	// A second annulment hits a terminal state.
	rec = doJSON(t, router, http.MethodPost, "/tickets/"+ticket.ID.String()+"/anular/", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
