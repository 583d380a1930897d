package tickets

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/retiro-core/retiro-core/internal/benefits"
	"github.com/retiro-core/retiro-core/internal/platform/httpx"
	"github.com/retiro-core/retiro-core/internal/shared"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.issue)
	r.Get("/{uuid}/estado/", h.status)
	r.Post("/{uuid}/validar_guardia/", h.validateGuard)
	r.Post("/{uuid}/anular/", h.annul)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req IssueTicketRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
		return
	}

	t, created, err := h.svc.Issue(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, benefits.ErrInvalidRUT):
			httpx.Problem(w, http.StatusBadRequest, "RUT Invalido", "el RUT entregado no es valido")
		case errors.Is(err, ErrNoBenefit):
			httpx.Problem(w, http.StatusNotFound, "Sin Beneficio", "el trabajador no tiene un beneficio activo")
		case errors.Is(err, ErrNoStock):
			httpx.Problem(w, http.StatusConflict, "Sin Stock", "no quedan cajas disponibles para hoy")
		case errors.Is(err, ErrActiveTicketExists):
			httpx.Problem(w, http.StatusConflict, "Ticket Vigente", "el trabajador ya tiene un ticket vigente")
		case errors.Is(err, shared.ErrIdempotencyConflict):
			httpx.Problem(w, http.StatusConflict, "Solicitud Duplicada", "el token idempotente ya fue procesado y su ticket alcanzo un estado final")
		default:
			h.logger.Error("issue ticket", "error", err)
			httpx.RespondError(w, err)
		}
		return
	}

	status := http.StatusCreated
	if !created {
		// Idempotent replay or one-live-ticket reuse: same body, 200.
		status = http.StatusOK
	}
	httpx.JSON(w, status, t)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	resp, err := h.svc.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Ticket No Encontrado", "no existe un ticket con ese identificador")
			return
		}
		h.logger.Error("ticket status", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) validateGuard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var req GuardValidationRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
			return
		}
	}

	res, err := h.svc.ValidateGuard(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Ticket No Encontrado", "no existe un ticket con ese identificador")
			return
		}
		h.logger.Error("validate guard", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) annul(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}

	var body struct {
		Motivo string `json:"motivo"`
	}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
			return
		}
	}

	t, err := h.svc.Annul(r.Context(), id, body.Motivo)
	if err != nil {
		switch {
		case errors.Is(err, ErrTicketNotFound):
			httpx.Problem(w, http.StatusNotFound, "Ticket No Encontrado", "no existe un ticket con ese identificador")
		case errors.Is(err, ErrStateChanged):
			httpx.Problem(w, http.StatusConflict, "Ticket No Anulable", "el ticket ya alcanzo un estado final")
		default:
			h.logger.Error("annul ticket", "error", err)
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

// ticketID parses the path parameter, accepting either a bare UUID or a full
// QR payload with the UUID embedded.
func (h *Handler) ticketID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "uuid")
	id, err := uuid.Parse(raw)
	if err == nil {
		return id, true
	}
	id, err = ExtractTicketID(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Identificador Invalido", "el identificador no contiene un UUID de ticket")
		return uuid.UUID{}, false
	}
	return id, true
}
