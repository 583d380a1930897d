package schedule

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/retiro-core/retiro-core/internal/benefits"
	"github.com/retiro-core/retiro-core/internal/platform/httpx"
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
	r.Post("/", h.create)
	r.Get("/disponibles/", h.available)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
		return
	}

	a, err := h.svc.Book(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, benefits.ErrInvalidRUT):
			httpx.Problem(w, http.StatusBadRequest, "RUT Invalido", "el RUT entregado no es valido")
		case errors.Is(err, ErrDateNotBookable):
			httpx.Problem(w, http.StatusBadRequest, "Fecha No Disponible", err.Error())
		case errors.Is(err, ErrNotEligible):
			httpx.Problem(w, http.StatusConflict, "No Corresponde Agendar", err.Error())
		case errors.Is(err, ErrAppointmentExists):
			httpx.Problem(w, http.StatusConflict, "Agendamiento Duplicado", "ya existe un agendamiento para esa fecha")
		default:
			h.logger.Error("book appointment", "error", err)
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"fechas": h.svc.Available()})
}
