package incidents

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

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
	r.Get("/{uuid}/", h.get)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Solicitud Invalida", err.Error())
		return
	}

	inc, err := h.svc.Report(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidIncident) {
			httpx.Problem(w, http.StatusBadRequest, "Incidencia Invalida", err.Error())
			return
		}
		h.logger.Error("create incident", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Identificador Invalido", "uuid mal formado")
		return
	}
	inc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrIncidentNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Incidencia No Encontrada", "no existe una incidencia con ese identificador")
			return
		}
		h.logger.Error("get incident", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inc)
}
