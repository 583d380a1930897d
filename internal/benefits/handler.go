package benefits

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retiro-core/retiro-core/internal/platform/httpx"
)

// Handler serves the benefit lookup consumed by the totem.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers benefit routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{rut}/", h.resolve)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	rut := chi.URLParam(r, "rut")
	eligibility, err := h.service.Resolve(r.Context(), rut)
	if err != nil {
		if errors.Is(err, ErrInvalidRUT) {
			httpx.Problem(w, http.StatusBadRequest, "RUT Invalido", "el rut entregado no es valido")
			return
		}
		h.logger.Error("resolve benefit", slog.String("rut", rut), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, eligibility)
}
