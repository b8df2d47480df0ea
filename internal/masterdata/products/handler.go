package products

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-inventory/internal/auth"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-inventory/internal/platform/httpx"
)

const (
	maxBodyBytes = 1 << 20

	// unknownActor is recorded when a request carries no identity.
	unknownActor = "unknown"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/adjust", h.Adjust)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list products failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get product failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", shared.ErrValidation))
		return
	}
	in, err := req.input(actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	id, err := h.service.Add(r.Context(), in)
	if err != nil {
		h.fail(w, "add product failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch, err := DecodePatch(body)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.service.Update(r.Context(), id, patch, actor(r)); err != nil {
		h.fail(w, "update product failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "product updated"})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, actor(r)); err != nil {
		h.fail(w, "delete product failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req adjustRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid request body", shared.ErrValidation))
		return
	}
	delta, err := ParseDelta(req.Delta)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	quantity, err := h.service.AdjustQuantity(r.Context(), id, delta, actor(r))
	if err != nil {
		h.fail(w, "adjust quantity failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"id": id, "quantity": quantity})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(msg, append(attrs, slog.Any("error", err))...)
	}
	httpx.RespondError(w, err)
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return id, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: request body too large", shared.ErrValidation)
		}
		return nil, fmt.Errorf("%w: unreadable request body", shared.ErrValidation)
	}
	return body, nil
}

func actor(r *http.Request) string {
	if id, ok := auth.IdentityFromContext(r.Context()); ok && id.Subject != "" {
		return id.Subject
	}
	return unknownActor
}
