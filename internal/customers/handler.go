package customers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Store interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Customer, error)
	List(ctx context.Context) ([]domain.Customer, error)
	UpdateProfile(ctx context.Context, userID, phone, address string) (*domain.Customer, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeDomainError(w, domain.ErrUnauthorized)
		return
	}
	if !p.Staff {
		h.writeDomainError(w, domain.ErrForbidden)
		return
	}

	customers, err := h.store.List(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, customers)
}

func (h *Handler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	customer, err := h.store.GetByUserID(r.Context(), p.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, customer)
}

type updateMeRequest struct {
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Phone) > 20 || len(req.Address) > 255 {
		h.writeError(w, http.StatusBadRequest, "phone or address too long")
		return
	}

	customer, err := h.store.UpdateProfile(r.Context(), p.UserID, req.Phone, req.Address)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("customer profile updated", "customer_id", customer.ID)
	h.writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrCustomerNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("customer request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
