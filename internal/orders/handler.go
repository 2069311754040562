package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	transactor *Transactor
	gateway    *Gateway
	customers  CustomerLookup
	publisher  Publisher
	metrics    *telemetry.CheckoutMetrics
	logger     *slog.Logger
}

// NewHandler wires the order endpoints. publisher may be nil, in which case
// no order.placed events are emitted.
func NewHandler(transactor *Transactor, gateway *Gateway, customers CustomerLookup, publisher Publisher, logger *slog.Logger) (*Handler, error) {
	metrics, err := telemetry.NewCheckoutMetrics(otel.Meter("storefront/orders"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		transactor: transactor,
		gateway:    gateway,
		customers:  customers,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

type checkoutRequest struct {
	CartID string `json:"cart_id"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "cart_id must be a valid UUID")
		return
	}

	customer, err := h.customers.GetByUserID(r.Context(), p.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	start := time.Now()
	order, err := h.transactor.Checkout(r.Context(), cartID, customer.ID)
	h.metrics.Record(r.Context(), checkoutOutcome(err), time.Since(start))
	if err != nil {
		if errors.Is(err, domain.ErrStorageTransaction) {
			h.logger.Error("checkout rolled back", "error", err, "cart_id", cartID)
		}
		h.writeDomainError(w, err)
		return
	}

	if h.publisher != nil {
		key := strconv.FormatInt(order.ID, 10)
		if err := h.publisher.Publish(r.Context(), key, domain.NewOrderPlacedEvent(order)); err != nil {
			h.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order placed", "order_id", order.ID, "customer_id", order.CustomerID, "cost", order.Cost.String(), "items", len(order.Items))
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	orders, err := h.gateway.List(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("orders listed", "count", len(orders), "staff", p.Staff)
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.gateway.Get(r.Context(), p, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.gateway.UpdateStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status, "staff", p.Staff)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.gateway.Delete(r.Context(), p, id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "placed"
	case errors.Is(err, domain.ErrCartNotFound):
		return "cart_not_found"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, domain.ErrStorageTransaction):
		return "storage_failure"
	default:
		return "error"
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidStatus):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCustomerNotFound):
		h.writeError(w, http.StatusConflict, "no customer profile for the current user")
	case errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStorageTransaction):
		w.Header().Set("Retry-After", "1")
		h.writeError(w, http.StatusServiceUnavailable, "temporary storage failure, retry the request")
	default:
		h.logger.Error("order request failed", "error", err)
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
