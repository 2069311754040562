package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CustomerDirectory interface {
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
}

// OrderNotifier sends an order confirmation email for every order.placed
// event.
type OrderNotifier struct {
	customers       CustomerDirectory
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewOrderNotifier(customers CustomerDirectory, emailServiceURL string, client *http.Client, logger *slog.Logger) *OrderNotifier {
	return &OrderNotifier{
		customers:       customers,
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		httpClient:      client,
		logger:          logger,
	}
}

type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (n *OrderNotifier) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		n.logger.Error("dropping malformed order placed event", "error", err)
		return nil
	}

	n.logger.Info("processing order placed event", "order_id", event.OrderID, "customer_id", event.CustomerID)

	customer, err := n.customers.GetByID(ctx, event.CustomerID)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		n.logger.Error("dropping order placed event for unknown customer", "order_id", event.OrderID, "customer_id", event.CustomerID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up customer %d: %w", event.CustomerID, err)
	}
	if customer.Email == "" {
		n.logger.Warn("customer has no email, skipping confirmation", "order_id", event.OrderID, "customer_id", customer.ID)
		return nil
	}

	if err := n.send(ctx, ConfirmationEmail(customer, event)); err != nil {
		return fmt.Errorf("send confirmation for order %d: %w", event.OrderID, err)
	}

	n.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

func ConfirmationEmail(customer *domain.Customer, event domain.OrderPlacedEvent) Email {
	var body strings.Builder
	name := strings.TrimSpace(customer.FirstName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&body, "Hi %s,\n\nThanks for your order #%d.\n\n", name, event.OrderID)
	for _, line := range event.Items {
		fmt.Fprintf(&body, "  product %d: %d x %s\n", line.ProductID, line.Quantity, line.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(&body, "\nTotal: %s\n", event.Cost.StringFixed(2))

	return Email{
		To:      customer.Email,
		Subject: fmt.Sprintf("Order Confirmation: #%d", event.OrderID),
		Body:    body.String(),
	}
}

func (n *OrderNotifier) send(ctx context.Context, email Email) error {
	data, err := json.Marshal(email)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
