//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/carts"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/customers"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/gateway"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
)

type storefront struct {
	db        *sql.DB
	router    http.Handler
	orders    *orders.OrderRepository
	carts     *carts.CartRepository
	catalog   *catalog.CatalogRepository
	customers *customers.CustomerRepository
	logger    *slog.Logger
}

func newStorefront(t *testing.T, db *sql.DB, publisher orders.Publisher) *storefront {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &storefront{
		db:        db,
		orders:    orders.NewOrderRepository(db),
		carts:     carts.NewCartRepository(db),
		catalog:   catalog.NewCatalogRepository(db),
		customers: customers.NewCustomerRepository(db),
		logger:    logger,
	}

	ordersHandler, err := orders.NewHandler(
		orders.NewTransactor(s.orders),
		orders.NewGateway(s.orders, s.customers),
		s.customers,
		publisher,
		logger,
	)
	if err != nil {
		t.Fatalf("failed to create orders handler: %v", err)
	}

	s.router = gateway.NewRouter("storefront-test", gateway.Handlers{
		Orders:    ordersHandler,
		Carts:     carts.NewHandler(s.carts, logger),
		Catalog:   catalog.NewHandler(catalog.NewService(s.catalog, nil, logger), logger),
		Customers: customers.NewHandler(s.customers, logger),
	})
	return s
}

func (s *storefront) do(t *testing.T, method, path, body, userID string, staff bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(auth.HeaderUserID, userID)
	}
	if staff {
		req.Header.Set(auth.HeaderUserRole, auth.RoleStaff)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *storefront) seedProduct(ctx context.Context, t *testing.T, collectionID int64, slug, price string) *domain.Product {
	t.Helper()

	p := &domain.Product{
		Name:         strings.ToUpper(slug[:1]) + slug[1:],
		Slug:         slug,
		Price:        decimal.RequireFromString(price),
		Stock:        10,
		CollectionID: collectionID,
	}
	if err := s.catalog.CreateProduct(ctx, p); err != nil {
		t.Fatalf("failed to create product %s: %v", slug, err)
	}
	return p
}

func (s *storefront) seedCustomer(ctx context.Context, t *testing.T, userID, email string) *domain.Customer {
	t.Helper()

	payload, err := json.Marshal(domain.UserCreatedEvent{UserID: userID, Email: email, FirstName: "Test"})
	if err != nil {
		t.Fatalf("failed to marshal user event: %v", err)
	}
	if err := customers.NewProvisioner(s.customers, s.logger).Handle(ctx, payload); err != nil {
		t.Fatalf("failed to provision customer: %v", err)
	}

	c, err := s.customers.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to load customer: %v", err)
	}
	return c
}

// seedCart returns a cart holding product a twice and product b once, with
// product a added in two steps.
func (s *storefront) seedCart(ctx context.Context, t *testing.T, a, b *domain.Product) uuid.UUID {
	t.Helper()

	cart, err := s.carts.Create(ctx)
	if err != nil {
		t.Fatalf("failed to create cart: %v", err)
	}
	for _, line := range []struct {
		product *domain.Product
		qty     int
	}{{a, 1}, {b, 1}, {a, 1}} {
		if _, err := s.carts.AddItem(ctx, cart.ID, line.product.ID, line.qty); err != nil {
			t.Fatalf("failed to add cart item: %v", err)
		}
	}
	return cart.ID
}

func (s *storefront) seedCatalog(ctx context.Context, t *testing.T) (*domain.Product, *domain.Product) {
	t.Helper()

	c := &domain.Collection{Name: "Amigurumi"}
	if err := s.catalog.CreateCollection(ctx, c); err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}
	return s.seedProduct(ctx, t, c.ID, "bunny", "10.00"), s.seedProduct(ctx, t, c.ID, "bear", "5.50")
}

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg.OpenDB(t), nil)
	bunny, bear := s.seedCatalog(ctx, t)
	customer := s.seedCustomer(ctx, t, "user-1", "user1@example.com")
	cartID := s.seedCart(ctx, t, bunny, bear)

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}
	if len(cart.Items) != 2 || cart.TotalPrice.StringFixed(2) != "25.50" {
		t.Fatalf("unexpected cart before checkout: %d items, total %s", len(cart.Items), cart.TotalPrice)
	}

	body := fmt.Sprintf(`{"cart_id":%q}`, cartID)
	rec := s.do(t, http.MethodPost, "/orders", body, "user-1", false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var order domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if order.CustomerID != customer.ID {
		t.Fatalf("expected customer %d, got %d", customer.ID, order.CustomerID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status pending, got %s", order.Status)
	}
	if order.Cost.StringFixed(2) != "25.50" {
		t.Fatalf("expected cost 25.50, got %s", order.Cost)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}

	if _, err := s.carts.Get(ctx, cartID); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected cart to be deleted, got %v", err)
	}

	rec = s.do(t, http.MethodPost, "/orders", body, "user-1", false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected second checkout to fail with %d, got %d", http.StatusBadRequest, rec.Code)
	}

	bunny.Price = decimal.RequireFromString("99.00")
	if err := s.catalog.UpdateProduct(ctx, bunny); err != nil {
		t.Fatalf("failed to update product price: %v", err)
	}

	stored, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to load order: %v", err)
	}
	if stored.Cost.StringFixed(2) != "25.50" {
		t.Fatalf("order cost changed with product price: %s", stored.Cost)
	}
	for _, item := range stored.Items {
		if item.Product.ID == bunny.ID && item.UnitPrice.StringFixed(2) != "10.00" {
			t.Fatalf("expected snapshotted unit price 10.00, got %s", item.UnitPrice)
		}
	}

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", bunny.ID), "", "admin", true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected deleting a sold product to fail with %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestCheckoutPreconditions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg.OpenDB(t), nil)
	bunny, bear := s.seedCatalog(ctx, t)
	s.seedCustomer(ctx, t, "user-1", "user1@example.com")

	empty, err := s.carts.Create(ctx)
	if err != nil {
		t.Fatalf("failed to create cart: %v", err)
	}

	rec := s.do(t, http.MethodPost, "/orders", fmt.Sprintf(`{"cart_id":%q}`, empty.ID), "user-1", false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected empty cart to fail with %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/orders", fmt.Sprintf(`{"cart_id":%q}`, uuid.New()), "user-1", false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown cart to fail with %d, got %d", http.StatusBadRequest, rec.Code)
	}

	cartID := s.seedCart(ctx, t, bunny, bear)
	rec = s.do(t, http.MethodPost, "/orders", fmt.Sprintf(`{"cart_id":%q}`, cartID), "no-profile", false)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected missing customer to fail with %d, got %d", http.StatusConflict, rec.Code)
	}

	if _, err := s.carts.Get(ctx, cartID); err != nil {
		t.Fatalf("expected cart to survive a failed checkout: %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no orders, got %d", count)
	}
}

func TestConcurrentCheckout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg.OpenDB(t), nil)
	bunny, bear := s.seedCatalog(ctx, t)
	customer := s.seedCustomer(ctx, t, "user-1", "user1@example.com")
	cartID := s.seedCart(ctx, t, bunny, bear)

	transactor := orders.NewTransactor(s.orders)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := transactor.Checkout(ctx, cartID, customer.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful checkout, got %d", successes)
	}
	for _, err := range failures {
		if !errors.Is(err, domain.ErrCartNotFound) {
			t.Fatalf("expected losing checkouts to see cart not found, got %v", err)
		}
	}

	var orderCount, itemCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items`).Scan(&itemCount); err != nil {
		t.Fatalf("failed to count order items: %v", err)
	}
	if orderCount != 1 || itemCount != 2 {
		t.Fatalf("expected 1 order with 2 items, got %d orders and %d items", orderCount, itemCount)
	}
}

func TestOrderStatusRules(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg.OpenDB(t), nil)
	bunny, bear := s.seedCatalog(ctx, t)
	customer := s.seedCustomer(ctx, t, "user-1", "user1@example.com")
	s.seedCustomer(ctx, t, "user-2", "user2@example.com")

	transactor := orders.NewTransactor(s.orders)
	first, err := transactor.Checkout(ctx, s.seedCart(ctx, t, bunny, bear), customer.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	second, err := transactor.Checkout(ctx, s.seedCart(ctx, t, bunny, bear), customer.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	tests := []struct {
		name   string
		id     int64
		status string
		user   string
		staff  bool
		want   int
	}{
		{"other customer cannot cancel", first.ID, "canceled", "user-2", false, http.StatusForbidden},
		{"owner cannot ship", first.ID, "shipped", "user-1", false, http.StatusForbidden},
		{"staff ships", first.ID, "shipped", "admin", true, http.StatusOK},
		{"owner cannot cancel shipped order", first.ID, "canceled", "user-1", false, http.StatusConflict},
		{"staff cannot move backwards", first.ID, "pending", "admin", true, http.StatusConflict},
		{"unknown status", first.ID, "lost", "admin", true, http.StatusBadRequest},
		{"owner cancels pending order", second.ID, "canceled", "user-1", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPatch, fmt.Sprintf("/orders/%d", tt.id), fmt.Sprintf(`{"status":%q}`, tt.status), tt.user, tt.staff)
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec := s.do(t, http.MethodGet, "/orders", "", "user-2", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var list []domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode order list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected user-2 to see no orders, got %d", len(list))
	}

	rec = s.do(t, http.MethodGet, "/orders", "", "admin", true)
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode order list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected staff to see 2 orders, got %d", len(list))
	}
}

func TestProvisioningIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	s := newStorefront(t, pg.OpenDB(t), nil)
	first := s.seedCustomer(ctx, t, "user-1", "user1@example.com")
	again := s.seedCustomer(ctx, t, "user-1", "changed@example.com")

	if first.ID != again.ID || again.Email != "user1@example.com" {
		t.Fatalf("expected redelivered event to be ignored, got %+v", again)
	}

	rec := s.do(t, http.MethodPut, "/customers/me", `{"phone":"555-0100","address":"1 Main St"}`, "user-1", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/customers", "", "admin", true)
	var list []domain.Customer
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode customers: %v", err)
	}
	if len(list) != 1 || list[0].Phone != "555-0100" {
		t.Fatalf("unexpected customers: %+v", list)
	}
}

type emailCapture struct {
	mu     sync.Mutex
	emails []notify.Email
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req notify.Email
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []notify.Email {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]notify.Email, len(e.emails))
	copy(result, e.emails)
	return result
}

func TestOrderPlacedNotification(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	producer := messaging.NewProducer(brokers, domain.TopicOrderPlaced)
	defer func() { _ = producer.Close() }()

	s := newStorefront(t, pg.OpenDB(t), producer)
	bunny, bear := s.seedCatalog(ctx, t)
	s.seedCustomer(ctx, t, "user-1", "user1@example.com")
	cartID := s.seedCart(ctx, t, bunny, bear)

	rec := s.do(t, http.MethodPost, "/orders", fmt.Sprintf(`{"cart_id":%q}`, cartID), "user-1", false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var order domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}

	emailCap := &emailCapture{}
	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", emailCap.handler)
	emailServer := httptest.NewServer(emailMux)
	defer emailServer.Close()

	notifier := notify.NewOrderNotifier(s.customers, emailServer.URL, emailServer.Client(), s.logger)
	consumer := messaging.NewConsumer(brokers, domain.TopicOrderPlaced, "order-notifier-test",
		messaging.WithStartOffset(kafka.FirstOffset), messaging.WithLogger(s.logger))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(consumeCtx, notifier.Handle) }()

	deadline := time.Now().Add(time.Minute)
	for len(emailCap.getEmails()) == 0 && time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
	}
	stopConsumer()
	<-done

	emails := emailCap.getEmails()
	if len(emails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(emails))
	}
	if emails[0].To != "user1@example.com" {
		t.Fatalf("unexpected recipient: %s", emails[0].To)
	}
	if !strings.Contains(emails[0].Subject, fmt.Sprintf("#%d", order.ID)) {
		t.Fatalf("expected subject to reference order %d, got %q", order.ID, emails[0].Subject)
	}
	if !strings.Contains(emails[0].Body, "Total: 25.50") {
		t.Fatalf("expected body to carry the order total, got %q", emails[0].Body)
	}
}
