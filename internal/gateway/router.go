package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/carts"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/customers"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// Handlers groups the resource handlers served by the API. Nil groups are
// not routed.
type Handlers struct {
	Orders    *orders.Handler
	Carts     *carts.Handler
	Catalog   *catalog.Handler
	Customers *customers.Handler
	Health    http.Handler
	Metrics   http.Handler
}

func NewRouter(serviceName string, h Handlers) http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}

	if h.Orders != nil {
		route("POST /orders", h.Orders.HandleCheckout)
		route("GET /orders", h.Orders.HandleList)
		route("GET /orders/{id}", h.Orders.HandleGet)
		route("PATCH /orders/{id}", h.Orders.HandleUpdateStatus)
		route("DELETE /orders/{id}", h.Orders.HandleDelete)
	}

	if h.Carts != nil {
		route("POST /carts", h.Carts.HandleCreate)
		route("GET /carts/{id}", h.Carts.HandleGet)
		route("DELETE /carts/{id}", h.Carts.HandleDelete)
		route("GET /carts/{id}/items", h.Carts.HandleListItems)
		route("POST /carts/{id}/items", h.Carts.HandleAddItem)
		route("PATCH /carts/{id}/items/{itemId}", h.Carts.HandleUpdateItem)
		route("DELETE /carts/{id}/items/{itemId}", h.Carts.HandleRemoveItem)
	}

	if h.Catalog != nil {
		route("GET /collections", h.Catalog.HandleListCollections)
		route("POST /collections", h.Catalog.HandleCreateCollection)
		route("GET /collections/{id}", h.Catalog.HandleGetCollection)
		route("PATCH /collections/{id}", h.Catalog.HandleUpdateCollection)
		route("DELETE /collections/{id}", h.Catalog.HandleDeleteCollection)
		route("GET /products", h.Catalog.HandleListProducts)
		route("POST /products", h.Catalog.HandleCreateProduct)
		route("GET /products/{id}", h.Catalog.HandleGetProduct)
		route("PATCH /products/{id}", h.Catalog.HandleUpdateProduct)
		route("DELETE /products/{id}", h.Catalog.HandleDeleteProduct)
	}

	if h.Customers != nil {
		route("GET /customers", h.Customers.HandleList)
		route("GET /customers/me", h.Customers.HandleGetMe)
		route("PUT /customers/me", h.Customers.HandleUpdateMe)
	}

	if h.Health != nil {
		mux.Handle("GET /healthz", h.Health)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	var handler http.Handler = mux
	handler = auth.Middleware(handler)
	handler = middleware.Recoverer(handler)
	handler = echoRequestID(handler)
	handler = middleware.RealIP(handler)
	handler = middleware.RequestID(handler)

	return otelhttp.NewHandler(handler, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	)
}

// echoRequestID returns the id assigned by middleware.RequestID so callers
// can quote it when reporting a failure.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
