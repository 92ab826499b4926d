// Package handler is the thin HTTP layer over the domain services. It maps
// requests onto service calls and domain errors onto status codes; all
// business rules live below it.
package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/minhhieu1/electronic-store/internal/domain/basket"
	"github.com/minhhieu1/electronic-store/internal/domain/deal"
	"github.com/minhhieu1/electronic-store/internal/domain/order"
	"github.com/minhhieu1/electronic-store/internal/domain/product"
)

// Handler holds the domain services the HTTP surface delegates to.
type Handler struct {
	baskets  *basket.Service
	orders   *order.Service
	deals    *deal.Service
	products product.Store
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	baskets *basket.Service,
	orders *order.Service,
	deals *deal.Service,
	products product.Store,
) *Handler {
	return &Handler{
		baskets:  baskets,
		orders:   orders,
		deals:    deals,
		products: products,
	}
}

// Register mounts all API routes on the mux. Admin routes additionally
// require the admin scope.
func (h *Handler) Register(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/basket", h.getBasket)
	mux.HandleFunc("POST /api/basket/items", h.addItem)
	mux.HandleFunc("PUT /api/basket/items/{productID}", h.updateItem)
	mux.HandleFunc("DELETE /api/basket/items/{productID}", h.removeItem)
	mux.HandleFunc("DELETE /api/basket/items", h.clearBasket)
	mux.HandleFunc("GET /api/basket/price", h.priceBasket)
	mux.HandleFunc("POST /api/basket/checkout", h.checkout)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("GET /api/deal-types", h.listDealTypes)

	mux.Handle("POST /api/admin/deals", requireAdmin(http.HandlerFunc(h.createDeal)))
}

// writeJSON encodes a response body with jx and writes it with the given
// status code.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}
