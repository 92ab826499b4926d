package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/minhhieu1/electronic-store/internal/domain/order"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	o, err := h.orders.Checkout(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) priceBasket(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	pricing, err := h.orders.PriceBasket(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, it := range pricing.Items {
						e.Obj(func(e *jx.Encoder) {
							e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
							e.Field("discount", func(e *jx.Encoder) { e.Float64(it.Discount.InexactFloat64()) })
						})
					}
				})
			})
			e.Field("totalDiscount", func(e *jx.Encoder) {
				e.Float64(pricing.TotalDiscount.InexactFloat64())
			})
		})
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	o, err := h.orders.GetByID(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	orders, err := h.orders.ListByUser(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("orderDate", func(e *jx.Encoder) { e.Str(o.OrderDate.Format(time.RFC3339)) })
		e.Field("totalAmount", func(e *jx.Encoder) { e.Float64(o.TotalAmount.InexactFloat64()) })
		e.Field("totalDiscount", func(e *jx.Encoder) { e.Float64(o.TotalDiscount.InexactFloat64()) })
		e.Field("finalAmount", func(e *jx.Encoder) { e.Float64(o.FinalAmount.InexactFloat64()) })
		e.Field("note", func(e *jx.Encoder) { e.Str(o.Note) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { e.Float64(it.UnitPrice.InexactFloat64()) })
						e.Field("lineTotal", func(e *jx.Encoder) { e.Float64(it.LineTotal.InexactFloat64()) })
						e.Field("discount", func(e *jx.Encoder) { e.Float64(it.DiscountApplied.InexactFloat64()) })
					})
				}
			})
		})
	})
}
