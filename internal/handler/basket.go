package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/minhhieu1/electronic-store/internal/domain/basket"
)

func (h *Handler) getBasket(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	b, err := h.baskets.GetOrCreateActive(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBasket(e, b) })
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	productID, qty, err := decodeItemRequest(r.Body, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.baskets.AddItem(r.Context(), id.UserID, productID, qty)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBasket(e, b) })
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	productID := r.PathValue("productID")

	_, qty, err := decodeItemRequest(r.Body, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := h.baskets.UpdateItemQuantity(r.Context(), id.UserID, productID, qty)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBasket(e, b) })
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	b, err := h.baskets.RemoveItem(r.Context(), id.UserID, r.PathValue("productID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBasket(e, b) })
}

func (h *Handler) clearBasket(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	if err := h.baskets.Clear(r.Context(), id.UserID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeItemRequest parses {"productId": ..., "quantity": ...}. The
// productId field is only required when wantProduct is set (add); update
// takes the product from the path.
func decodeItemRequest(body io.Reader, wantProduct bool) (productID string, qty int, err error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", 0, err
	}

	d := jx.DecodeBytes(raw)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			productID = v
			return err
		case "quantity":
			v, err := d.Int()
			qty = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", 0, err
	}
	if wantProduct && productID == "" {
		return "", 0, io.ErrUnexpectedEOF
	}
	return productID, qty, nil
}

func encodeBasket(e *jx.Encoder, b *basket.Basket) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(b.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(b.UserID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(b.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(b.CreatedAt.Format(time.RFC3339)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range b.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
	})
}
