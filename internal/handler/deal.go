package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/minhhieu1/electronic-store/internal/domain/deal"
)

func (h *Handler) listDealTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.deals.ListTypes(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, t := range types {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(t.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(t.Name) })
					e.Field("description", func(e *jx.Encoder) { e.Str(t.Description) })
					e.Field("strategyId", func(e *jx.Encoder) { e.Str(t.StrategyID) })
				})
			}
		})
	})
}

func (h *Handler) createDeal(w http.ResponseWriter, r *http.Request) {
	params, err := decodeDealRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.deals.Create(r.Context(), params)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeDeal(e, d) })
}

func decodeDealRequest(body io.Reader) (deal.CreateParams, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return deal.CreateParams{}, err
	}

	var params deal.CreateParams
	d := jx.DecodeBytes(raw)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			params.ProductID = v
			return err
		case "dealTypeId":
			v, err := d.Str()
			params.DealTypeID = v
			return err
		case "expirationDate":
			v, err := d.Str()
			if err != nil {
				return err
			}
			params.ExpirationDate, err = time.Parse(time.RFC3339, v)
			return err
		case "discountPercent":
			v, err := decodeDecimal(d)
			params.DiscountPercent = v
			return err
		case "discountAmount":
			v, err := decodeDecimal(d)
			params.DiscountAmount = v
			return err
		case "minimumQuantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			params.MinimumQuantity = &v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return deal.CreateParams{}, err
	}
	if params.ProductID == "" || params.DealTypeID == "" || params.ExpirationDate.IsZero() {
		return deal.CreateParams{}, io.ErrUnexpectedEOF
	}
	return params, nil
}

func decodeDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return nil, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func encodeDeal(e *jx.Encoder, d *deal.Deal) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(d.ID) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(d.ProductID) })
		e.Field("dealTypeId", func(e *jx.Encoder) { e.Str(d.Type.ID) })
		e.Field("expirationDate", func(e *jx.Encoder) { e.Str(d.ExpirationDate.Format(time.RFC3339)) })
		if d.DiscountPercent != nil {
			e.Field("discountPercent", func(e *jx.Encoder) { e.Float64(d.DiscountPercent.InexactFloat64()) })
		}
		if d.DiscountAmount != nil {
			e.Field("discountAmount", func(e *jx.Encoder) { e.Float64(d.DiscountAmount.InexactFloat64()) })
		}
		if d.MinimumQuantity != nil {
			e.Field("minimumQuantity", func(e *jx.Encoder) { e.Int(*d.MinimumQuantity) })
		}
	})
}
