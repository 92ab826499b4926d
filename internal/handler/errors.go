package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/minhhieu1/electronic-store/internal/domain/basket"
	"github.com/minhhieu1/electronic-store/internal/domain/deal"
	"github.com/minhhieu1/electronic-store/internal/domain/order"
	"github.com/minhhieu1/electronic-store/internal/domain/product"
)

// respondError maps a domain error onto an HTTP status and error envelope.
// Stock and state violations keep their specific messages; unexpected
// errors are logged and masked.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable   *product.UnavailableError
		outOfStock    *product.OutOfStockError
		insufficient  *product.InsufficientStockError
		invalidState  *basket.InvalidStateError
		itemNotFound  *basket.ItemNotFoundError
		duplicateDeal *deal.DuplicateError
	)

	switch {
	case errors.Is(err, basket.ErrNotFound):
		writeError(w, http.StatusNotFound, "basket not found")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, deal.ErrTypeNotFound):
		writeError(w, http.StatusNotFound, "deal type not found")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &itemNotFound):
		writeError(w, http.StatusNotFound, itemNotFound.Error())
	case errors.Is(err, basket.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrEmptyBasket):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalidState):
		writeError(w, http.StatusConflict, invalidState.Error())
	case errors.As(err, &duplicateDeal):
		writeError(w, http.StatusConflict, duplicateDeal.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusUnprocessableEntity, unavailable.Error())
	case errors.As(err, &outOfStock):
		writeError(w, http.StatusUnprocessableEntity, outOfStock.Error())
	case errors.As(err, &insufficient):
		writeError(w, http.StatusUnprocessableEntity, insufficient.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
