package httpapi

import (
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// MapError переводит доменную ошибку в HTTP-статус и тело ответа.
// Workflow транспортных ответов не строит, вся трансляция живёт здесь.
func MapError(err error) (int, errorResponse) {
	switch {
	case err == nil:
		return http.StatusOK, errorResponse{}

	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, errorResponse{
			Code:    "not_found",
			Message: err.Error(),
		}

	case errors.Is(err, domain.ErrProductValidation),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, errorResponse{
			Code:    "unprocessable",
			Message: err.Error(),
		}

	case errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrItemProductRequired),
		errors.Is(err, domain.ErrAmountNegative),
		errors.Is(err, domain.ErrAmountMismatch),
		errors.Is(err, domain.ErrTotalItemsMismatch),
		errors.Is(err, domain.ErrStatusInvalid):
		return http.StatusBadRequest, errorResponse{
			Code:    "bad_request",
			Message: err.Error(),
		}

	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict, errorResponse{
			Code:    "conflict",
			Message: "request with this idempotency key is already being processed",
		}

	default:
		return http.StatusInternalServerError, errorResponse{
			Code:    "internal",
			Message: "internal server error",
		}
	}
}
