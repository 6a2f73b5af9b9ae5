package order

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrOrderNotFound is returned by the repository when no order matches.
var ErrOrderNotFound = errors.New("order not found")

// BusinessError is a terminal business outcome with a stable machine-readable
// code. The transport layer maps Status onto the HTTP response and serializes
// Code/Message as the error body. Business errors are never retried by this
// service; transient downstream trouble gets its own code so callers know the
// whole request is safe to retry under the same idempotency key.
type BusinessError struct {
	Code    string
	Message string
	Status  int
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newConflict(code, message string) *BusinessError {
	return &BusinessError{Code: code, Message: message, Status: http.StatusConflict}
}

func newUnprocessable(code, message string) *BusinessError {
	return &BusinessError{Code: code, Message: message, Status: http.StatusUnprocessableEntity}
}

var (
	errIdempotencyMismatch = newConflict("IDEMPOTENCY_MISMATCH", "request body differs from original")
	errCityMismatch        = newConflict("CITY_MISMATCH", "delivery city must match restaurant city")
	errTotalMismatch       = newConflict("TOTAL_MISMATCH", "client totals do not match server calculation")
	errCannotCancel        = newConflict("CANNOT_CANCEL", "can only cancel orders in CREATED status")
	errRestaurantClosed    = newUnprocessable("RESTAURANT_CLOSED", "restaurant is not open")
)

func errItemUnavailable(itemID string) *BusinessError {
	return newUnprocessable("ITEM_UNAVAILABLE", fmt.Sprintf("item %s not available", itemID))
}

func errInvalidRequest(message string) *BusinessError {
	return &BusinessError{Code: "VALIDATION_FAILED", Message: message, Status: http.StatusBadRequest}
}

// errDownstream marks a transient dependency failure (circuit open, retry
// exhaustion, timeout). The caller may safely retry the whole request.
func errDownstream(service string) *BusinessError {
	return &BusinessError{
		Code:    "DOWNSTREAM_UNAVAILABLE",
		Message: fmt.Sprintf("%s service is unavailable", service),
		Status:  http.StatusServiceUnavailable,
	}
}
