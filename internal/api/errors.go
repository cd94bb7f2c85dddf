package api

import (
	"errors"
	"net/http"

	"ticketing/internal/checkin"
	"ticketing/internal/events"
	"ticketing/internal/inventory"
	"ticketing/internal/issuance"
	"ticketing/internal/payments"
	"ticketing/internal/promo"
)

// statusFor maps domain rejections to HTTP status codes. Anything not
// listed is an internal failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, issuance.ErrEventNotFound),
		errors.Is(err, events.ErrEventNotFound),
		errors.Is(err, payments.ErrTicketNotFound),
		errors.Is(err, events.ErrAgentNotFound),
		errors.Is(err, promo.ErrPromoNotFound):
		return http.StatusNotFound
	case errors.Is(err, issuance.ErrMissingTypeOrPrice),
		errors.Is(err, issuance.ErrGuestEmailRequired),
		errors.Is(err, issuance.ErrUnknownSession),
		errors.Is(err, events.ErrSessionWindow),
		errors.Is(err, events.ErrCapacityRange):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrCapacityReached),
		errors.Is(err, inventory.ErrQuotaReached),
		errors.Is(err, inventory.ErrInvalidTicketType),
		errors.Is(err, inventory.ErrSalesNotStarted),
		errors.Is(err, inventory.ErrSalesEnded),
		errors.Is(err, promo.ErrPromoNotStarted),
		errors.Is(err, promo.ErrPromoExpired),
		errors.Is(err, promo.ErrPromoLimitReached),
		errors.Is(err, payments.ErrNotPayable),
		errors.Is(err, payments.ErrNotRefundable),
		errors.Is(err, events.ErrEventNotDraft),
		errors.Is(err, events.ErrNotAnAgent),
		errors.Is(err, checkin.ErrScanInFlight):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
