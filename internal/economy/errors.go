package economy

import (
	"fmt"
	"net/http"
)

// Kind is the machine-checkable classification of a rejected operation.
type Kind string

const (
	KindInvalidInput            Kind = "invalid_input"
	KindAccountBanned           Kind = "account_banned"
	KindInsufficientPoints      Kind = "insufficient_points"
	KindInsufficientBalance     Kind = "insufficient_balance"
	KindAmountTooSmall          Kind = "amount_too_small"
	KindAmountBelowMinimum      Kind = "amount_below_minimum"
	KindConflictingRequest      Kind = "conflicting_request"
	KindRequestAlreadyProcessed Kind = "request_already_processed"
	KindSettlementFailure       Kind = "settlement_failure"
	KindSettlementNotConfigured Kind = "settlement_not_configured"
	KindNotFound                Kind = "not_found"
)

// Error is a request-rejection error. None of these are process-fatal; the
// atomic unit that detected one aborts with no persisted side effect, except
// settlement failures whose refund is itself the intended side effect.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus maps the kind to the response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAccountBanned:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflictingRequest, KindRequestAlreadyProcessed:
		return http.StatusConflict
	case KindSettlementFailure:
		return http.StatusBadGateway
	case KindSettlementNotConfigured:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
