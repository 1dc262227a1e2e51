package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can decide how to surface it.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindState
	KindCapacity
	KindAuthorization
	KindIntegrity
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindCapacity:
		return "capacity"
	case KindAuthorization:
		return "authorization"
	case KindIntegrity:
		return "integrity"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a domain failure with a stable machine-readable code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	parent  *Error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the broader condition, e.g. ErrAccountBanned is an ErrNotEligible.
func (e *Error) Unwrap() error {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func (e *Error) child(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, parent: e}
}

var (
	ErrNotEligible         = newError(KindState, "not_eligible", "not eligible to join this tournament")
	ErrRegistrationClosed  = ErrNotEligible.child(KindState, "registration_closed", "tournament is not open for registration")
	ErrAccountBanned       = ErrNotEligible.child(KindAuthorization, "account_banned", "account is banned")
	ErrCapacityExceeded    = newError(KindCapacity, "capacity_exceeded", "tournament is full")
	ErrAlreadyRegistered   = newError(KindState, "already_registered", "already registered for this tournament")
	ErrNotRegistered       = newError(KindState, "not_registered", "not registered for this tournament")
	ErrAlreadyDisqualified = newError(KindState, "already_disqualified", "registration is already disqualified")

	ErrInsufficientBalance = newError(KindValidation, "insufficient_balance", "wallet balance does not cover the entry fee")
	ErrBelowMinimum        = newError(KindValidation, "below_minimum", "minimum withdrawal amount is ₹30")
	ErrInsufficientCredits = newError(KindValidation, "insufficient_credits", "insufficient winning credits")
	ErrInvalidDestination  = newError(KindValidation, "invalid_destination", "please enter a valid UPI ID")
	ErrInvalidAmount       = newError(KindValidation, "invalid_amount", "amount must be positive")
	ErrReasonRequired      = newError(KindValidation, "reason_required", "a reason is required")
	ErrInvalidPrizeTiers   = newError(KindValidation, "invalid_prize_tiers", "invalid prize tiers")
	ErrInvalidTournament   = newError(KindValidation, "invalid_tournament", "invalid tournament")
	ErrInvalidStandings    = newError(KindValidation, "invalid_standings", "invalid standings")
	ErrRoomDetailsRequired = newError(KindValidation, "room_details_required", "room ID and password are required")
	ErrInvalidSignature    = newError(KindAuthorization, "invalid_signature", "payment signature verification failed")

	ErrAlreadyProcessed        = newError(KindState, "already_processed", "withdrawal request has already been processed")
	ErrInvalidStatusTransition = newError(KindState, "invalid_status_transition", "tournament status change is not allowed")
	ErrPaymentNotPending       = newError(KindState, "payment_not_pending", "payment order is no longer pending")

	ErrForbidden = newError(KindAuthorization, "forbidden", "operator privileges required")

	ErrSettlementMismatch = newError(KindIntegrity, "settlement_mismatch", "settlement does not match the prize table")
	ErrAlreadySettled     = newError(KindIntegrity, "already_settled", "tournament prizes have already been distributed")

	ErrUserNotFound         = newError(KindNotFound, "user_not_found", "user not found")
	ErrTournamentNotFound   = newError(KindNotFound, "tournament_not_found", "tournament not found")
	ErrRegistrationNotFound = newError(KindNotFound, "registration_not_found", "registration not found")
	ErrWithdrawalNotFound   = newError(KindNotFound, "withdrawal_not_found", "withdrawal request not found")
	ErrPaymentNotFound      = newError(KindNotFound, "payment_not_found", "payment order not found")
)

// withDetail keeps errors.Is matching while adding context for the caller.
func withDetail(base *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

// AsError extracts the domain error from a wrapped chain.
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// errorCode labels a failure for metrics.
func errorCode(err error) string {
	if domainErr, ok := AsError(err); ok {
		return domainErr.Code
	}
	return "error"
}
