package rewards

import "errors"

var (
	// ErrUnauthorized indicates the caller is not the designated authority.
	ErrUnauthorized = errors.New("rewards: unauthorized")
	// ErrInvalidBatch indicates a malformed or duplicate-bearing batch.
	ErrInvalidBatch = errors.New("rewards: invalid batch")
	// ErrInsufficientBalance indicates the custodied balance cannot cover the settlement.
	ErrInsufficientBalance = errors.New("rewards: insufficient custodied balance")
	// ErrAlreadyClaimed indicates the (affiliate, epoch) pair is already settled.
	ErrAlreadyClaimed = errors.New("rewards: already claimed")
	// ErrInvalidSignature indicates the claim proof does not bind to the authority.
	ErrInvalidSignature = errors.New("rewards: invalid signature")
	// ErrInvalidAmount indicates a non-positive claim amount.
	ErrInvalidAmount = errors.New("rewards: amount must be positive")
	// ErrTransferFailed indicates the gateway rejected a transfer after the
	// ledger commit. The claim record stays committed; see the audit journal.
	ErrTransferFailed = errors.New("rewards: gateway transfer failed")

	errNilLedger   = errors.New("rewards: ledger not configured")
	errNilGateway  = errors.New("rewards: asset gateway not configured")
	errNilVerifier = errors.New("rewards: verifier not configured")
)

// ErrorClass buckets engine errors so calling layers can present distinct
// recovery guidance.
type ErrorClass string

const (
	ClassAuthorization ErrorClass = "authorization"
	ClassState         ErrorClass = "state"
	ClassResource      ErrorClass = "resource"
	ClassValidation    ErrorClass = "validation"
	ClassInternal      ErrorClass = "internal"
)

// Classify maps an engine error onto its taxonomy class.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidSignature):
		return ClassAuthorization
	case errors.Is(err, ErrAlreadyClaimed), errors.Is(err, ErrInvalidBatch):
		return ClassState
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrTransferFailed):
		return ClassResource
	case errors.Is(err, ErrInvalidAmount):
		return ClassValidation
	default:
		return ClassInternal
	}
}

// Code returns the machine-readable identifier reported to calling layers.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrInvalidBatch):
		return "INVALID_BATCH"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrAlreadyClaimed):
		return "ALREADY_CLAIMED"
	case errors.Is(err, ErrInvalidSignature):
		return "INVALID_SIGNATURE"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrTransferFailed):
		return "TRANSFER_FAILED"
	default:
		return "INTERNAL"
	}
}
