package core

import "errors"

// Validation failures of the write path. All are local, synchronous and
// non-retryable: the exchange refuses the mutation and leaves every balance
// and order untouched. The instance stays usable after any rejected call.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInvalidFeeDivision    = errors.New("fee does not divide to a whole unit")
	ErrOrderNotFound         = errors.New("order not found")
	ErrUnauthorized          = errors.New("caller is not the order maker")
	ErrOrderAlreadyFilled    = errors.New("order already filled")
	ErrOrderAlreadyCancelled = errors.New("order already cancelled")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrAmountOverflow        = errors.New("amount overflows 64-bit settlement arithmetic")
	ErrTransferRejected      = errors.New("asset transfer rejected")
	ErrUnknownAsset          = errors.New("unknown asset")
	ErrInvalidFeePercent     = errors.New("fee percent must be between 0 and 100")
)

// rejectionReason maps a validation failure to a metrics label.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidFeeDivision):
		return "invalid_fee_division"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrOrderAlreadyFilled):
		return "order_already_filled"
	case errors.Is(err, ErrOrderAlreadyCancelled):
		return "order_already_cancelled"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrAmountOverflow):
		return "amount_overflow"
	case errors.Is(err, ErrTransferRejected):
		return "transfer_rejected"
	case errors.Is(err, ErrUnknownAsset):
		return "unknown_asset"
	default:
		return "other"
	}
}
