package hedger

import "errors"

var (
	ErrInvalidAmount         = errors.New("transaction amount must be larger than 0")
	ErrInvalidSide           = errors.New("transaction side must be Buy or Sell")
	ErrNoVenuesEligible      = errors.New("no eligible venues")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	ErrDuplicateRequest       = errors.New("duplicate transaction request")
	ErrRequestGuardFailed     = errors.New("failed to acquire request guard")
	ErrPublishRequestFailed   = errors.New("failed to publish transaction request")
	ErrLedgerNotInitialized   = errors.New("balance ledger not initialized")
	ErrRetrieveOrderBooks     = errors.New("failed to retrieve order books")
	ErrNoTransactionRequested = errors.New("no transaction requests configured")

	ErrResultStoreDisabled       = errors.New("transaction result store is not configured")
	ErrTransactionResultNotFound = errors.New("transaction result not found")
)
