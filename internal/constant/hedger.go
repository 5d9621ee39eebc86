package constant

const (
	HedgerQueueName  = "hedger_queue"
	HedgerQueueGroup = "hedger_group"

	HedgerStreamName                      = "hedger"
	HedgerStreamSubjectAll                = "hedger.*"
	HedgerStreamSubjectTransactionRequest = "hedger.transaction_request"
	HedgerStreamSubjectTransactionResult  = "hedger.transaction_result"

	HedgerTimeoutHandlerTransactionRequest = "transaction_request"
)

const (
	HedgerStrategyPooled      = "pooled"
	HedgerStrategySingleVenue = "single_venue"
)

const (
	OrderBookSourceFile     = "file"
	OrderBookSourceDatabase = "database"
)

const (
	MarketDataDatabaseName = "market_data"
	RequestGuardKeyPrefix  = "meta-exchange:request:"
)
