package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldAccountID     = "account_id"
	FieldBudgetID      = "budget_id"
	FieldTransactionID = "transaction_id"
	FieldLineID        = "line_id"
	FieldAmountCents   = "amount_cents"
	FieldMonth         = "month"
	FieldYear          = "year"
	FieldBatchID       = "batch_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAccrual   = "accrual"
	ComponentReconcile = "reconcile"
	ComponentImporter  = "importer"
	ComponentIntegrity = "integrity"
	ComponentEvents    = "events"
	ComponentWorker    = "worker"
)
