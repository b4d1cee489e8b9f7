package audithook

// Action constants for audit events.
const (
	// Loan actions
	ActionLoanCreated   = "loan.created"
	ActionLoanRepaid    = "loan.repaid"
	ActionLoanDefaulted = "loan.defaulted"
	ActionDisputeLogged = "dispute.logged"

	// Credit actions
	ActionCreditLimitSet = "credit.limit_set"
	ActionUserUnblocked  = "credit.user_unblocked"

	// Liquidity actions
	ActionLiquidityDeposited = "liquidity.deposited"
	ActionLiquidityWithdrawn = "liquidity.withdrawn"
	ActionFeesWithdrawn      = "fees.withdrawn"

	// Custody actions
	ActionFreezeFailed = "custody.freeze_failed"
)

// Resource constants for audit events.
const (
	ResourceLoan    = "loan"
	ResourceAccount = "credit_account"
	ResourcePool    = "liquidity_pool"
	ResourceCustody = "custody"
	ResourceDispute = "dispute"
)

// Category constants for audit events.
const (
	CategoryLending  = "lending"
	CategoryCredit   = "credit"
	CategoryTreasury = "treasury"
	CategoryRisk     = "risk"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
