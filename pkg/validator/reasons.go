package validator

// Rejection reasons are stable identifiers. They MUST NOT change between
// releases: independent validators compare verdicts including the reason, and
// callers key their diagnostics on these strings.
const (
	// --- Create ---
	ReasonCreateHasInputs  = "no inputs may be consumed when creating a forward"
	ReasonCreateOneOutput  = "there must be exactly one output forward record"
	ReasonPriceNotPositive = "the delivery price must be positive"
	ReasonQtyNotPositive   = "the instrument quantity must be positive"
	ReasonSameCounterparty = "the initiator and the acceptor cannot be the same entity"
	ReasonCreateSignerSet  = "the required signers must be exactly the initiator and the acceptor"
	ReasonMaturityNotAhead = "the settlement timestamp must be in the future"

	// --- Settlement, shared ---
	ReasonNotMatured          = "the forward must have matured before settlement"
	ReasonOneInput            = "exactly one forward record must be consumed"
	ReasonOneOutput           = "exactly one forward record must be produced"
	ReasonCounterpartySigners = "both counterparties must be required signers"
	ReasonIdentifierMismatch  = "the produced record must continue the consumed record's identifier"

	// --- Physical settlement ---
	ReasonPhysicalResidual = "physical settlement must fully extinguish the record"
	ReasonNotPhysicalType  = "the consumed record is not physically settled"

	// --- Cash settlement ---
	ReasonNotCashType           = "the consumed record is not cash-settled"
	ReasonAtMostOneOutput       = "at most one forward record may be produced"
	ReasonOracleCommandRequired = "a cash settlement requires exactly one oracle price command"
	ReasonOracleNotSigner       = "the oracle must be a required signer of the price command"
	ReasonCalcFailed            = "the settlement amount could not be computed"
	ReasonTermsChanged          = "only the paid amount may change on settlement"
	ReasonPaidMustIncrease      = "the paid amount must increase on a partial settlement"
	ReasonPaidDeltaMismatch     = "the paid increase must equal the cash transferred to the payee"
	ReasonPaidExceedsOwed       = "the paid amount cannot exceed the amount owed"
	ReasonFullSettlementLeaves  = "a fully settled forward must leave no residual record"
	ReasonFinalPaymentMismatch  = "the final payment must settle the full amount owed"
	ReasonPartialDisallowed     = "settlement must fully extinguish the record"

	// --- Protocol ---
	ReasonNoProposal     = "a transaction proposal is required"
	ReasonUnknownCommand = "unrecognized command tag"
)
