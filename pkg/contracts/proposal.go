package contracts

// CashMovement is a value transfer carried alongside a cash settlement. The
// movement itself is produced by an external wallet/cash layer; the core only
// checks it against the calculator's expected amount.
type CashMovement struct {
	From   PublicKey `json:"from"`
	To     PublicKey `json:"to"`
	Amount Money     `json:"amount"`
}

// Proposal is a candidate transaction: consumed prior records, produced
// records, and the commands each with its own required signers. The core
// treats a proposal as read-only input; it never mutates one, only judges it.
type Proposal struct {
	Inputs         []ForwardRecord `json:"inputs"`
	Outputs        []ForwardRecord `json:"outputs"`
	Commands       []Command       `json:"commands"`
	OracleCommands []OracleCommand `json:"oracle_commands,omitempty"`
	CashMovements  []CashMovement  `json:"cash_movements,omitempty"`
}

// TransferredTo sums the minor-unit amounts moved to key in the given
// currency within this proposal.
func (p *Proposal) TransferredTo(key PublicKey, currency string) int64 {
	var total int64
	for _, m := range p.CashMovements {
		if m.To == key && m.Amount.Currency == currency {
			total += m.Amount.AmountMinor
		}
	}
	return total
}
