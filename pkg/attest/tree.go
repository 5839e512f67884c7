// Package attest maps transaction proposals onto commitment trees, builds the
// partial views disclosed to the price oracle, and implements the oracle's
// attestation service.
package attest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clearlane/forwardcore/pkg/contracts"
	"github.com/clearlane/forwardcore/pkg/merkle"
)

// Component path prefixes inside the transaction tree.
const (
	PathInputs         = "inputs"
	PathOutputs        = "outputs"
	PathCommands       = "commands"
	PathOracleCommands = "oracle_commands"
	PathCashMovements  = "cash_movements"
)

// Components flattens a proposal into the path→component map the tree
// commits to. Component order inside each list is preserved in the path.
func Components(p *contracts.Proposal) map[string]interface{} {
	m := make(map[string]interface{})
	for i, in := range p.Inputs {
		m[fmt.Sprintf("%s/%d", PathInputs, i)] = in
	}
	for i, out := range p.Outputs {
		m[fmt.Sprintf("%s/%d", PathOutputs, i)] = out
	}
	for i, cmd := range p.Commands {
		m[fmt.Sprintf("%s/%d", PathCommands, i)] = cmd
	}
	for i, oc := range p.OracleCommands {
		m[fmt.Sprintf("%s/%d", PathOracleCommands, i)] = oc
	}
	for i, mv := range p.CashMovements {
		m[fmt.Sprintf("%s/%d", PathCashMovements, i)] = mv
	}
	return m
}

// BuildTree commits to every component of the proposal. The tree's root is
// the transaction's canonical identifier.
func BuildTree(p *contracts.Proposal) (*merkle.Tree, error) {
	return merkle.Build(Components(p))
}

// TransactionID returns the proposal's canonical identifier (the tree root).
func TransactionID(p *contracts.Proposal) (string, error) {
	tree, err := BuildTree(p)
	if err != nil {
		return "", err
	}
	return tree.Root, nil
}

// ForOracle is the disclosure predicate for a given oracle identity: the leaf
// is an oracle price command naming that key among its required signers.
func ForOracle(key contracts.PublicKey) func(path string, content []byte) bool {
	return func(path string, content []byte) bool {
		if !strings.HasPrefix(path, PathOracleCommands+"/") {
			return false
		}
		var oc contracts.OracleCommand
		if err := json.Unmarshal(content, &oc); err != nil {
			return false
		}
		return oc.HasSigner(key)
	}
}

// BuildFilteredView builds the minimal disclosure for the named oracle: only
// the oracle commands it must counter-sign, with the sibling hashes needed to
// recompute the transaction identifier.
func BuildFilteredView(p *contracts.Proposal, oracleKey contracts.PublicKey) (*merkle.FilteredView, error) {
	tree, err := BuildTree(p)
	if err != nil {
		return nil, err
	}
	return tree.FilteredView(ForOracle(oracleKey))
}
