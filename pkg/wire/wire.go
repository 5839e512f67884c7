// Package wire decodes transaction proposals received from the
// signature-collection transport. Payloads are validated against a JSON
// schema before unmarshalling, so malformed input surfaces as an error value
// at the boundary instead of a half-decoded proposal deeper in.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

const schemaURL = "https://forwardcore.schemas.local/proposal.schema.json"

const proposalSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["inputs", "outputs", "commands"],
  "properties": {
    "inputs":  {"type": "array", "items": {"$ref": "#/$defs/record"}},
    "outputs": {"type": "array", "items": {"$ref": "#/$defs/record"}},
    "commands": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["tag", "signers"],
        "properties": {
          "tag":     {"type": "string"},
          "signers": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "oracle_commands": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["spot", "signers"],
        "properties": {
          "spot": {
            "type": "object",
            "required": ["instrument", "as_of", "value"],
            "properties": {
              "instrument": {"type": "string", "minLength": 1},
              "as_of":      {"type": "string", "format": "date-time"},
              "value":      {"type": "string"}
            }
          },
          "signers": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "cash_movements": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to", "amount"],
        "properties": {
          "from": {"type": "string"},
          "to":   {"type": "string"},
          "amount": {
            "type": "object",
            "required": ["amount_minor", "currency"],
            "properties": {
              "amount_minor": {"type": "integer"},
              "currency":     {"type": "string", "minLength": 1}
            }
          }
        }
      }
    }
  },
  "$defs": {
    "record": {
      "type": "object",
      "required": [
        "linear_id", "initiator", "acceptor", "instrument", "quantity",
        "delivery_price", "currency", "settlement_at", "settlement_type"
      ],
      "properties": {
        "linear_id":      {"type": "string", "minLength": 36, "maxLength": 36},
        "initiator":      {"$ref": "#/$defs/party"},
        "acceptor":       {"$ref": "#/$defs/party"},
        "instrument":     {"type": "string", "minLength": 1},
        "quantity":       {"type": "string"},
        "delivery_price": {"type": "string"},
        "currency":       {"type": "string", "minLength": 1},
        "settlement_at":  {"type": "string", "format": "date-time"},
        "settlement_type": {"enum": ["cash", "physical"]},
        "paid_minor":     {"type": "integer", "minimum": 0}
      }
    },
    "party": {
      "type": "object",
      "required": ["name", "key"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "key":  {"type": "string", "minLength": 1}
      }
    }
  }
}`

var compiledProposalSchema = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	// Formats are annotation-only under draft 2020-12 unless asserted; the
	// date-time checks on settlement_at and as_of must actually reject.
	c.AssertFormat = true
	if err := c.AddResource(schemaURL, strings.NewReader(proposalSchema)); err != nil {
		panic(fmt.Sprintf("wire: proposal schema load failed: %v", err))
	}
	return c.MustCompile(schemaURL)
}

// DecodeProposal validates raw against the proposal schema and unmarshals it.
func DecodeProposal(raw []byte) (*contracts.Proposal, error) {
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("wire: proposal is not valid JSON: %w", err)
	}
	if err := compiledProposalSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("wire: proposal failed schema validation: %w", err)
	}

	var p contracts.Proposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("wire: proposal decode failed: %w", err)
	}
	return &p, nil
}

// EncodeProposal serializes a proposal for the transport layer. Nil component
// lists are encoded as empty arrays so the output always satisfies the
// proposal schema.
func EncodeProposal(p *contracts.Proposal) ([]byte, error) {
	norm := *p
	if norm.Inputs == nil {
		norm.Inputs = []contracts.ForwardRecord{}
	}
	if norm.Outputs == nil {
		norm.Outputs = []contracts.ForwardRecord{}
	}
	if norm.Commands == nil {
		norm.Commands = []contracts.Command{}
	}
	return json.Marshal(&norm)
}
