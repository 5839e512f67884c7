package merkle

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProofStep is one rung of an inclusion proof. Side says which side the
// sibling hash sits on when recombining: "L" for left, "R" for right.
type ProofStep struct {
	Side        string `json:"side"`
	SiblingHash string `json:"sibling_hash"`
}

// DisclosedLeaf is one revealed component of a filtered view: its path, its
// canonical content, and the sibling hashes needed to climb back to the root.
type DisclosedLeaf struct {
	Path    string          `json:"path"`
	Content json.RawMessage `json:"content"`
	Proof   []ProofStep     `json:"proof"`
}

// FilteredView is a partial, verifiable disclosure of a transaction: the
// claimed root identifier plus the disclosed leaves. Nothing about the hidden
// leaves beyond their hashes ever leaves the builder.
type FilteredView struct {
	Root      string          `json:"root"`
	Disclosed []DisclosedLeaf `json:"disclosed"`
}

// Proof returns the inclusion proof for the leaf at the given path.
func (t *Tree) Proof(path string) ([]ProofStep, error) {
	idx := -1
	for i, l := range t.Leaves {
		if l.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("merkle: no leaf at path %q", path)
	}

	var steps []ProofStep
	for _, row := range t.levels {
		if len(row) == 1 {
			break
		}
		var sibling string
		var side string
		if idx%2 == 0 {
			side = "R"
			if idx+1 < len(row) {
				sibling = row[idx+1]
			} else {
				sibling = row[idx] // odd row: last node is paired with itself
			}
		} else {
			side = "L"
			sibling = row[idx-1]
		}
		steps = append(steps, ProofStep{Side: side, SiblingHash: sibling})
		idx /= 2
	}
	return steps, nil
}

// FilteredView discloses exactly the leaves satisfying pred, each with its
// inclusion proof. It fails if nothing matches: an empty disclosure commits
// to nothing and cannot be attested.
func (t *Tree) FilteredView(pred func(path string, content []byte) bool) (*FilteredView, error) {
	view := &FilteredView{Root: t.Root}
	for _, l := range t.Leaves {
		if !pred(l.Path, l.Content) {
			continue
		}
		proof, err := t.Proof(l.Path)
		if err != nil {
			return nil, err
		}
		view.Disclosed = append(view.Disclosed, DisclosedLeaf{
			Path:    l.Path,
			Content: json.RawMessage(bytes.Clone(l.Content)),
			Proof:   proof,
		})
	}
	if len(view.Disclosed) == 0 {
		return nil, fmt.Errorf("merkle: predicate matched no leaves")
	}
	return view, nil
}

// Verify recomputes the root from every disclosed leaf and its supplied
// sibling hashes. A single flipped bit in any disclosed leaf, or any stray
// proof step, makes the recombined root diverge from the claimed one.
func (v *FilteredView) Verify() error {
	if len(v.Disclosed) == 0 {
		return fmt.Errorf("merkle: view discloses no leaves")
	}
	for _, leaf := range v.Disclosed {
		root := foldProof(LeafHash(leaf.Path, leaf.Content), leaf.Proof)
		if root != v.Root {
			return fmt.Errorf("merkle: leaf %q does not recombine to root %s", leaf.Path, v.Root)
		}
	}
	return nil
}

func foldProof(leafHash string, proof []ProofStep) string {
	current := leafHash
	for _, step := range proof {
		if step.Side == "L" {
			current = nodeHash(step.SiblingHash, current)
		} else {
			current = nodeHash(current, step.SiblingHash)
		}
	}
	return current
}
