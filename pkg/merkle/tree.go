// Package merkle builds the commitment tree over a transaction's components.
//
// The root hash of the full tree is the transaction's canonical identifier. A
// subset of leaves can be disclosed together with the sibling hashes needed
// to recompute the root, without revealing any other leaf's content; see
// FilteredView.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/clearlane/forwardcore/pkg/canonicalize"
)

const (
	leafDomain = "fwd:tx:leaf:v1"
	nodeDomain = "fwd:tx:node:v1"
)

// Leaf is one committed component: its path, its canonical bytes and the
// resulting leaf hash.
type Leaf struct {
	Path    string
	Content []byte // canonical JSON of the component
	Hash    string
}

// Tree is the full commitment tree. Leaves are ordered by path so every node
// that builds the tree over the same components derives the same root.
type Tree struct {
	Leaves []Leaf
	Root   string

	// levels[0] is the leaf hash row; the last level holds only the root.
	levels [][]string
}

// Build constructs the tree from a map of component path to value. Values are
// canonicalized (RFC 8785) before hashing.
func Build(components map[string]interface{}) (*Tree, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("merkle: cannot commit to zero components")
	}

	paths := make([]string, 0, len(components))
	for p := range components {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	leaves := make([]Leaf, len(paths))
	for i, path := range paths {
		content, err := canonicalize.JCS(components[path])
		if err != nil {
			return nil, fmt.Errorf("merkle: leaf %s: %w", path, err)
		}
		leaves[i] = Leaf{
			Path:    path,
			Content: content,
			Hash:    LeafHash(path, content),
		}
	}

	t := &Tree{Leaves: leaves}
	level := make([]string, len(leaves))
	for i, l := range leaves {
		level[i] = l.Hash
	}
	t.levels = append(t.levels, level)

	for len(level) > 1 {
		level = nextLevel(level)
		t.levels = append(t.levels, level)
	}
	t.Root = level[0]
	return t, nil
}

// LeafHash computes the domain-separated hash of one component.
func LeafHash(path string, canonicalContent []byte) string {
	var buf bytes.Buffer
	buf.WriteString(leafDomain)
	buf.WriteByte(0)
	buf.WriteString(path)
	buf.WriteByte(0)
	buf.Write(canonicalContent)
	return sha256Hex(buf.Bytes())
}

func nextLevel(hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		hashes = append(hashes, hashes[count-1]) // duplicate last
		count++
	}
	next := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		next[i/2] = nodeHash(hashes[i], hashes[i+1])
	}
	return next
}

func nodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString(nodeDomain)
	buf.WriteByte(0)
	buf.Write(hexToBytes(left))
	buf.Write(hexToBytes(right))
	return sha256Hex(buf.Bytes())
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexToBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}
