// Package merkle implements a fixed-height indexed Merkle tree whose
// leaves form a sorted linked list, supporting short non-membership proofs
// over the spent-nullifier set. It generalizes the position-indexed sparse
// tree representation (empty-subtree precomputation, sparse per-level maps)
// to a value-sorted tree with insert/non-membership semantics.
package merkle

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/poseidon"
)

// IndexedLeaf is one entry of the sorted linked list. The distinguished
// head leaf (index 0) has Value=0, NextValue=0, NextIdx=0 and represents
// the empty list; NextValue=0 on any leaf means "end of list".
type IndexedLeaf struct {
	Value     *big.Int
	NextValue *big.Int
	NextIdx   uint32
}

// LeafHash is Poseidon3(value, nextValue, nextIdx).
func (l IndexedLeaf) LeafHash() *big.Int {
	return poseidon.Hash3(l.Value, l.NextValue, new(big.Int).SetUint64(uint64(l.NextIdx)))
}

// NonMembershipProof is the witness that value is absent from the tree:
// the low nullifier (predecessor) leaf plus the Merkle path from its leaf
// hash to root.
type NonMembershipProof struct {
	LeafIndex             int
	LowValue              *big.Int
	LowNextValue          *big.Int
	LowNextIdx            uint32
	Siblings              []*big.Int
	PathIndices            []int // 0 = node is left child, 1 = node is right child
	Root                  *big.Int
}

// Tree is a fixed-height (H=config.MaxTreeDepth) indexed Merkle tree.
// Inserts take an exclusive lock spanning predecessor search, leaf append,
// and recomputation; readers (proof generation) see a snapshot consistent
// with the published root, per the single-writer/many-reader discipline.
type Tree struct {
	mu sync.RWMutex

	depth      int
	leaves     []IndexedLeaf
	indexOf    map[string]int // value.Text(16) -> index
	zeroHashes []*big.Int     // zeroHashes[i] = hash of an all-zero subtree at level i
	levels     []map[int]*big.Int
	root       *big.Int
}

// New builds an empty indexed Merkle tree of the given height, seeded with
// the distinguished head leaf at index 0.
func New(depth int) *Tree {
	head := IndexedLeaf{Value: big.NewInt(0), NextValue: big.NewInt(0), NextIdx: 0}
	zeroHashes := precomputeZeroHashes(depth, head.LeafHash())

	t := &Tree{
		depth:      depth,
		leaves:     []IndexedLeaf{head},
		indexOf:    map[string]int{head.Value.Text(16): 0},
		zeroHashes: zeroHashes,
		levels:     make([]map[int]*big.Int, depth+1),
	}
	for i := range t.levels {
		t.levels[i] = make(map[int]*big.Int)
	}
	t.levels[0][0] = head.LeafHash()
	t.recomputeFrom(0)
	return t
}

func precomputeZeroHashes(depth int, zeroLeafHash *big.Int) []*big.Int {
	zh := make([]*big.Int, depth+1)
	zh[0] = new(big.Int).Set(zeroLeafHash)
	for i := 1; i <= depth; i++ {
		zh[i] = poseidon.Hash2(zh[i-1], zh[i-1])
	}
	return zh
}

// Root returns the current tree root.
func (t *Tree) Root() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.root)
}

// Depth returns the fixed tree height.
func (t *Tree) Depth() int { return t.depth }

// Contains reports whether value has already been inserted.
func (t *Tree) Contains(value *big.Int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, seen := t.indexOf[value.Text(16)]
	return seen
}

// recomputeFrom recomputes every level from the leaf upward to the root.
// Callers must hold t.mu for writing.
func (t *Tree) recomputeFrom(leafIdx int) {
	idx := leafIdx
	for lvl := 0; lvl < t.depth; lvl++ {
		siblingIdx := idx ^ 1
		left, right := idx, siblingIdx
		if idx%2 == 1 {
			left, right = siblingIdx, idx
		}

		leftHash := t.levels[lvl][left]
		if leftHash == nil {
			leftHash = t.zeroHashes[lvl]
		}
		rightHash := t.levels[lvl][right]
		if rightHash == nil {
			rightHash = t.zeroHashes[lvl]
		}

		parentIdx := idx / 2
		t.levels[lvl+1][parentIdx] = poseidon.Hash2(leftHash, rightHash)
		idx = parentIdx
	}

	root, ok := t.levels[t.depth][0]
	if !ok {
		root = t.zeroHashes[t.depth]
	}
	t.root = root
}

// findPredecessor locates the unique leaf p such that leaves[p].Value <
// value and (leaves[p].NextValue == 0 or leaves[p].NextValue > value).
// Scanning linearly is acceptable at this scale; a balanced search index
// is a valid optimization, not a requirement.
func (t *Tree) findPredecessor(value *big.Int) (int, bool) {
	for idx, leaf := range t.leaves {
		if leaf.Value.Cmp(value) >= 0 {
			continue
		}
		if leaf.NextValue.Sign() == 0 || leaf.NextValue.Cmp(value) > 0 {
			return idx, true
		}
	}
	return 0, false
}

// Insert adds value to the sorted linked list and returns its new leaf
// index. Fails with AlreadyExists if value is already present.
func (t *Tree) Insert(value *big.Int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.indexOf[value.Text(16)]; seen {
		return 0, halperr.New(halperr.KindAlreadyExists, halperr.ErrAlreadyExists)
	}

	predIdx, ok := t.findPredecessor(value)
	if !ok {
		return 0, halperr.New(halperr.KindInternal, fmt.Errorf("merkle: no predecessor found for value"))
	}
	pred := t.leaves[predIdx]

	newIdx := len(t.leaves)
	if newIdx >= 1<<uint(t.depth) {
		return 0, halperr.New(halperr.KindInternal, fmt.Errorf("merkle: tree at capacity (depth %d)", t.depth))
	}

	newLeaf := IndexedLeaf{
		Value:     new(big.Int).Set(value),
		NextValue: pred.NextValue,
		NextIdx:   pred.NextIdx,
	}
	t.leaves = append(t.leaves, newLeaf)
	t.indexOf[value.Text(16)] = newIdx

	pred.NextValue = new(big.Int).Set(value)
	pred.NextIdx = uint32(newIdx)
	t.leaves[predIdx] = pred

	t.levels[0][predIdx] = pred.LeafHash()
	t.levels[0][newIdx] = newLeaf.LeafHash()
	t.recomputeFrom(predIdx)
	t.recomputeFrom(newIdx)

	return newIdx, nil
}

// NonMembershipProof returns the low-nullifier witness that value is
// absent. Fails with AlreadyExists if value is already in the tree.
func (t *Tree) NonMembershipProof(value *big.Int) (*NonMembershipProof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, seen := t.indexOf[value.Text(16)]; seen {
		return nil, halperr.New(halperr.KindAlreadyExists, halperr.ErrIsPresent)
	}

	predIdx, ok := t.findPredecessor(value)
	if !ok {
		return nil, halperr.New(halperr.KindInternal, fmt.Errorf("merkle: no predecessor found for value"))
	}
	pred := t.leaves[predIdx]

	siblings := make([]*big.Int, t.depth)
	directions := make([]int, t.depth)
	idx := predIdx
	for lvl := 0; lvl < t.depth; lvl++ {
		var siblingIdx int
		if idx%2 == 0 {
			siblingIdx = idx + 1
			directions[lvl] = 0
		} else {
			siblingIdx = idx - 1
			directions[lvl] = 1
		}
		sib := t.levels[lvl][siblingIdx]
		if sib == nil {
			sib = t.zeroHashes[lvl]
		}
		siblings[lvl] = sib
		idx /= 2
	}

	return &NonMembershipProof{
		LeafIndex:    predIdx,
		LowValue:     new(big.Int).Set(pred.Value),
		LowNextValue: new(big.Int).Set(pred.NextValue),
		LowNextIdx:   pred.NextIdx,
		Siblings:     siblings,
		PathIndices:  directions,
		Root:         new(big.Int).Set(t.root),
	}, nil
}

// VerifyProof rehashes the low-nullifier leaf and folds it up through the
// supplied path, comparing against proof.Root.
func VerifyProof(value *big.Int, proof *NonMembershipProof) bool {
	if proof.LowValue.Cmp(value) >= 0 {
		return false
	}
	if proof.LowNextValue.Sign() != 0 && proof.LowNextValue.Cmp(value) <= 0 {
		return false
	}

	leaf := IndexedLeaf{Value: proof.LowValue, NextValue: proof.LowNextValue, NextIdx: proof.LowNextIdx}
	current := leaf.LeafHash()

	for i := 0; i < len(proof.Siblings); i++ {
		if proof.PathIndices[i] == 0 {
			current = poseidon.Hash2(current, proof.Siblings[i])
		} else {
			current = poseidon.Hash2(proof.Siblings[i], current)
		}
	}

	return current.Cmp(proof.Root) == 0
}
