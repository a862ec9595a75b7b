// Package registry wraps the indexed Merkle tree (pkg/merkle) with the
// nullifier-freshness and registry-root-freshness checks the verification
// pipeline needs.
package registry

import (
	"math/big"
	"sync"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/merkle"
)

// Registry is the process-scoped nullifier set. Construct one in main and
// inject it; there is no package-level singleton.
type Registry struct {
	tree *merkle.Tree

	mu          sync.Mutex
	recentRoots []*big.Int
	windowSize  int
}

// New builds an empty registry backed by a fresh indexed Merkle tree of the
// given depth. windowSize is the number of trailing roots accepted as
// "fresh" in addition to the current root; 0 means exact-match only.
func New(depth, windowSize int) *Registry {
	tree := merkle.New(depth)
	return &Registry{
		tree:        tree,
		recentRoots: []*big.Int{tree.Root()},
		windowSize:  windowSize,
	}
}

// Root returns the current registry root.
func (r *Registry) Root() *big.Int {
	return r.tree.Root()
}

// NonMembershipProof requests a non-membership witness for nullifier,
// synthesizing nothing itself — callers unable to reach the registry are
// responsible for falling back to the empty-tree proof.
func (r *Registry) NonMembershipProof(nullifier *big.Int) (*merkle.NonMembershipProof, error) {
	return r.tree.NonMembershipProof(nullifier)
}

// IsFresh reports whether claimedRoot is within the accepted freshness
// window of the registry's current root.
func (r *Registry) IsFresh(claimedRoot *big.Int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.recentRoots)
	start := n - 1 - r.windowSize
	if start < 0 {
		start = 0
	}
	for i := n - 1; i >= start; i-- {
		if r.recentRoots[i].Cmp(claimedRoot) == 0 {
			return true
		}
	}
	return false
}

// Contains reports whether nullifier has already been registered.
func (r *Registry) Contains(nullifier *big.Int) bool {
	return r.tree.Contains(nullifier)
}

// Register inserts nullifier, advancing the tree root and recording it in
// the freshness window. Fails with NullifierReused if nullifier is already
// present.
func (r *Registry) Register(nullifier *big.Int) error {
	if _, err := r.tree.Insert(nullifier); err != nil {
		if halperr.Is(err, halperr.KindAlreadyExists) {
			return halperr.New(halperr.KindNullifierReused, halperr.ErrAlreadyExists)
		}
		return err
	}

	r.mu.Lock()
	r.recentRoots = append(r.recentRoots, r.tree.Root())
	r.mu.Unlock()
	return nil
}
