package merkle

import (
	"math/big"
	"testing"

	"github.com/halp-system/zkcore/internal/halperr"
)

const testDepth = 8

func TestNewTreeRootStable(t *testing.T) {
	a := New(testDepth)
	b := New(testDepth)
	if a.Root().Cmp(b.Root()) != 0 {
		t.Fatalf("two empty trees of the same depth must share a root")
	}
}

func TestInsertChangesRoot(t *testing.T) {
	tree := New(testDepth)
	before := tree.Root()

	idx, err := tree.Insert(big.NewInt(42))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected first inserted leaf at index 1, got %d", idx)
	}

	after := tree.Root()
	if before.Cmp(after) == 0 {
		t.Fatalf("root must change after insert")
	}
}

func TestInsertDuplicateFails(t *testing.T) {
	tree := New(testDepth)
	if _, err := tree.Insert(big.NewInt(7)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := tree.Insert(big.NewInt(7))
	if !halperr.Is(err, halperr.KindAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestNonMembershipProofOfUninsertedValue(t *testing.T) {
	tree := New(testDepth)
	for _, v := range []int64{10, 20, 30} {
		if _, err := tree.Insert(big.NewInt(v)); err != nil {
			t.Fatalf("insert %d: %v", v, err)
		}
	}

	for _, v := range []int64{5, 15, 25, 35} {
		proof, err := tree.NonMembershipProof(big.NewInt(v))
		if err != nil {
			t.Fatalf("non-membership proof for %d: %v", v, err)
		}
		if !VerifyProof(big.NewInt(v), proof) {
			t.Fatalf("proof for %d failed to verify", v)
		}
		if proof.Root.Cmp(tree.Root()) != 0 {
			t.Fatalf("proof root does not match tree root")
		}
	}
}

func TestNonMembershipProofRejectsPresentValue(t *testing.T) {
	tree := New(testDepth)
	if _, err := tree.Insert(big.NewInt(99)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := tree.NonMembershipProof(big.NewInt(99))
	if !halperr.Is(err, halperr.KindAlreadyExists) {
		t.Fatalf("expected AlreadyExists for a present value, got %v", err)
	}
}

func TestVerifyProofRejectsWrongValue(t *testing.T) {
	tree := New(testDepth)
	if _, err := tree.Insert(big.NewInt(100)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	proof, err := tree.NonMembershipProof(big.NewInt(50))
	if err != nil {
		t.Fatalf("non-membership proof: %v", err)
	}
	if !VerifyProof(big.NewInt(50), proof) {
		t.Fatalf("proof should verify for the value it was built for")
	}
	if VerifyProof(big.NewInt(150), proof) {
		t.Fatalf("proof must not verify for a value outside the proven gap")
	}
}

func TestVerifyProofRejectsTamperedSibling(t *testing.T) {
	tree := New(testDepth)
	for _, v := range []int64{1, 2, 3} {
		if _, err := tree.Insert(big.NewInt(v)); err != nil {
			t.Fatalf("insert %d: %v", v, err)
		}
	}

	proof, err := tree.NonMembershipProof(big.NewInt(4))
	if err != nil {
		t.Fatalf("non-membership proof: %v", err)
	}
	proof.Siblings[0] = new(big.Int).Add(proof.Siblings[0], big.NewInt(1))
	if VerifyProof(big.NewInt(4), proof) {
		t.Fatalf("proof must not verify once a sibling is tampered with")
	}
}

func TestManyInsertsPreserveOrdering(t *testing.T) {
	tree := New(testDepth)
	values := []int64{50, 10, 90, 30, 70, 20, 80, 40, 60}
	for _, v := range values {
		if _, err := tree.Insert(big.NewInt(v)); err != nil {
			t.Fatalf("insert %d: %v", v, err)
		}
	}

	for _, v := range []int64{5, 15, 25, 35, 45, 55, 65, 75, 85, 95} {
		proof, err := tree.NonMembershipProof(big.NewInt(v))
		if err != nil {
			t.Fatalf("non-membership proof for %d: %v", v, err)
		}
		if !VerifyProof(big.NewInt(v), proof) {
			t.Fatalf("proof for gap value %d failed to verify", v)
		}
	}
}

func TestTreeAtCapacityRejectsInsert(t *testing.T) {
	tree := New(2) // capacity 2^2 = 4 leaves, one of which is the head
	for i := int64(1); i < 4; i++ {
		if _, err := tree.Insert(big.NewInt(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	_, err := tree.Insert(big.NewInt(100))
	if !halperr.Is(err, halperr.KindInternal) {
		t.Fatalf("expected Internal (capacity) error, got %v", err)
	}
}
