package halpauth_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/halp-system/zkcore/circuits/halpauth"
	"github.com/halp-system/zkcore/pkg/merkle"
	"github.com/halp-system/zkcore/pkg/poseidon"
	"github.com/halp-system/zkcore/pkg/setup"
)

func TestHalpAuthCircuitEndToEnd(t *testing.T) {
	tree := merkle.New(halpauth.MaxTreeDepth)
	if _, err := tree.Insert(big.NewInt(100)); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	masterSecret := big.NewInt(12345)
	sessionNonce := big.NewInt(7)
	blindingFactor := big.NewInt(99)
	challenge := big.NewInt(424242)
	domain := "example.com"
	credentialID := "cred-1"

	domainHash := poseidon.HashString(domain)
	credIDHash := poseidon.HashString(credentialID)
	nullifier := poseidon.Hash3(credIDHash, sessionNonce, domainHash)

	nmProof, err := tree.NonMembershipProof(nullifier)
	if err != nil {
		t.Fatalf("non-membership proof: %v", err)
	}

	result, err := halpauth.PrepareWitness(masterSecret, sessionNonce, domain, credentialID, blindingFactor, challenge, nmProof)
	if err != nil {
		t.Fatalf("prepare witness: %v", err)
	}

	ccs, err := setup.CompileCircuit(&halpauth.Circuit{})
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("groth16 setup: %v", err)
	}

	witness, err := frontend.NewWitness(&result.Assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("create witness: %v", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		t.Fatalf("extract public witness: %v", err)
	}

	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestHalpAuthWitnessRejectsDepthMismatch(t *testing.T) {
	tree := merkle.New(halpauth.MaxTreeDepth)
	nmProof, err := tree.NonMembershipProof(big.NewInt(1))
	if err != nil {
		t.Fatalf("non-membership proof: %v", err)
	}
	nmProof.Siblings = nmProof.Siblings[:len(nmProof.Siblings)-1]

	_, err = halpauth.PrepareWitness(big.NewInt(1), big.NewInt(2), "d", "c", big.NewInt(3), big.NewInt(4), nmProof)
	if err == nil {
		t.Fatal("expected an error for a truncated non-membership proof")
	}
}
