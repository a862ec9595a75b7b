package halpauth

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/frontend"

	"github.com/halp-system/zkcore/pkg/merkle"
	"github.com/halp-system/zkcore/pkg/setup"
)

// ProofFixture holds all values needed for Solidity tests.
type ProofFixture struct {
	SolidityProof  [8]string `json:"solidity_proof"`
	Pseudonym      string    `json:"pseudonym"`
	Nullifier      string    `json:"nullifier"`
	CommitmentHash string    `json:"commitment_hash"`
	RegistryRoot   string    `json:"registry_root"`
	Challenge      string    `json:"challenge"`
}

// ExportProofFixture generates a deterministic proof fixture for
// Solidity-side integration tests. keysDir holds the proving/verifying keys.
func ExportProofFixture(keysDir string) ([]byte, error) {
	fmt.Println("Compiling halpauth circuit...")
	ccs, err := setup.CompileCircuit(&Circuit{})
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}

	fmt.Println("Loading keys...")
	pk, vk, err := setup.LoadKeys(keysDir, "halpauth")
	if err != nil {
		return nil, fmt.Errorf("load keys: %w", err)
	}

	tree := merkle.New(MaxTreeDepth)
	masterSecret := big.NewInt(12345)
	sessionNonce := big.NewInt(42)
	blindingFactor := big.NewInt(7)
	challenge := big.NewInt(0xC0FFEE)

	result, err := PrepareWitness(masterSecret, sessionNonce, "example.com", "fixture-credential", blindingFactor, challenge, mustEmptyProof(tree))
	if err != nil {
		return nil, fmt.Errorf("prepare witness: %w", err)
	}

	witness, err := frontend.NewWitness(&result.Assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return nil, fmt.Errorf("extract public witness: %w", err)
	}

	fmt.Println("Generating proof...")
	proof, err := groth16.Prove(ccs, pk, witness)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	fmt.Println("Proof verified successfully in Go!")

	bn254Proof := proof.(*groth16bn254.Proof)

	aX, aY := new(big.Int), new(big.Int)
	bn254Proof.Ar.X.BigInt(aX)
	bn254Proof.Ar.Y.BigInt(aY)

	bX0, bX1, bY0, bY1 := new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	bn254Proof.Bs.X.A0.BigInt(bX0)
	bn254Proof.Bs.X.A1.BigInt(bX1)
	bn254Proof.Bs.Y.A0.BigInt(bY0)
	bn254Proof.Bs.Y.A1.BigInt(bY1)

	cX, cY := new(big.Int), new(big.Int)
	bn254Proof.Krs.X.BigInt(cX)
	bn254Proof.Krs.Y.BigInt(cY)

	solidityProof := [8]*big.Int{aX, aY, bX1, bX0, bY1, bY0, cX, cY}

	fixture := ProofFixture{
		Pseudonym:      fmt.Sprintf("0x%064x", result.Pseudonym),
		Nullifier:      fmt.Sprintf("0x%064x", result.Nullifier),
		CommitmentHash: fmt.Sprintf("0x%064x", result.CommitmentHash),
		RegistryRoot:   fmt.Sprintf("0x%064x", result.RegistryRoot),
		Challenge:      fmt.Sprintf("0x%064x", challenge),
	}
	for i := 0; i < 8; i++ {
		fixture.SolidityProof[i] = fmt.Sprintf("0x%064x", solidityProof[i])
	}

	jsonOut, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fixture: %w", err)
	}

	fmt.Println("\n=== PROOF FIXTURE (JSON) ===")
	fmt.Println(string(jsonOut))
	fmt.Println("\n=== PUBLIC WITNESS ORDER ===")
	fmt.Println("[pseudonym, nullifier, commitmentHash, registryRoot, challenge]")

	return jsonOut, nil
}

func mustEmptyProof(tree *merkle.Tree) *merkle.NonMembershipProof {
	proof, err := tree.NonMembershipProof(big.NewInt(1))
	if err != nil {
		panic(err)
	}
	return proof
}
