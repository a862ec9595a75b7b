package keyleak

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	plonkbn254 "github.com/consensys/gnark/backend/plonk/bn254"
	"github.com/consensys/gnark/frontend"

	"github.com/halp-system/zkcore/pkg/poseidon"
	"github.com/halp-system/zkcore/pkg/setup"
)

// ProofFixture holds all values needed for Solidity tests.
type ProofFixture struct {
	SolidityProof          string `json:"solidity_proof"`
	MasterSecretCommitment string `json:"master_secret_commitment"`
	ReporterAddress        string `json:"reporter_address"`
}

// ExportProofFixture generates a deterministic PLONK proof fixture for Solidity tests.
func ExportProofFixture(keysDir string) ([]byte, error) {
	fmt.Println("Compiling keyleak circuit (PLONK/SCS)...")
	ccs, err := setup.CompileCircuitForBackend(&Circuit{}, setup.PlonkBackend)
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}

	fmt.Println("Loading PLONK keys...")
	pk, vk, err := setup.LoadPlonkKeys(keysDir, "keyleak")
	if err != nil {
		return nil, fmt.Errorf("load keys: %w", err)
	}

	masterSecret := new(big.Int).SetUint64(12345)
	commitment := poseidon.HashMany(masterSecret)
	reporterAddress := new(big.Int).SetUint64(0xDEAD)

	fmt.Printf("Master secret: %d\n", masterSecret)
	fmt.Printf("Commitment (Poseidon(ms)): 0x%064x\n", commitment)
	fmt.Printf("Reporter address: 0x%x\n", reporterAddress)

	assignment := Circuit{
		MasterSecretCommitment: commitment,
		ReporterAddress:        reporterAddress,
		MasterSecret:           masterSecret,
	}

	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return nil, fmt.Errorf("extract public witness: %w", err)
	}

	fmt.Println("Generating PLONK proof...")
	proof, err := plonk.Prove(ccs, pk, witness)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}

	if err := plonk.Verify(proof, vk, publicWitness); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	fmt.Println("PLONK proof verified successfully in Go!")

	bn254Proof := proof.(*plonkbn254.Proof)
	solidityBytes := bn254Proof.MarshalSolidity()

	fixture := ProofFixture{
		SolidityProof:          "0x" + hex.EncodeToString(solidityBytes),
		MasterSecretCommitment: fmt.Sprintf("0x%064x", commitment),
		ReporterAddress:        fmt.Sprintf("0x%064x", reporterAddress),
	}

	jsonOut, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fixture: %w", err)
	}

	fmt.Println("\n=== PROOF FIXTURE (JSON) ===")
	fmt.Println(string(jsonOut))

	fmt.Println("\n=== PUBLIC WITNESS ORDER ===")
	fmt.Println("In gnark circuit (= Solidity order): [masterSecretCommitment, reporterAddress]")

	return jsonOut, nil
}
