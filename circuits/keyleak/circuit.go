// Package keyleak implements a companion slashing circuit: proof of
// knowledge of a leaked master secret whose Poseidon commitment matches a
// registered value, without revealing the secret on-chain. A reporter who
// recovers a holder's leaked master secret can claim a slashing reward by
// producing this proof, binding the claim to their own address so a
// front-runner cannot intercept it.
//
// Generalized from a generic secret/public-key leak circuit to use the
// same Poseidon pairing as the vault's master-secret commitments.
package keyleak

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// Circuit proves knowledge of a master secret whose Poseidon commitment
// matches a publicly known, already-registered value.
type Circuit struct {
	// Public inputs.
	MasterSecretCommitment frontend.Variable `gnark:"masterSecretCommitment,public"`
	ReporterAddress        frontend.Variable `gnark:"reporterAddress,public"`

	// Private witness.
	MasterSecret frontend.Variable `gnark:"masterSecret"`
}

func (circuit *Circuit) Define(api frontend.API) error {
	p, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return err
	}

	api.AssertIsEqual(api.IsZero(circuit.MasterSecret), 0)
	api.AssertIsEqual(api.IsZero(circuit.MasterSecretCommitment), 0)

	hasher := hash.NewMerkleDamgardHasher(api, p, 0)
	hasher.Write(circuit.MasterSecret)
	derived := hasher.Sum()

	api.AssertIsEqual(circuit.MasterSecretCommitment, derived)

	// ReporterAddress carries no semantic constraint; it binds the proof to
	// the reporter so a front-runner who observes the proof in the mempool
	// cannot resubmit it under their own address.
	api.Mul(circuit.ReporterAddress, circuit.ReporterAddress)

	return nil
}
