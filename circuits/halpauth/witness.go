package halpauth

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/field"
	"github.com/halp-system/zkcore/pkg/merkle"
	"github.com/halp-system/zkcore/pkg/poseidon"
)

// WitnessResult holds the fully populated circuit assignment and the
// derived public values the orchestrator needs to hand to the prover and
// to the verifier.
type WitnessResult struct {
	Assignment     Circuit
	Pseudonym      *big.Int
	Nullifier      *big.Int
	CommitmentHash *big.Int
	RegistryRoot   *big.Int
}

var fieldBound = new(big.Int).Lsh(big.NewInt(1), FieldBoundBits)

func fitsBound(v *big.Int) bool {
	return v.Cmp(fieldBound) < 0
}

// PrepareWitness assembles a halp-auth witness from the minimal
// independent inputs. sessionNonce is the caller's first sample; on a
// bound violation the caller should resample and retry (an
// orchestrator-level concern).
func PrepareWitness(
	masterSecret, sessionNonce *big.Int,
	domain, credentialID string,
	blindingFactor *big.Int,
	challenge *big.Int,
	nmProof *merkle.NonMembershipProof,
) (*WitnessResult, error) {
	domainHash := poseidon.HashString(domain)
	credIDHash := poseidon.HashString(credentialID)

	pseudonym := poseidon.Hash3(masterSecret, sessionNonce, domainHash)
	nullifier := poseidon.Hash3(credIDHash, sessionNonce, domainHash)

	if !fitsBound(pseudonym) || !fitsBound(nullifier) {
		return nil, halperr.New(halperr.KindInvalidInput, fmt.Errorf("halpauth: session nonce out of range, resample"))
	}

	commitmentHash := poseidon.Hash2(masterSecret, blindingFactor)

	if len(nmProof.Siblings) != MaxTreeDepth || len(nmProof.PathIndices) != MaxTreeDepth {
		return nil, halperr.New(halperr.KindInvalidInput, fmt.Errorf("halpauth: non-membership proof depth mismatch"))
	}

	var siblings [MaxTreeDepth]frontend.Variable
	var directions [MaxTreeDepth]frontend.Variable
	for i := 0; i < MaxTreeDepth; i++ {
		siblings[i] = nmProof.Siblings[i]
		directions[i] = nmProof.PathIndices[i]
	}

	assignment := Circuit{
		Pseudonym:             pseudonym,
		Nullifier:              nullifier,
		CommitmentHash:         commitmentHash,
		RegistryRoot:           nmProof.Root,
		Challenge:              challenge,
		MasterSecret:           masterSecret,
		SessionNonce:           sessionNonce,
		DomainHash:              domainHash,
		CredentialIDHash:        credIDHash,
		BlindingFactor:          blindingFactor,
		LowNullifier:            nmProof.LowValue,
		LowNullifierNextValue:   nmProof.LowNextValue,
		LowNullifierNextIdx:     new(big.Int).SetUint64(uint64(nmProof.LowNextIdx)),
		MerkleSiblings:          siblings,
		MerklePathIndices:       directions,
	}

	return &WitnessResult{
		Assignment:     assignment,
		Pseudonym:      pseudonym,
		Nullifier:      nullifier,
		CommitmentHash: commitmentHash,
		RegistryRoot:   nmProof.Root,
	}, nil
}

// EncodeFieldElement exposes field.BytesToScalar-compatible bound checking
// for callers assembling public inputs from hex-decoded bytes.
func EncodeFieldElement(b []byte) (*big.Int, error) {
	return field.BytesToScalar(b)
}
