package challenge

import (
	"fmt"
	"math/big"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/google/uuid"

	"github.com/halp-system/zkcore/circuits/halpauth"
	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/bbs"
	"github.com/halp-system/zkcore/pkg/registry"
)

// HybridProof is the material a holder submits to redeem a challenge: the
// halp-auth SNARK proof and its public signals, plus an optional BBS+
// selective-disclosure proof layered on top.
type HybridProof struct {
	SnarkProof     groth16.Proof
	Pseudonym      *big.Int
	Nullifier      *big.Int
	CommitmentHash *big.Int
	RegistryRoot   *big.Int
	Challenge      *big.Int

	BBSPublicKey       *bbs.PublicKey
	BBSProof           *bbs.ProofOfKnowledge
	BBSDisclosed       map[int]*big.Int
	BBSCommitmentIndex int // index into BBSDisclosed carrying the commitment hash, for binding
}

// VerifyRequest bundles the presented proof with the challenge it claims to
// answer.
type VerifyRequest struct {
	ChallengeID string
	Domain      string
	Proof       *HybridProof
}

// VerifiedSession is the record produced by a successful verification.
// SessionToken is an opaque, single-use handle the caller can key further
// session state on; it carries no cryptographic meaning of its own.
type VerifiedSession struct {
	Pseudonym    *big.Int
	Domain       string
	VerifiedAt   time.Time
	SessionToken string
}

// Verifier runs the ordered hybrid-proof verification pipeline: challenge
// validity, structural checks, SNARK verification, optional BBS+
// verification, cross-proof binding, registry-root freshness, nullifier
// freshness, and finally registration + challenge consumption.
type Verifier struct {
	ccs      constraint.ConstraintSystem
	vk       groth16.VerifyingKey
	store    *Store
	registry *registry.Registry
}

// NewVerifier wires a compiled circuit, verifying key, challenge store, and
// nullifier registry into a ready verification pipeline. ccs is retained for
// parity with the proving side; Verify itself only needs vk.
func NewVerifier(ccs constraint.ConstraintSystem, vk groth16.VerifyingKey, store *Store, reg *registry.Registry) *Verifier {
	return &Verifier{ccs: ccs, vk: vk, store: store, registry: reg}
}

// Verify runs the full pipeline and, on success, registers the nullifier and
// consumes the challenge. Any failure leaves both the registry and the
// challenge untouched.
func (v *Verifier) Verify(req *VerifyRequest) (*VerifiedSession, error) {
	proof := req.Proof
	if proof == nil {
		return nil, halperr.New(halperr.KindInvalidProof, fmt.Errorf("challenge: missing proof"))
	}

	// Step 1: challenge validity (exists, unexpired, value matches).
	chal, err := v.store.Validate(req.ChallengeID, proof.Challenge)
	if err != nil {
		return nil, err
	}
	if chal.Consumed {
		return nil, halperr.New(halperr.KindInvalidChallenge, fmt.Errorf("challenge: %q already consumed", req.ChallengeID))
	}
	if chal.Domain != req.Domain {
		return nil, halperr.New(halperr.KindInvalidChallenge, fmt.Errorf("challenge: domain mismatch for %q", req.ChallengeID))
	}

	// Step 2: structural checks on the public signals.
	if proof.Pseudonym == nil || proof.Nullifier == nil || proof.CommitmentHash == nil || proof.RegistryRoot == nil {
		return nil, halperr.New(halperr.KindInvalidProof, fmt.Errorf("challenge: incomplete public signals"))
	}

	// Step 3: SNARK verification.
	publicAssignment := halpauth.Circuit{
		Pseudonym:      proof.Pseudonym,
		Nullifier:      proof.Nullifier,
		CommitmentHash: proof.CommitmentHash,
		RegistryRoot:   proof.RegistryRoot,
		Challenge:      proof.Challenge,
	}
	witness, err := frontend.NewWitness(&publicAssignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, halperr.New(halperr.KindInvalidProof, fmt.Errorf("build public witness: %w", err))
	}
	publicWitness, err := witness.Public()
	if err != nil {
		return nil, halperr.New(halperr.KindInvalidProof, fmt.Errorf("extract public witness: %w", err))
	}
	if err := groth16.Verify(proof.SnarkProof, v.vk, publicWitness); err != nil {
		return nil, halperr.New(halperr.KindInvalidProof, fmt.Errorf("snark verify: %w", err))
	}

	// Step 4: optional BBS+ selective-disclosure verification.
	if proof.BBSProof != nil {
		if err := bbs.VerifyProof(proof.BBSPublicKey, proof.BBSProof, proof.BBSDisclosed, nil); err != nil {
			return nil, halperr.New(halperr.KindInvalidProof, fmt.Errorf("bbs verify: %w", err))
		}

		// Step 5: binding — the disclosed commitment hash must agree with
		// the SNARK's public commitmentHash so the two proofs speak about
		// the same credential.
		disclosed, ok := proof.BBSDisclosed[proof.BBSCommitmentIndex]
		if !ok {
			return nil, halperr.New(halperr.KindBindingMismatch, fmt.Errorf("bbs: commitment index %d not disclosed", proof.BBSCommitmentIndex))
		}
		if disclosed.Cmp(proof.CommitmentHash) != 0 {
			return nil, halperr.New(halperr.KindBindingMismatch, fmt.Errorf("bbs: disclosed commitment does not match snark commitmentHash"))
		}
	}

	// Step 6: registry-root freshness.
	if !v.registry.IsFresh(proof.RegistryRoot) {
		return nil, halperr.New(halperr.KindRegistryRootMismatch, fmt.Errorf("challenge: registry root stale"))
	}

	// Step 7: nullifier freshness.
	if v.registry.Contains(proof.Nullifier) {
		return nil, halperr.New(halperr.KindNullifierReused, fmt.Errorf("challenge: nullifier already spent"))
	}

	// Step 8: register the nullifier and consume the challenge. Registration
	// failure (e.g. a concurrent redemption of the same nullifier) must not
	// leave the challenge consumed.
	if err := v.registry.Register(proof.Nullifier); err != nil {
		return nil, err
	}
	if err := v.store.Consume(req.ChallengeID); err != nil {
		return nil, err
	}

	return &VerifiedSession{
		Pseudonym:    proof.Pseudonym,
		Domain:       req.Domain,
		VerifiedAt:   time.Now(),
		SessionToken: uuid.New().String(),
	}, nil
}
