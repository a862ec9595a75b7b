// Package orchestrator assembles a hybrid halp-auth proof package: it derives
// the pseudonym and nullifier for a session, fetches a non-membership
// witness from the nullifier registry, produces the halp-auth SNARK proof,
// and optionally layers a BBS+ selective-disclosure proof on top — the two
// proof backends are generated concurrently.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/halp-system/zkcore/circuits/halpauth"
	"github.com/halp-system/zkcore/config"
	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/bbs"
	"github.com/halp-system/zkcore/pkg/field"
	"github.com/halp-system/zkcore/pkg/poseidon"
	"github.com/halp-system/zkcore/pkg/registry"
	"github.com/halp-system/zkcore/pkg/vault"
)

// CredentialRecord is the subset of a holder's issued credential the
// orchestrator needs: the credential ID and the blinding factor. It carries
// no stored commitment hash; Authenticate recomputes the commitment hash as
// Poseidon2(masterSecret, BlindingFactor) and proves that value in-circuit.
// Credential issuance and storage live outside this package's scope.
type CredentialRecord struct {
	CredentialID   string
	BlindingFactor *big.Int
}

// BBSRequest asks the orchestrator to also produce a selective-disclosure
// proof over the holder's already-issued BBS+ credential, revealing exactly
// the messages at DisclosedIndices. CommitmentIndex names which disclosed
// message slot carries the commitment hash, for the verifier's binding
// check.
type BBSRequest struct {
	PublicKey        *bbs.PublicKey
	Signature        *bbs.Signature
	Messages         []*big.Int
	DisclosedIndices []int
	CommitmentIndex  int
}

// HybridAuthPackage is everything a verifier needs to redeem a challenge.
type HybridAuthPackage struct {
	SnarkProof     groth16.Proof
	Pseudonym      *big.Int
	Nullifier      *big.Int
	CommitmentHash *big.Int
	RegistryRoot   *big.Int
	Challenge      *big.Int

	BBSPublicKey       *bbs.PublicKey
	BBSProof           *bbs.ProofOfKnowledge
	BBSDisclosed       map[int]*big.Int
	BBSCommitmentIndex int
}

// Orchestrator wires the vault, the nullifier registry, and the compiled
// halp-auth proving key into the end-to-end proof assembly step.
type Orchestrator struct {
	vault *vault.Vault
	reg   *registry.Registry
	ccs   constraint.ConstraintSystem
	pk    groth16.ProvingKey
	log   zerolog.Logger
}

// New wires a vault, registry, compiled circuit, and proving key into a
// ready orchestrator.
func New(v *vault.Vault, reg *registry.Registry, ccs constraint.ConstraintSystem, pk groth16.ProvingKey, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{vault: v, reg: reg, ccs: ccs, pk: pk, log: log}
}

// Authenticate builds the full hybrid proof package for holder against
// domain and challenge, using cred to bind the commitment and, if bbsReq is
// non-nil, layering a selective-disclosure BBS+ proof alongside the SNARK.
func (o *Orchestrator) Authenticate(ctx context.Context, holder, domain string, cred CredentialRecord, challenge *big.Int, bbsReq *BBSRequest) (*HybridAuthPackage, error) {
	masterSecret, err := o.vault.Get(holder)
	if err != nil {
		return nil, err
	}

	domainHash := poseidon.HashString(domain)
	credIDHash := poseidon.HashString(cred.CredentialID)
	commitmentHash := poseidon.Hash2(masterSecret, cred.BlindingFactor)

	var nullifier *big.Int
	var sessionNonce *big.Int
	for attempt := 0; attempt < config.SessionNonceRetryCap; attempt++ {
		nonce, err := field.RandomScalar()
		if err != nil {
			return nil, fmt.Errorf("sample session nonce: %w", err)
		}
		pseudonym := poseidon.Hash3(masterSecret, nonce, domainHash)
		candidate := poseidon.Hash3(credIDHash, nonce, domainHash)
		if fitsCircuitBound(pseudonym) && fitsCircuitBound(candidate) {
			sessionNonce = nonce
			nullifier = candidate
			break
		}
	}
	if nullifier == nil {
		return nil, halperr.New(halperr.KindInvalidInput, fmt.Errorf("orchestrator: exhausted session nonce retries"))
	}

	nmProof, err := o.reg.NonMembershipProof(nullifier)
	if err != nil {
		return nil, err
	}

	witnessResult, err := halpauth.PrepareWitness(masterSecret, sessionNonce, domain, cred.CredentialID, cred.BlindingFactor, challenge, nmProof)
	if err != nil {
		return nil, err
	}
	if witnessResult.CommitmentHash.Cmp(commitmentHash) != 0 {
		return nil, halperr.New(halperr.KindBindingMismatch, fmt.Errorf("orchestrator: commitment hash mismatch"))
	}

	pkg := &HybridAuthPackage{
		Pseudonym:      witnessResult.Pseudonym,
		Nullifier:      witnessResult.Nullifier,
		CommitmentHash: witnessResult.CommitmentHash,
		RegistryRoot:   witnessResult.RegistryRoot,
		Challenge:      challenge,
	}

	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		proof, err := o.proveSnark(&witnessResult.Assignment)
		if err != nil {
			return fmt.Errorf("snark proof: %w", err)
		}
		pkg.SnarkProof = proof
		return nil
	})

	if bbsReq != nil {
		group.Go(func() error {
			proof, disclosed, err := bbs.CreateProof(bbsReq.PublicKey, bbsReq.Signature, bbsReq.Messages, bbsReq.DisclosedIndices, nil)
			if err != nil {
				return fmt.Errorf("bbs proof: %w", err)
			}
			pkg.BBSPublicKey = bbsReq.PublicKey
			pkg.BBSProof = proof
			pkg.BBSDisclosed = disclosed
			pkg.BBSCommitmentIndex = bbsReq.CommitmentIndex
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	o.log.Debug().Str("holder", holder).Str("domain", domain).Msg("hybrid auth package assembled")
	return pkg, nil
}

func (o *Orchestrator) proveSnark(assignment *halpauth.Circuit) (groth16.Proof, error) {
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	return groth16.Prove(o.ccs, o.pk, witness)
}

var fieldBound = new(big.Int).Lsh(big.NewInt(1), config.FieldBoundBits)

func fitsCircuitBound(v *big.Int) bool {
	return v.Cmp(fieldBound) < 0
}
