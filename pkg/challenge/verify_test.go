package challenge_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/halp-system/zkcore/circuits/halpauth"
	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/challenge"
	"github.com/halp-system/zkcore/pkg/poseidon"
	"github.com/halp-system/zkcore/pkg/registry"
	"github.com/halp-system/zkcore/pkg/setup"
)

type verifyFixture struct {
	ccs    constraint.ConstraintSystem
	pk     groth16.ProvingKey
	vk     groth16.VerifyingKey
	reg    *registry.Registry
	store  *challenge.Store
	domain string
}

func buildFixture(t *testing.T) *verifyFixture {
	t.Helper()

	ccs, err := setup.CompileCircuit(&halpauth.Circuit{})
	require.NoError(t, err)
	pk, vk, err := groth16.Setup(ccs)
	require.NoError(t, err)

	reg := registry.New(halpauth.MaxTreeDepth, 1)
	store := challenge.NewStore(zerolog.Nop())
	t.Cleanup(store.Close)

	return &verifyFixture{ccs: ccs, pk: pk, vk: vk, reg: reg, store: store, domain: "example.com"}
}

func (f *verifyFixture) proveFor(t *testing.T, holder, nonce, blinding, challengeVal *big.Int, credentialID string) *challenge.HybridProof {
	t.Helper()

	domainHash := poseidon.HashString(f.domain)
	credIDHash := poseidon.HashString(credentialID)
	nullifier := poseidon.Hash3(credIDHash, nonce, domainHash)

	nmProof, err := f.reg.NonMembershipProof(nullifier)
	require.NoError(t, err)

	result, err := halpauth.PrepareWitness(holder, nonce, f.domain, credentialID, blinding, challengeVal, nmProof)
	require.NoError(t, err)

	witness, err := frontend.NewWitness(&result.Assignment, ecc.BN254.ScalarField())
	require.NoError(t, err)

	proof, err := groth16.Prove(f.ccs, f.pk, witness)
	require.NoError(t, err)

	return &challenge.HybridProof{
		SnarkProof:     proof,
		Pseudonym:      result.Pseudonym,
		Nullifier:      result.Nullifier,
		CommitmentHash: result.CommitmentHash,
		RegistryRoot:   result.RegistryRoot,
		Challenge:      challengeVal,
	}
}

func TestVerifyFullPipelineSucceeds(t *testing.T) {
	f := buildFixture(t)
	v := challenge.NewVerifier(f.ccs, f.vk, f.store, f.reg)

	c, err := f.store.Issue(f.domain, f.reg.Root())
	require.NoError(t, err)

	proof := f.proveFor(t, big.NewInt(111), big.NewInt(222), big.NewInt(333), c.Value, "cred-A")

	session, err := v.Verify(&challenge.VerifyRequest{ChallengeID: c.ID, Domain: f.domain, Proof: proof})
	require.NoError(t, err)
	require.Equal(t, f.domain, session.Domain)
	require.NotEmpty(t, session.SessionToken)
	require.True(t, f.reg.Contains(proof.Nullifier))
}

func TestVerifyRejectsReplayedChallenge(t *testing.T) {
	f := buildFixture(t)
	v := challenge.NewVerifier(f.ccs, f.vk, f.store, f.reg)

	c, err := f.store.Issue(f.domain, f.reg.Root())
	require.NoError(t, err)
	proof := f.proveFor(t, big.NewInt(111), big.NewInt(222), big.NewInt(333), c.Value, "cred-A")

	_, err = v.Verify(&challenge.VerifyRequest{ChallengeID: c.ID, Domain: f.domain, Proof: proof})
	require.NoError(t, err)

	_, err = v.Verify(&challenge.VerifyRequest{ChallengeID: c.ID, Domain: f.domain, Proof: proof})
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindInvalidChallenge))
}

func TestVerifyAcceptsRootOneRegistrationBehind(t *testing.T) {
	f := buildFixture(t)
	v := challenge.NewVerifier(f.ccs, f.vk, f.store, f.reg)

	c1, err := f.store.Issue(f.domain, f.reg.Root())
	require.NoError(t, err)
	proof1 := f.proveFor(t, big.NewInt(111), big.NewInt(222), big.NewInt(333), c1.Value, "cred-A")

	// A second holder's proof built against the same root as the first,
	// before the first registration, is one generation stale once the first
	// proof is registered, and should still fall inside the trailing
	// freshness window of 1.
	c2, err := f.store.Issue(f.domain, f.reg.Root())
	require.NoError(t, err)
	proof2 := f.proveFor(t, big.NewInt(444), big.NewInt(555), big.NewInt(666), c2.Value, "cred-B")

	_, err = v.Verify(&challenge.VerifyRequest{ChallengeID: c1.ID, Domain: f.domain, Proof: proof1})
	require.NoError(t, err)

	_, err = v.Verify(&challenge.VerifyRequest{ChallengeID: c2.ID, Domain: f.domain, Proof: proof2})
	require.NoError(t, err)
}

func TestVerifyRejectsUnknownChallenge(t *testing.T) {
	f := buildFixture(t)
	v := challenge.NewVerifier(f.ccs, f.vk, f.store, f.reg)

	proof := f.proveFor(t, big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(999), "cred-Z")
	_, err := v.Verify(&challenge.VerifyRequest{ChallengeID: "ch_nope", Domain: f.domain, Proof: proof})
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindInvalidChallenge))
}
