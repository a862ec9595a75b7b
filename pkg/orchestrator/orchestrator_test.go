package orchestrator_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/halp-system/zkcore/circuits/halpauth"
	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/bbs"
	"github.com/halp-system/zkcore/pkg/orchestrator"
	"github.com/halp-system/zkcore/pkg/registry"
	"github.com/halp-system/zkcore/pkg/setup"
	"github.com/halp-system/zkcore/pkg/vault"
)

type fixture struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

func buildFixture(t *testing.T) *fixture {
	t.Helper()
	ccs, err := setup.CompileCircuit(&halpauth.Circuit{})
	require.NoError(t, err)
	pk, vk, err := groth16.Setup(ccs)
	require.NoError(t, err)
	return &fixture{ccs: ccs, pk: pk, vk: vk}
}

func newVault() *vault.Vault {
	return vault.New(vault.FixedKeySource([]byte("test-material")), zerolog.Nop())
}

func TestAuthenticateProducesVerifiableSnarkProof(t *testing.T) {
	f := buildFixture(t)
	v := newVault()
	holder := "holder-1"
	_, err := v.Generate(holder)
	require.NoError(t, err)

	reg := registry.New(halpauth.MaxTreeDepth, 0)
	o := orchestrator.New(v, reg, f.ccs, f.pk, zerolog.Nop())

	cred := orchestrator.CredentialRecord{CredentialID: "cred-1", BlindingFactor: big.NewInt(77)}
	pkg, err := o.Authenticate(context.Background(), holder, "example.com", cred, big.NewInt(4242), nil)
	require.NoError(t, err)
	require.NotNil(t, pkg.SnarkProof)
	require.Nil(t, pkg.BBSProof)
	require.False(t, reg.Contains(pkg.Nullifier)) // orchestrator never registers; verification does
}

func TestAuthenticateFailsWithoutMasterSecret(t *testing.T) {
	f := buildFixture(t)
	v := newVault()
	reg := registry.New(halpauth.MaxTreeDepth, 0)
	o := orchestrator.New(v, reg, f.ccs, f.pk, zerolog.Nop())

	cred := orchestrator.CredentialRecord{CredentialID: "cred-1", BlindingFactor: big.NewInt(1)}
	_, err := o.Authenticate(context.Background(), "no-such-holder", "example.com", cred, big.NewInt(1), nil)
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindNotFound))
}

func TestAuthenticateWithBBSRequestProducesBothProofs(t *testing.T) {
	f := buildFixture(t)
	v := newVault()
	holder := "holder-bbs"
	_, err := v.Generate(holder)
	require.NoError(t, err)

	reg := registry.New(halpauth.MaxTreeDepth, 0)
	o := orchestrator.New(v, reg, f.ccs, f.pk, zerolog.Nop())

	ms, err := v.Get(holder)
	require.NoError(t, err)

	sk, err := bbs.KeyGen(1)
	require.NoError(t, err)
	messages := []*big.Int{ms}
	sig, err := bbs.Sign(sk, messages)
	require.NoError(t, err)

	cred := orchestrator.CredentialRecord{CredentialID: "cred-bbs", BlindingFactor: big.NewInt(55)}
	bbsReq := &orchestrator.BBSRequest{
		PublicKey:        &sk.PublicKey,
		Signature:        sig,
		Messages:         messages,
		DisclosedIndices: []int{0},
		CommitmentIndex:  0,
	}

	pkg, err := o.Authenticate(context.Background(), holder, "example.com", cred, big.NewInt(1), bbsReq)
	require.NoError(t, err)
	require.NotNil(t, pkg.SnarkProof)
	require.NotNil(t, pkg.BBSProof)
	require.NoError(t, bbs.VerifyProof(pkg.BBSPublicKey, pkg.BBSProof, pkg.BBSDisclosed, nil))
}
