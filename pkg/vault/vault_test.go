package vault_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/vault"
)

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	keyring.MockInit()
	return vault.New(vault.FixedKeySource([]byte("vault-test-material")), zerolog.Nop())
}

func TestGenerateThenGetRoundTrips(t *testing.T) {
	v := newVault(t)
	holder := "holder-1"

	meta, err := v.Generate(holder)
	require.NoError(t, err)
	require.NotEmpty(t, meta.PseudonymHex)

	ms, err := v.Get(holder)
	require.NoError(t, err)
	require.NotNil(t, ms)
}

func TestGenerateTwiceFailsAsAlreadyExists(t *testing.T) {
	v := newVault(t)
	holder := "holder-2"

	_, err := v.Generate(holder)
	require.NoError(t, err)

	_, err = v.Generate(holder)
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindAlreadyExists))
}

func TestGetUnknownHolderFailsAsNotFound(t *testing.T) {
	v := newVault(t)

	_, err := v.Get("no-such-holder")
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindNotFound))
}

func TestHasReflectsGenerateAndDelete(t *testing.T) {
	v := newVault(t)
	holder := "holder-3"

	has, err := v.Has(holder)
	require.NoError(t, err)
	require.False(t, has)

	_, err = v.Generate(holder)
	require.NoError(t, err)

	has, err = v.Has(holder)
	require.NoError(t, err)
	require.True(t, has)

	deleted, err := v.Delete(holder)
	require.NoError(t, err)
	require.True(t, deleted)

	has, err = v.Has(holder)
	require.NoError(t, err)
	require.False(t, has)
}

func TestDifferentKeySourcesCannotDecryptEachOther(t *testing.T) {
	keyring.MockInit()
	holder := "holder-4"

	vA := vault.New(vault.FixedKeySource([]byte("material-a")), zerolog.Nop())
	_, err := vA.Generate(holder)
	require.NoError(t, err)

	vB := vault.New(vault.FixedKeySource([]byte("material-b")), zerolog.Nop())
	_, err = vB.Get(holder)
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindInternal))
}

func TestDeriveContextPseudonymIsStableForSameContext(t *testing.T) {
	v := newVault(t)
	holder := "holder-5"
	_, err := v.Generate(holder)
	require.NoError(t, err)

	p1, ctx1, err := v.DeriveContextPseudonym(holder, "example.com")
	require.NoError(t, err)
	p2, ctx2, err := v.DeriveContextPseudonym(holder, "example.com")
	require.NoError(t, err)

	require.Equal(t, p1, p2)
	require.Equal(t, ctx1, ctx2)

	p3, _, err := v.DeriveContextPseudonym(holder, "other.example")
	require.NoError(t, err)
	require.NotEqual(t, p1, p3)
}
