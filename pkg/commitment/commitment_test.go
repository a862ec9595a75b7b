package commitment_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/commitment"
	"github.com/halp-system/zkcore/pkg/field"
	"github.com/halp-system/zkcore/pkg/params"
)

func testParams(t *testing.T) *params.Parameters {
	t.Helper()
	p, err := params.Generate(2)
	require.NoError(t, err)
	return p
}

func TestCreateAndVerifyCommitmentProof(t *testing.T) {
	p := testParams(t)
	ms := big.NewInt(12345)
	attrs := []*big.Int{big.NewInt(1), big.NewInt(2)}
	ctx := []byte("session-ctx")

	c, r, err := commitment.CreateCommitment(p, ms, attrs, nil)
	require.NoError(t, err)

	proof, err := commitment.GenerateProof(p, ms, attrs, r, c, ctx, nil)
	require.NoError(t, err)

	ok, err := commitment.VerifyProof(p, proof, ctx, len(attrs))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyProofRejectsWrongContext(t *testing.T) {
	p := testParams(t)
	ms := big.NewInt(7)
	attrs := []*big.Int{big.NewInt(1), big.NewInt(2)}

	c, r, err := commitment.CreateCommitment(p, ms, attrs, nil)
	require.NoError(t, err)
	proof, err := commitment.GenerateProof(p, ms, attrs, r, c, []byte("ctx-a"), nil)
	require.NoError(t, err)

	ok, err := commitment.VerifyProof(p, proof, []byte("ctx-b"), len(attrs))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyProofRejectsWrongAttributeCount(t *testing.T) {
	p := testParams(t)
	ms := big.NewInt(7)
	attrs := []*big.Int{big.NewInt(1), big.NewInt(2)}

	c, r, err := commitment.CreateCommitment(p, ms, attrs, nil)
	require.NoError(t, err)
	proof, err := commitment.GenerateProof(p, ms, attrs, r, c, nil, nil)
	require.NoError(t, err)

	ok, err := commitment.VerifyProof(p, proof, nil, len(attrs)-1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateCommitmentRejectsTooManyAttributes(t *testing.T) {
	p := testParams(t)
	attrs := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}

	_, _, err := commitment.CreateCommitment(p, big.NewInt(1), attrs, nil)
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindInvalidInput))
}

func TestCreateCommitmentDeterministicUnderFixedBlinding(t *testing.T) {
	p := testParams(t)
	r, err := field.RandomScalar()
	require.NoError(t, err)

	c1, r1, err := commitment.CreateCommitment(p, big.NewInt(9), nil, r)
	require.NoError(t, err)
	c2, r2, err := commitment.CreateCommitment(p, big.NewInt(9), nil, r)
	require.NoError(t, err)

	require.Equal(t, c1, c2)
	require.Equal(t, 0, r1.Cmp(r2))
}

func TestEncodeAttributeHelpersAreStable(t *testing.T) {
	require.Equal(t, 0, commitment.EncodeAttributeString("hello").Cmp(commitment.EncodeAttributeString("hello")))
	require.NotEqual(t, 0, commitment.EncodeAttributeString("hello").Cmp(commitment.EncodeAttributeString("world")))
	require.Equal(t, big.NewInt(1), commitment.EncodeAttributeBool(true))
	require.Equal(t, big.NewInt(0), commitment.EncodeAttributeBool(false))
	require.Equal(t, big.NewInt(42), commitment.EncodeAttributeInt(42))
}
