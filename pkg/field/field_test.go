package field_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/field"
)

func TestRandomScalarIsNonZeroAndInRange(t *testing.T) {
	s, err := field.RandomScalar()
	require.NoError(t, err)
	require.NotEqual(t, 0, s.Sign())
	require.Equal(t, -1, s.Cmp(field.Order()))
}

func TestScalarBytesRoundTrip(t *testing.T) {
	s, err := field.RandomScalar()
	require.NoError(t, err)

	enc := field.ScalarToBytes32(s)
	back, err := field.BytesToScalar(enc[:])
	require.NoError(t, err)
	require.Equal(t, 0, s.Cmp(back))
}

func TestBytesToScalarRejectsOutOfRange(t *testing.T) {
	tooBig := new(big.Int).Add(field.Order(), big.NewInt(1))
	_, err := field.BytesToScalar(tooBig.Bytes())
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindInvalidScalar))
}

func TestG1CompressDecompressRoundTrip(t *testing.T) {
	s, err := field.RandomScalar()
	require.NoError(t, err)
	p := field.G1ScalarMul(field.Generator(), s)

	enc := field.G1Compress(p)
	back, err := field.G1Decompress(enc)
	require.NoError(t, err)
	require.True(t, p.Equal(&back))
}

func TestG1DecompressRejectsGarbage(t *testing.T) {
	var garbage [48]byte
	for i := range garbage {
		garbage[i] = 0xff
	}
	_, err := field.G1Decompress(garbage)
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindInvalidPoint))
}

func TestG1AddNegCancels(t *testing.T) {
	g := field.Generator()
	sum := field.G1Add(g, field.G1Neg(g))
	var identity [48]byte
	identity[0] = 0xc0 // compressed-infinity flag bits; the remaining bytes are zero
	require.Equal(t, identity, field.G1Compress(sum))
}

func TestHashToCurveG1IsDeterministic(t *testing.T) {
	p1, err := field.HashToCurveG1([]byte("dst"), []byte("msg"))
	require.NoError(t, err)
	p2, err := field.HashToCurveG1([]byte("dst"), []byte("msg"))
	require.NoError(t, err)
	require.True(t, p1.Equal(&p2))

	p3, err := field.HashToCurveG1([]byte("dst"), []byte("other"))
	require.NoError(t, err)
	require.False(t, p1.Equal(&p3))
}
