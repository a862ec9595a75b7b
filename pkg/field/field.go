// Package field implements BLS12-381 G1 curve arithmetic and BLS12-381
// scalar-field sampling/encoding, used by the master-secret vault, the
// commitment protocol, and the BBS+ signer. All scalar and scalar-by-point
// operations route through gnark-crypto's constant-time implementations;
// nothing here hand-rolls modular exponentiation.
package field

import (
	"crypto/rand"
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/halp-system/zkcore/internal/halperr"
)

// Order is the BLS12-381 scalar field modulus.
func Order() *big.Int {
	return fr.Modulus()
}

// RandomScalar samples a uniformly random, non-zero scalar via
// reject-and-mod on 32 uniform bytes against the BLS12-381 scalar field.
func RandomScalar() (*big.Int, error) {
	for {
		s, err := rand.Int(rand.Reader, Order())
		if err != nil {
			return nil, fmt.Errorf("sample scalar: %w", err)
		}
		if s.Sign() != 0 {
			return s, nil
		}
	}
}

// ScalarToBytes32 renders a scalar as 32-byte big-endian, zero-padded.
func ScalarToBytes32(x *big.Int) [32]byte {
	var out [32]byte
	b := x.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}

// BytesToScalar parses a big-endian scalar, rejecting values at or above
// the field order.
func BytesToScalar(b []byte) (*big.Int, error) {
	v := new(big.Int).SetBytes(b)
	if v.Cmp(Order()) >= 0 {
		return nil, halperr.New(halperr.KindInvalidScalar, fmt.Errorf("scalar out of range"))
	}
	return v, nil
}

// Generator returns the canonical BLS12-381 G1 generator.
func Generator() bls12381.G1Affine {
	_, _, g1, _ := bls12381.Generators()
	return g1
}

// G1Add returns a + b on the curve.
func G1Add(a, b bls12381.G1Affine) bls12381.G1Affine {
	var aJac bls12381.G1Jac
	aJac.FromAffine(&a)
	var bJac bls12381.G1Jac
	bJac.FromAffine(&b)
	aJac.AddAssign(&bJac)
	var out bls12381.G1Affine
	out.FromJacobian(&aJac)
	return out
}

// G1ScalarMul returns p^s (additively, s*p).
func G1ScalarMul(p bls12381.G1Affine, s *big.Int) bls12381.G1Affine {
	var j bls12381.G1Jac
	j.FromAffine(&p)
	j.ScalarMultiplication(&j, s)
	var out bls12381.G1Affine
	out.FromJacobian(&j)
	return out
}

// G1Neg returns -p.
func G1Neg(p bls12381.G1Affine) bls12381.G1Affine {
	var j bls12381.G1Jac
	j.FromAffine(&p)
	j.Neg(&j)
	var out bls12381.G1Affine
	out.FromJacobian(&j)
	return out
}

// G1Compress serializes p to its 48-byte compressed form.
func G1Compress(p bls12381.G1Affine) [48]byte {
	return p.Bytes()
}

// G1Decompress parses a 48-byte compressed point, rejecting anything not on
// the curve or outside the correct subgroup.
func G1Decompress(b [48]byte) (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	if _, err := p.SetBytes(b[:]); err != nil {
		return p, halperr.New(halperr.KindInvalidPoint, err)
	}
	if !p.IsInSubGroup() {
		return p, halperr.New(halperr.KindInvalidPoint, fmt.Errorf("point not in correct subgroup"))
	}
	return p, nil
}

// HashToCurveG1 maps msg to a G1 point via IETF hash-to-curve under the
// given domain separation tag.
func HashToCurveG1(dst, msg []byte) (bls12381.G1Affine, error) {
	p, err := bls12381.HashToG1(msg, dst)
	if err != nil {
		return p, fmt.Errorf("hash to curve: %w", err)
	}
	return p, nil
}
