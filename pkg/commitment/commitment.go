// Package commitment implements a Pedersen vector commitment over
// BLS12-381 G1 and a Schnorr sigma protocol proof of knowledge of its
// opening, non-interactive via Fiat-Shamir.
package commitment

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/field"
	"github.com/halp-system/zkcore/pkg/params"
)

// challengeDST is the domain separation tag prefixed to the Fiat-Shamir
// hash input.
const challengeDST = "BBS_COMMITMENT_CHALLENGE_V1"

// Commitment is C = G^ms . prod(H_i^a_i) . Hr^r, held as 48-byte
// compressed G1 bytes.
type Commitment [48]byte

// SchnorrProof is a non-interactive proof of knowledge of (ms, attrs, r)
// opening a Commitment under a context string.
type SchnorrProof struct {
	C         Commitment
	T         Commitment
	Challenge *big.Int
	Responses []*big.Int // [s_ms, s_a1..s_ak, s_r]
	Nonce     [32]byte
}

// CreateCommitment computes C = G^ms . prod(H_i^a_i) . Hr^r. If r is nil a
// fresh blinding scalar is sampled.
func CreateCommitment(p *params.Parameters, ms *big.Int, attrs []*big.Int, r *big.Int) (Commitment, *big.Int, error) {
	if len(attrs) > p.MaxAttrs {
		return Commitment{}, nil, halperr.New(halperr.KindInvalidInput, halperr.ErrTooManyAttribs)
	}

	g, h, hr, err := params.Decode(p)
	if err != nil {
		return Commitment{}, nil, fmt.Errorf("decode parameters: %w", err)
	}

	if r == nil {
		r, err = field.RandomScalar()
		if err != nil {
			return Commitment{}, nil, fmt.Errorf("sample blinding: %w", err)
		}
	}

	acc := field.G1ScalarMul(g, ms)
	for i, a := range attrs {
		acc = field.G1Add(acc, field.G1ScalarMul(h[i], a))
	}
	acc = field.G1Add(acc, field.G1ScalarMul(hr, r))

	return Commitment(field.G1Compress(acc)), r, nil
}

func fiatShamir(c, t Commitment, ctx []byte, nonce [32]byte) *big.Int {
	h := sha256.New()
	h.Write([]byte(challengeDST))
	h.Write(c[:])
	h.Write(t[:])
	h.Write(ctx)
	h.Write(nonce[:])
	sum := h.Sum(nil)
	return new(big.Int).Mod(new(big.Int).SetBytes(sum), field.Order())
}

// GenerateProof samples blinding scalars, computes T with the same linear
// structure as C, draws a fresh nonce, and returns the Fiat-Shamir proof.
func GenerateProof(p *params.Parameters, ms *big.Int, attrs []*big.Int, r *big.Int, c Commitment, ctx []byte, randomBytes func([]byte) error) (*SchnorrProof, error) {
	if len(attrs) > p.MaxAttrs {
		return nil, halperr.New(halperr.KindInvalidInput, halperr.ErrTooManyAttribs)
	}

	g, h, hr, err := params.Decode(p)
	if err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}

	blindMs, err := field.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("sample blind ms: %w", err)
	}
	blindAttrs := make([]*big.Int, len(attrs))
	for i := range attrs {
		blindAttrs[i], err = field.RandomScalar()
		if err != nil {
			return nil, fmt.Errorf("sample blind attr %d: %w", i, err)
		}
	}
	blindR, err := field.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("sample blind r: %w", err)
	}

	tAcc := field.G1ScalarMul(g, blindMs)
	for i := range attrs {
		tAcc = field.G1Add(tAcc, field.G1ScalarMul(h[i], blindAttrs[i]))
	}
	tAcc = field.G1Add(tAcc, field.G1ScalarMul(hr, blindR))
	t := Commitment(field.G1Compress(tAcc))

	var nonce [32]byte
	if randomBytes == nil {
		randomBytes = fillRandom
	}
	if err := randomBytes(nonce[:]); err != nil {
		return nil, fmt.Errorf("sample nonce: %w", err)
	}

	chal := fiatShamir(c, t, ctx, nonce)

	responses := make([]*big.Int, 0, len(attrs)+2)
	responses = append(responses, schnorrResponse(blindMs, chal, ms))
	for i := range attrs {
		responses = append(responses, schnorrResponse(blindAttrs[i], chal, attrs[i]))
	}
	responses = append(responses, schnorrResponse(blindR, chal, r))

	return &SchnorrProof{C: c, T: t, Challenge: chal, Responses: responses, Nonce: nonce}, nil
}

func schnorrResponse(blind, challenge, secret *big.Int) *big.Int {
	s := new(big.Int).Mul(challenge, secret)
	s.Add(s, blind)
	return s.Mod(s, field.Order())
}

// VerifyProof recomputes T' from the responses and checks the Fiat-Shamir
// challenge matches, in constant time.
func VerifyProof(p *params.Parameters, proof *SchnorrProof, ctx []byte, numAttrs int) (bool, error) {
	if len(proof.Responses) != numAttrs+2 {
		return false, nil
	}

	g, h, hr, err := params.Decode(p)
	if err != nil {
		return false, fmt.Errorf("decode parameters: %w", err)
	}

	c, err := field.G1Decompress(proof.C)
	if err != nil {
		return false, fmt.Errorf("decode commitment: %w", err)
	}

	sMs := proof.Responses[0]
	sAttrs := proof.Responses[1 : 1+numAttrs]
	sR := proof.Responses[1+numAttrs]

	negC := field.G1Neg(c)
	cNeg := field.G1ScalarMul(negC, proof.Challenge)

	tAcc := field.G1ScalarMul(g, sMs)
	for i := 0; i < numAttrs; i++ {
		tAcc = field.G1Add(tAcc, field.G1ScalarMul(h[i], sAttrs[i]))
	}
	tAcc = field.G1Add(tAcc, field.G1ScalarMul(hr, sR))
	tAcc = field.G1Add(tAcc, cNeg)

	tPrime := Commitment(field.G1Compress(tAcc))
	cPrime := fiatShamir(proof.C, tPrime, ctx, proof.Nonce)

	want := field.ScalarToBytes32(cPrime)
	got := field.ScalarToBytes32(proof.Challenge)
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1, nil
}

func fillRandom(b []byte) error {
	_, err := rand.Read(b)
	return err
}

// EncodeAttributeString hashes a string attribute to Fr_bls via SHA-256
// reduced modulo the scalar field, stable across issuer and holder.
func EncodeAttributeString(s string) *big.Int {
	sum := sha256.Sum256([]byte(s))
	return new(big.Int).Mod(new(big.Int).SetBytes(sum[:]), field.Order())
}

// EncodeAttributeInt casts an integer attribute directly modulo q.
func EncodeAttributeInt(v int64) *big.Int {
	return new(big.Int).Mod(big.NewInt(v), field.Order())
}

// EncodeAttributeBool maps a boolean attribute to {0,1}.
func EncodeAttributeBool(v bool) *big.Int {
	if v {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}
