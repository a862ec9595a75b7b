// Package bbs implements BBS+ signatures over a message vector with
// selective-disclosure proofs of knowledge, using pairings on BLS12-381.
// Message generators H[0], H[1] are reserved blinding/domain generators;
// H[2:] are the per-message generators, matching the +2 offset used
// throughout proof construction and verification.
package bbs

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sort"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/halp-system/zkcore/internal/halperr"
)

// Order is the BLS12-381 scalar field modulus, shared by G1 and G2 scalars.
var Order = fr.Modulus()

// PublicKey holds the issuer's verification material for a fixed-size
// message vector.
type PublicKey struct {
	G1           bls12381.G1Affine
	G2           bls12381.G2Affine
	W            bls12381.G2Affine // W = G2^x
	H            []bls12381.G1Affine
	MessageCount int
}

// PrivateKey is the issuer's signing key.
type PrivateKey struct {
	X *big.Int
	PublicKey
}

// Signature is an opaque BBS+ signature over a message vector.
type Signature struct {
	A bls12381.G1Affine
	E *big.Int
	S *big.Int
}

// ProofOfKnowledge is a selective-disclosure zero-knowledge proof binding a
// BBS+ signature to a subset of revealed messages. It is two Schnorr proofs
// glued by a shared Fiat-Shamir challenge: one over (e, r2) tying ABar to
// APrime and D, the other over (r3, s', hidden messages) tying D to the
// disclosed messages and the public generator basis. EHat is read back in
// VerifyProof's first relation; a proof cannot be forged by picking EHat
// freely because it must satisfy both that relation and the challenge hash.
type ProofOfKnowledge struct {
	APrime bls12381.G1Affine
	ABar   bls12381.G1Affine
	D      bls12381.G1Affine
	C      *big.Int
	EHat   *big.Int
	R2Hat  *big.Int
	R3Hat  *big.Int
	SHat   *big.Int
	MHat   map[int]*big.Int
}

func randomScalar() (*big.Int, error) {
	return rand.Int(rand.Reader, Order)
}

// nonZeroScalar samples a scalar guaranteed invertible mod Order, needed
// wherever the sampled value is later used as a group-element exponent that
// must have a multiplicative inverse (e.g. the proof-randomizer r1).
func nonZeroScalar() (*big.Int, error) {
	for {
		s, err := randomScalar()
		if err != nil {
			return nil, err
		}
		if s.Sign() != 0 {
			return s, nil
		}
	}
}

func negMod(x *big.Int) *big.Int {
	n := new(big.Int).Neg(x)
	return n.Mod(n, Order)
}

func g1JacNeg(j bls12381.G1Jac) bls12381.G1Jac {
	var out bls12381.G1Jac
	out.Neg(&j)
	return out
}

func g1JacToAffine(j bls12381.G1Jac) bls12381.G1Affine {
	var a bls12381.G1Affine
	a.FromJacobian(&j)
	return a
}

func g2JacToAffine(j bls12381.G2Jac) bls12381.G2Affine {
	var a bls12381.G2Affine
	a.FromJacobian(&j)
	return a
}

func g1ScalarMul(p bls12381.G1Affine, s *big.Int) bls12381.G1Jac {
	var j bls12381.G1Jac
	j.FromAffine(&p)
	j.ScalarMultiplication(&j, s)
	return j
}

// KeyGen samples a fresh issuer key pair for a message vector of the given
// length. Message generators are deterministically derived by index so
// issuer and holder always agree on the basis.
func KeyGen(messageCount int) (*PrivateKey, error) {
	x, err := randomScalar()
	if err != nil {
		return nil, fmt.Errorf("sample signing key: %w", err)
	}

	_, _, g1, g2 := bls12381.Generators()

	var w bls12381.G2Affine
	wJac := bls12381.G2Jac{}
	wJac.FromAffine(&g2)
	wJac.ScalarMultiplication(&wJac, x)
	w.FromJacobian(&wJac)

	h := make([]bls12381.G1Affine, messageCount+2)
	for i := range h {
		p, err := hashToGeneratorG1(i)
		if err != nil {
			return nil, fmt.Errorf("derive message generator %d: %w", i, err)
		}
		h[i] = p
	}

	return &PrivateKey{
		X: x,
		PublicKey: PublicKey{
			G1:           g1,
			G2:           g2,
			W:            w,
			H:            h,
			MessageCount: messageCount,
		},
	}, nil
}

// hashToGeneratorG1 derives the i-th message generator via hash-to-curve so
// no party ever learns its discrete log relative to G1.
func hashToGeneratorG1(index int) (bls12381.G1Affine, error) {
	dst := []byte("BBS_MESSAGE_GENERATOR_V1")
	msg := []byte(fmt.Sprintf("halp-bbs-generator-%d", index))
	return bls12381.HashToG1(msg, dst)
}

// CalculateDomain folds the public key's generator basis and an optional
// header into a single scalar, bound into every signature and proof.
func CalculateDomain(pk *PublicKey, header []byte) *big.Int {
	hasher := sha256.New()
	g1b := pk.G1.Bytes()
	hasher.Write(g1b[:])
	for _, h := range pk.H {
		hb := h.Bytes()
		hasher.Write(hb[:])
	}
	hasher.Write(header)
	sum := hasher.Sum(nil)
	return new(big.Int).Mod(new(big.Int).SetBytes(sum), Order)
}

// computeB returns B = G1 + H[0]^s + H[1]^domain + sum(H[i+2]^m_i).
func computeB(pk *PublicKey, messages []*big.Int, s, domain *big.Int) bls12381.G1Jac {
	b := bls12381.G1Jac{}
	b.FromAffine(&pk.G1)

	q1s := g1ScalarMul(pk.H[0], s)
	b.AddAssign(&q1s)

	q2d := g1ScalarMul(pk.H[1], domain)
	b.AddAssign(&q2d)

	for i, m := range messages {
		hi := g1ScalarMul(pk.H[i+2], m)
		b.AddAssign(&hi)
	}
	return b
}

// Sign produces a BBS+ signature over messages, which must have exactly
// pk.MessageCount entries.
func Sign(sk *PrivateKey, messages []*big.Int) (*Signature, error) {
	if len(messages) != sk.MessageCount {
		return nil, halperr.Newf(halperr.KindInvalidInput, "bbs: expected %d messages, got %d", sk.MessageCount, len(messages))
	}

	e, err := randomScalar()
	if err != nil {
		return nil, fmt.Errorf("sample e: %w", err)
	}
	s, err := randomScalar()
	if err != nil {
		return nil, fmt.Errorf("sample s: %w", err)
	}

	domain := CalculateDomain(&sk.PublicKey, nil)
	bJac := computeB(&sk.PublicKey, messages, s, domain)

	exp := new(big.Int).Add(e, sk.X)
	exp.Mod(exp, Order)
	inv := new(big.Int).ModInverse(exp, Order)
	if inv == nil {
		return nil, fmt.Errorf("sign: e+x not invertible")
	}

	var a bls12381.G1Affine
	a.FromJacobian(&bJac)
	aJac := bls12381.G1Jac{}
	aJac.FromAffine(&a)
	aJac.ScalarMultiplication(&aJac, inv)
	a.FromJacobian(&aJac)

	return &Signature{A: a, E: e, S: s}, nil
}

// Verify checks sig against the full, undisclosed message vector.
func Verify(pk *PublicKey, messages []*big.Int, sig *Signature) error {
	if len(messages) != pk.MessageCount {
		return halperr.Newf(halperr.KindInvalidInput, "bbs: expected %d messages, got %d", pk.MessageCount, len(messages))
	}

	domain := CalculateDomain(pk, nil)
	bJac := computeB(pk, messages, sig.S, domain)
	var b bls12381.G1Affine
	b.FromJacobian(&bJac)

	// e(A, W + e*G2) == e(B, G2)
	eG2Jac := bls12381.G2Jac{}
	eG2Jac.FromAffine(&pk.G2)
	eG2Jac.ScalarMultiplication(&eG2Jac, sig.E)

	xG2Jac := bls12381.G2Jac{}
	xG2Jac.FromAffine(&pk.W)
	xG2Jac.AddAssign(&eG2Jac)
	var xPlusEG2 bls12381.G2Affine
	xPlusEG2.FromJacobian(&xG2Jac)

	negBJac := bJac
	negBJac.Neg(&negBJac)
	var negB bls12381.G1Affine
	negB.FromJacobian(&negBJac)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.A, negB},
		[]bls12381.G2Affine{xPlusEG2, pk.G2},
	)
	if err != nil {
		return fmt.Errorf("pairing check: %w", err)
	}
	if !ok {
		return halperr.New(halperr.KindInvalidProof, fmt.Errorf("bbs signature verification failed"))
	}
	_ = b // retained for clarity of the equation computeB implements
	return nil
}

// ComputeProofChallenge is the Fiat-Shamir challenge binding a proof to its
// two Schnorr commitments (t1, t2), the blinded signature elements, and the
// disclosed message set.
func ComputeProofChallenge(aPrime, aBar, d, t1, t2 bls12381.G1Affine, disclosedIndices []int, disclosedMessages map[int]*big.Int) *big.Int {
	h := sha256.New()
	for _, p := range []bls12381.G1Affine{aPrime, aBar, d, t1, t2} {
		b := p.Bytes()
		h.Write(b[:])
	}

	sorted := append([]int(nil), disclosedIndices...)
	sort.Ints(sorted)
	for _, idx := range sorted {
		var idxBuf [4]byte
		idxBuf[0] = byte(idx >> 24)
		idxBuf[1] = byte(idx >> 16)
		idxBuf[2] = byte(idx >> 8)
		idxBuf[3] = byte(idx)
		h.Write(idxBuf[:])
		h.Write(disclosedMessages[idx].Bytes())
	}

	sum := h.Sum(nil)
	return new(big.Int).Mod(new(big.Int).SetBytes(sum), Order)
}

// CreateProof produces a selective-disclosure proof revealing exactly the
// messages at disclosedIndices. It follows the standard BBS+ proof of
// knowledge: A' is a scalar (not additive) randomization of A, ABar and D
// carry e and the blinding scalar r2 so the signature's e component is
// bound into two independent Schnorr relations rather than discarded, and a
// direct pairing check ties ABar back to the issuer's public key.
func CreateProof(pk *PublicKey, sig *Signature, messages []*big.Int, disclosedIndices []int, header []byte) (*ProofOfKnowledge, map[int]*big.Int, error) {
	if len(messages) != pk.MessageCount {
		return nil, nil, halperr.Newf(halperr.KindInvalidInput, "bbs: expected %d messages, got %d", pk.MessageCount, len(messages))
	}

	disclosedMap := make(map[int]bool, len(disclosedIndices))
	disclosedMessages := make(map[int]*big.Int, len(disclosedIndices))
	for _, idx := range disclosedIndices {
		if idx < 0 || idx >= len(messages) {
			return nil, nil, halperr.Newf(halperr.KindInvalidInput, "bbs: disclosed index %d out of range", idx)
		}
		disclosedMap[idx] = true
		disclosedMessages[idx] = messages[idx]
	}

	domain := CalculateDomain(pk, header)

	r1, err := nonZeroScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("sample r1: %w", err)
	}
	r3 := new(big.Int).ModInverse(r1, Order)
	if r3 == nil {
		return nil, nil, fmt.Errorf("r1 not invertible")
	}
	r2, err := randomScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("sample r2: %w", err)
	}

	bJac := computeB(pk, messages, sig.S, domain)

	// A' = A^r1 (scalar blind), ABar = A'^-e . B^r1, D = B^r1 . h0^-r2.
	aPrimeJac := g1ScalarMul(sig.A, r1)
	aPrime := g1JacToAffine(aPrimeJac)

	bR1Jac := bJac
	bR1Jac.ScalarMultiplication(&bR1Jac, r1)

	aPrimeNegEJac := g1ScalarMul(aPrime, negMod(sig.E))
	aBarJac := aPrimeNegEJac
	aBarJac.AddAssign(&bR1Jac)
	aBar := g1JacToAffine(aBarJac)

	h0NegR2Jac := g1ScalarMul(pk.H[0], negMod(r2))
	dJac := bR1Jac
	dJac.AddAssign(&h0NegR2Jac)
	d := g1JacToAffine(dJac)

	// s' = s - r2*r3, the witness carried by the second Schnorr relation.
	sPrime := new(big.Int).Mul(r2, r3)
	sPrime.Sub(sig.S, sPrime)
	sPrime.Mod(sPrime, Order)

	eTilde, err := randomScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("sample eTilde: %w", err)
	}
	r2Tilde, err := randomScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("sample r2Tilde: %w", err)
	}
	r3Tilde, err := randomScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("sample r3Tilde: %w", err)
	}
	sTilde, err := randomScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("sample sTilde: %w", err)
	}
	mTilde := make(map[int]*big.Int)
	for i := range messages {
		if !disclosedMap[i] {
			mt, err := randomScalar()
			if err != nil {
				return nil, nil, fmt.Errorf("sample message blind %d: %w", i, err)
			}
			mTilde[i] = mt
		}
	}

	// t1 = A'^-eTilde . h0^r2Tilde, committing to relation ABar/D = A'^-e . h0^r2.
	t1Jac := g1ScalarMul(aPrime, negMod(eTilde))
	h0R2TildeJac := g1ScalarMul(pk.H[0], r2Tilde)
	t1Jac.AddAssign(&h0R2TildeJac)
	t1 := g1JacToAffine(t1Jac)

	// t2 = D^r3Tilde . h0^-sTilde . prod(hi^-mTilde_i over hidden i).
	t2Jac := g1ScalarMul(d, r3Tilde)
	h0NegSTildeJac := g1ScalarMul(pk.H[0], negMod(sTilde))
	t2Jac.AddAssign(&h0NegSTildeJac)
	for i, mt := range mTilde {
		hiJac := g1ScalarMul(pk.H[i+2], negMod(mt))
		t2Jac.AddAssign(&hiJac)
	}
	t2 := g1JacToAffine(t2Jac)

	c := ComputeProofChallenge(aPrime, aBar, d, t1, t2, disclosedIndices, disclosedMessages)

	eHat := new(big.Int).Mul(sig.E, c)
	eHat.Add(eHat, eTilde)
	eHat.Mod(eHat, Order)

	r2Hat := new(big.Int).Mul(r2, c)
	r2Hat.Add(r2Hat, r2Tilde)
	r2Hat.Mod(r2Hat, Order)

	r3Hat := new(big.Int).Mul(r3, c)
	r3Hat.Add(r3Hat, r3Tilde)
	r3Hat.Mod(r3Hat, Order)

	sHat := new(big.Int).Mul(sPrime, c)
	sHat.Add(sHat, sTilde)
	sHat.Mod(sHat, Order)

	mHat := make(map[int]*big.Int, len(mTilde))
	for i, mt := range mTilde {
		v := new(big.Int).Mul(messages[i], c)
		v.Add(v, mt)
		v.Mod(v, Order)
		mHat[i] = v
	}

	return &ProofOfKnowledge{
		APrime: aPrime,
		ABar:   aBar,
		D:      d,
		C:      c,
		EHat:   eHat,
		R2Hat:  r2Hat,
		R3Hat:  r3Hat,
		SHat:   sHat,
		MHat:   mHat,
	}, disclosedMessages, nil
}

// VerifyProof checks a selective-disclosure proof against the issuer's
// public key and the set of messages the holder chose to reveal. It
// recomputes both Schnorr commitments from the proof's responses, checks
// the Fiat-Shamir challenge reproduces, and pairing-checks ABar = A'^x.
func VerifyProof(pk *PublicKey, proof *ProofOfKnowledge, disclosedMessages map[int]*big.Int, header []byte) error {
	for idx := range disclosedMessages {
		if idx < 0 || idx >= pk.MessageCount {
			return halperr.Newf(halperr.KindInvalidInput, "bbs: disclosed index %d out of range", idx)
		}
	}

	disclosedIndices := make([]int, 0, len(disclosedMessages))
	for idx := range disclosedMessages {
		disclosedIndices = append(disclosedIndices, idx)
	}
	sort.Ints(disclosedIndices)

	domain := CalculateDomain(pk, header)

	// target1 = ABar . D^-1 = A'^-e . h0^r2.
	var dJac bls12381.G1Jac
	dJac.FromAffine(&proof.D)
	dNegJac := g1JacNeg(dJac)
	target1Jac := bls12381.G1Jac{}
	target1Jac.FromAffine(&proof.ABar)
	target1Jac.AddAssign(&dNegJac)
	target1 := g1JacToAffine(target1Jac)

	// t1' = A'^-eHat . h0^r2Hat . target1^-c.
	t1PrimeJac := g1ScalarMul(proof.APrime, negMod(proof.EHat))
	h0R2HatJac := g1ScalarMul(pk.H[0], proof.R2Hat)
	t1PrimeJac.AddAssign(&h0R2HatJac)
	target1NegCJac := g1ScalarMul(target1, negMod(proof.C))
	t1PrimeJac.AddAssign(&target1NegCJac)
	t1Prime := g1JacToAffine(t1PrimeJac)

	// target2 = g1 . h1^domain . prod(hi^mi over disclosed i).
	target2Jac := bls12381.G1Jac{}
	target2Jac.FromAffine(&pk.G1)
	h1DomainJac := g1ScalarMul(pk.H[1], domain)
	target2Jac.AddAssign(&h1DomainJac)
	for idx, msg := range disclosedMessages {
		hiJac := g1ScalarMul(pk.H[idx+2], msg)
		target2Jac.AddAssign(&hiJac)
	}
	target2 := g1JacToAffine(target2Jac)

	// t2' = D^r3Hat . h0^-sHat . prod(hi^-mHat_i over hidden i) . target2^-c.
	t2PrimeJac := g1ScalarMul(proof.D, proof.R3Hat)
	h0NegSHatJac := g1ScalarMul(pk.H[0], negMod(proof.SHat))
	t2PrimeJac.AddAssign(&h0NegSHatJac)
	for idx, mHat := range proof.MHat {
		hiJac := g1ScalarMul(pk.H[idx+2], negMod(mHat))
		t2PrimeJac.AddAssign(&hiJac)
	}
	target2NegCJac := g1ScalarMul(target2, negMod(proof.C))
	t2PrimeJac.AddAssign(&target2NegCJac)
	t2Prime := g1JacToAffine(t2PrimeJac)

	c := ComputeProofChallenge(proof.APrime, proof.ABar, proof.D, t1Prime, t2Prime, disclosedIndices, disclosedMessages)
	if c.Cmp(proof.C) != 0 {
		return halperr.New(halperr.KindInvalidProof, fmt.Errorf("bbs: challenge mismatch"))
	}

	var aPrimeJac bls12381.G1Jac
	aPrimeJac.FromAffine(&proof.APrime)
	aPrimeNeg := g1JacToAffine(g1JacNeg(aPrimeJac))

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{proof.ABar, aPrimeNeg},
		[]bls12381.G2Affine{pk.G2, pk.W},
	)
	if err != nil {
		return fmt.Errorf("pairing check: %w", err)
	}
	if !ok {
		return halperr.New(halperr.KindInvalidProof, fmt.Errorf("bbs proof verification failed"))
	}
	return nil
}
