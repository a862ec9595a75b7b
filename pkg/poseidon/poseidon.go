// Package poseidon implements the host-side Poseidon2 hash over BN254 Fr
// used throughout the core. Every function here must stay bit-exact with
// the in-circuit hasher in circuits/halpauth — the pairing of
// poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50) (circuit side) and
// poseidon2.NewMerkleDamgardHasher() (host side) is load-bearing; changing
// one without the other silently breaks every proof.
package poseidon

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

func feBytes(x *big.Int) [32]byte {
	var e fr.Element
	e.SetBigInt(x)
	return e.Bytes()
}

// Hash2 computes Poseidon2(a, b), the arity-2 permutation the indexed
// Merkle tree uses for inner nodes.
func Hash2(a, b *big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	ab := feBytes(a)
	bb := feBytes(b)
	h.Write(ab[:])
	h.Write(bb[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}

// Hash3 computes Poseidon2(a, b, c), the arity-3 permutation used for leaf
// hashing (pseudonym, nullifier, indexed-tree leaves).
func Hash3(a, b, c *big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	ab := feBytes(a)
	bb := feBytes(b)
	cb := feBytes(c)
	h.Write(ab[:])
	h.Write(bb[:])
	h.Write(cb[:])
	return new(big.Int).SetBytes(h.Sum(nil))
}

// HashMany folds an arbitrary number of field elements through the same
// sponge, one element at a time.
func HashMany(xs ...*big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	for _, x := range xs {
		b := feBytes(x)
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// HashBytes absorbs an arbitrary byte buffer by splitting it into
// ElementSize-byte chunks (each below the field modulus) and left-folding
// acc = Hash2(acc, chunk_i), seeded Hash2(chunk0, 0) for a single chunk and
// Hash2(0, 0) for empty input.
func HashBytes(data []byte, elementSize int) *big.Int {
	if len(data) == 0 {
		return Hash2(big.NewInt(0), big.NewInt(0))
	}

	numChunks := (len(data) + elementSize - 1) / elementSize
	chunks := make([]*big.Int, numChunks)
	buf := make([]byte, elementSize)
	for i := 0; i < numChunks; i++ {
		for j := range buf {
			buf[j] = 0
		}
		start := i * elementSize
		end := start + elementSize
		if end > len(data) {
			end = len(data)
		}
		copy(buf, data[start:end])
		chunks[i] = new(big.Int).SetBytes(buf)
	}

	if numChunks == 1 {
		return Hash2(chunks[0], big.NewInt(0))
	}

	acc := Hash2(chunks[0], chunks[1])
	for i := 2; i < numChunks; i++ {
		acc = Hash2(acc, chunks[i])
	}
	return acc
}

// HashString absorbs a UTF-8 string the same way HashBytes does, with a
// 31-byte chunk width (one byte of headroom below the BN254 Fr modulus).
func HashString(s string) *big.Int {
	return HashBytes([]byte(s), 31)
}
