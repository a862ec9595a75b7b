// Package params implements deterministic generation, persistence, and
// validation of the public generators shared by the commitment protocol
// and the vault's context-pseudonym derivation.
package params

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/field"
)

const currentVersion = 1

// Domain separation tags for generator derivation. Any change here is a
// breaking change to every existing commitment and proof.
const (
	dstAttrGeneratorFmt = "BBS_ATTR_GENERATOR_%d_V1"
	dstBlindGenerator   = "BBS_BLINDING_GENERATOR_V1"
	dstCommitmentHalp   = "BBS_COMMITMENT_HALP_V1"
)

// Parameters is the versioned, read-only generator set loaded once at
// startup and injected into the commitment protocol.
type Parameters struct {
	Version     int       `json:"version"`
	MaxAttrs    int       `json:"maxAttributes"`
	G           [48]byte  `json:"g"`
	H           [][48]byte `json:"h"`
	Hr          [48]byte  `json:"hr"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Generate sets G to the canonical G1 generator and derives H_1..H_k and H_r
// via hash-to-curve under the shared dstCommitmentHalp tag, each from its
// own distinct message string.
func Generate(k int) (*Parameters, error) {
	g := field.Generator()

	h := make([][48]byte, k)
	for i := 0; i < k; i++ {
		p, err := field.HashToCurveG1([]byte(dstCommitmentHalp), []byte(fmt.Sprintf(dstAttrGeneratorFmt, i+1)))
		if err != nil {
			return nil, fmt.Errorf("derive attribute generator %d: %w", i+1, err)
		}
		h[i] = field.G1Compress(p)
	}

	hr, err := field.HashToCurveG1([]byte(dstCommitmentHalp), []byte(dstBlindGenerator))
	if err != nil {
		return nil, fmt.Errorf("derive blinding generator: %w", err)
	}

	return &Parameters{
		Version:     currentVersion,
		MaxAttrs:    k,
		G:           field.G1Compress(g),
		H:           h,
		Hr:          field.G1Compress(hr),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Save writes params as versioned JSON to path.
func Save(path string, p *Parameters) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write parameters: %w", err)
	}
	return nil
}

// Load reads a versioned JSON parameters file.
func Load(path string) (*Parameters, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	var p Parameters
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return &p, nil
}

// Verify checks that the parameter set has exactly MaxAttrs generators,
// every generator deserializes to a valid curve point, and all generators
// (including G and Hr) are pairwise distinct.
func Verify(p *Parameters) error {
	if len(p.H) != p.MaxAttrs {
		return halperr.Newf(halperr.KindInvalidInput, "params: expected %d attribute generators, got %d", p.MaxAttrs, len(p.H))
	}

	seen := make(map[[48]byte]bool, len(p.H)+2)
	all := append([][48]byte{p.G, p.Hr}, p.H...)
	for _, enc := range all {
		if _, err := field.G1Decompress(enc); err != nil {
			return fmt.Errorf("params: %w", err)
		}
		if seen[enc] {
			return halperr.New(halperr.KindInvalidInput, fmt.Errorf("params: duplicate generator"))
		}
		seen[enc] = true
	}
	return nil
}

// Decode returns the G1 points backing params, decompressed once.
func Decode(p *Parameters) (g bls12381.G1Affine, h []bls12381.G1Affine, hr bls12381.G1Affine, err error) {
	if g, err = field.G1Decompress(p.G); err != nil {
		return
	}
	h = make([]bls12381.G1Affine, len(p.H))
	for i, enc := range p.H {
		if h[i], err = field.G1Decompress(enc); err != nil {
			return
		}
	}
	hr, err = field.G1Decompress(p.Hr)
	return
}
