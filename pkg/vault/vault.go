// Package vault implements the master-secret lifecycle. A scalar is
// sampled once per holder, encrypted with AES-256-GCM, and stored under an
// OS-level keyring entry; it is decrypted in-process only for the duration
// of a single operation and never transmitted.
//
// AES-256-GCM follows the stdlib crypto/aes + crypto/cipher pairing used
// for at-rest encryption across the corpus (see
// other_examples/16b615d9_HamzaZF-PPEM__internal-zerocash-tx.go.go); no
// third-party AEAD wrapper is warranted when the standard library already
// provides a constant-time, authenticated cipher.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/halp-system/zkcore/config"
	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/field"
)

const (
	ivSize  = 16
	tagSize = 16
)

// Metadata is the non-secret record returned from Generate and embedded in
// the keyring ciphertext alongside the encrypted scalar.
type Metadata struct {
	PseudonymHex string    `json:"pseudonymHex"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int       `json:"version"`
}

// record is the full on-disk (keyring-password) ciphertext envelope.
type record struct {
	Version    int      `json:"version"`
	IV         []byte   `json:"iv"`
	AuthTag    []byte   `json:"authTag"`
	Ciphertext []byte   `json:"ciphertext"`
	Metadata   Metadata `json:"metadata"`
}

const recordVersion = 1

// KeySource derives the process-local AES key that protects the on-disk
// ciphertext. Swapping the source (fixed development material vs. an
// HSM-bound secret) must never change the ciphertext envelope format.
type KeySource func() ([]byte, error)

// FixedKeySource derives a 32-byte AES key via HKDF over fixed development
// material. Production deployments provide an HSM-bound KeySource instead.
func FixedKeySource(material []byte) KeySource {
	return func() ([]byte, error) {
		reader := hkdf.New(sha256.New, material, nil, []byte("halp-vault-aes-key-v1"))
		key := make([]byte, 32)
		if _, err := io.ReadFull(reader, key); err != nil {
			return nil, fmt.Errorf("derive vault key: %w", err)
		}
		return key, nil
	}
}

// Vault manages master-secret lifecycle for a set of holders under one
// keyring service namespace.
type Vault struct {
	service   string
	keySource KeySource
	log       zerolog.Logger
}

// New constructs a Vault. Construct one explicitly in main and inject it;
// there is no package-level singleton.
func New(keySource KeySource, log zerolog.Logger) *Vault {
	return &Vault{service: config.KeyringService, keySource: keySource, log: log}
}

func account(holder string) string {
	return "ms:" + holder
}

// Has reports whether holder already has a stored master secret.
func (v *Vault) Has(holder string) (bool, error) {
	_, err := keyring.Get(v.service, account(holder))
	if err != nil {
		if err == keyring.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("keyring lookup: %w", err)
	}
	return true, nil
}

// Generate samples a fresh master secret for holder, encrypts it, and
// writes it to the OS keyring. Fails with AlreadyExists if one is present.
func (v *Vault) Generate(holder string) (Metadata, error) {
	has, err := v.Has(holder)
	if err != nil {
		return Metadata{}, err
	}
	if has {
		return Metadata{}, halperr.New(halperr.KindAlreadyExists, halperr.ErrAlreadyExists)
	}

	ms, err := field.RandomScalar()
	if err != nil {
		return Metadata{}, fmt.Errorf("sample master secret: %w", err)
	}

	nym := field.G1ScalarMul(field.Generator(), ms)
	nymBytes := field.G1Compress(nym)

	meta := Metadata{
		PseudonymHex: fmt.Sprintf("%x", nymBytes[:]),
		CreatedAt:    time.Now(),
		Version:      recordVersion,
	}

	if err := v.store(holder, ms, meta); err != nil {
		return Metadata{}, err
	}

	v.log.Info().Str("holder", holder).Msg("master secret generated")
	return meta, nil
}

// Get decrypts and returns the master secret for holder. The returned
// scalar is expected to live only for the duration of the caller's
// current operation frame.
func (v *Vault) Get(holder string) (*big.Int, error) {
	password, err := keyring.Get(v.service, account(holder))
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, halperr.New(halperr.KindNotFound, halperr.ErrNotFound)
		}
		return nil, fmt.Errorf("keyring lookup: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(password), &rec); err != nil {
		return nil, halperr.New(halperr.KindInternal, fmt.Errorf("decode vault record: %w", err))
	}

	key, err := v.keySource()
	if err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}

	plaintext, err := decrypt(key, rec.IV, rec.Ciphertext, rec.AuthTag)
	if err != nil {
		return nil, halperr.New(halperr.KindInternal, halperr.ErrDecryptFailed)
	}

	return new(big.Int).SetBytes(plaintext), nil
}

// DeriveContextPseudonym computes G_ctx^ms for G_ctx = HashToCurve("BBS_PSEUDONYM_" . context).
func (v *Vault) DeriveContextPseudonym(holder, context string) ([]byte, string, error) {
	ms, err := v.Get(holder)
	if err != nil {
		return nil, "", err
	}

	gCtx, err := field.HashToCurveG1([]byte("BBS_PSEUDONYM_HALP_V1"), []byte("BBS_PSEUDONYM_"+context))
	if err != nil {
		return nil, "", fmt.Errorf("derive context generator: %w", err)
	}

	p := field.G1ScalarMul(gCtx, ms)
	enc := field.G1Compress(p)
	return enc[:], context, nil
}

// Delete removes holder's master secret from the keyring.
func (v *Vault) Delete(holder string) (bool, error) {
	err := keyring.Delete(v.service, account(holder))
	if err != nil {
		if err == keyring.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("keyring delete: %w", err)
	}
	v.log.Info().Str("holder", holder).Msg("master secret deleted")
	return true, nil
}

func (v *Vault) store(holder string, ms *big.Int, meta Metadata) error {
	key, err := v.keySource()
	if err != nil {
		return fmt.Errorf("derive vault key: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return fmt.Errorf("sample iv: %w", err)
	}

	ciphertext, tag, err := encrypt(key, iv, ms.Bytes())
	if err != nil {
		return fmt.Errorf("encrypt master secret: %w", err)
	}

	rec := record{
		Version:    recordVersion,
		IV:         iv,
		AuthTag:    tag,
		Ciphertext: ciphertext,
		Metadata:   meta,
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode vault record: %w", err)
	}

	if err := keyring.Set(v.service, account(holder), string(payload)); err != nil {
		return fmt.Errorf("keyring write: %w", err)
	}
	return nil
}

func encrypt(key, iv, plaintext []byte) (ciphertext, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct := sealed[:len(sealed)-tagSize]
	t := sealed[len(sealed)-tagSize:]
	return ct, t, nil
}

func decrypt(key, iv, ciphertext, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, err
	}
	sealed := append(append([]byte{}, ciphertext...), tag...)
	return gcm.Open(nil, iv, sealed, nil)
}
