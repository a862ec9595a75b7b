// Package challenge implements challenge issuance and the ordered
// verification pipeline: a process-local challenge store with a periodic
// sweeper, and the eight-step hybrid-proof verification sequence that gates
// registration in the nullifier registry.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/halp-system/zkcore/config"
	"github.com/halp-system/zkcore/internal/halperr"
)

// challengeBound keeps issued challenge values within the same bit bound the
// halp-auth circuit enforces on its other comparison-bearing public signals.
var challengeBound = new(big.Int).Lsh(big.NewInt(1), config.FieldBoundBits)

// Challenge is one issued authentication challenge. Its state machine is
// created -> (verified -> consumed) | (expired -> evicted).
type Challenge struct {
	ID           string
	Value        *big.Int
	Domain       string
	RegistryRoot *big.Int
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Consumed     bool
}

// Store is the mutex-guarded, process-local challenge map with a
// background sweeper evicting expired entries. Construct one in main and
// inject it; there is no package-level singleton.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Challenge
	ttl     time.Duration
	log     zerolog.Logger
	stop    chan struct{}
	done    chan struct{}
}

// NewStore starts the sweeper goroutine and returns a ready Store. Call
// Close to stop the sweeper when the process shuts down.
func NewStore(log zerolog.Logger) *Store {
	s := &Store{
		entries: make(map[string]*Challenge),
		ttl:     config.ChallengeTTL,
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *Store) sweep() {
	defer close(s.done)
	ticker := time.NewTicker(config.SweeperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.evictExpired(now)
		}
	}
}

func (s *Store) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, c := range s.entries {
		if now.After(c.ExpiresAt) {
			delete(s.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Msg("challenge sweeper evicted expired entries")
	}
}

// Close stops the sweeper goroutine and waits for it to exit.
func (s *Store) Close() {
	close(s.stop)
	<-s.done
}

// Issue mints a fresh challenge for domain, bound to registryRoot at issue
// time so the verifier can compare against the root presented later.
func (s *Store) Issue(domain string, registryRoot *big.Int) (*Challenge, error) {
	value, err := rand.Int(rand.Reader, challengeBound)
	if err != nil {
		return nil, fmt.Errorf("sample challenge value: %w", err)
	}

	randSuffix := make([]byte, 4)
	if _, err := rand.Read(randSuffix); err != nil {
		return nil, fmt.Errorf("sample challenge id suffix: %w", err)
	}

	now := time.Now()
	id := fmt.Sprintf("ch_%s_%s", strconv.FormatInt(now.Unix(), 36), hex.EncodeToString(randSuffix))

	c := &Challenge{
		ID:           id,
		Value:        value,
		Domain:       domain,
		RegistryRoot: registryRoot,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}

	s.mu.Lock()
	s.entries[id] = c
	s.mu.Unlock()
	return c, nil
}

// Validate looks up id, checks the claimed value matches, and checks the
// challenge has not expired. It does not consume the challenge.
func (s *Store) Validate(id string, claimed *big.Int) (*Challenge, error) {
	s.mu.Lock()
	c, ok := s.entries[id]
	s.mu.Unlock()

	if !ok {
		return nil, halperr.New(halperr.KindInvalidChallenge, fmt.Errorf("challenge: unknown id %q", id))
	}
	if time.Now().After(c.ExpiresAt) {
		return nil, halperr.New(halperr.KindChallengeExpired, fmt.Errorf("challenge: %q expired at %s", id, c.ExpiresAt))
	}
	if c.Value.Cmp(claimed) != 0 {
		return nil, halperr.New(halperr.KindInvalidChallenge, fmt.Errorf("challenge: value mismatch for %q", id))
	}
	return c, nil
}

// Consume marks id as used. Consumption is idempotent: consuming an
// already-consumed challenge succeeds without effect.
func (s *Store) Consume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.entries[id]
	if !ok {
		return halperr.New(halperr.KindInvalidChallenge, fmt.Errorf("challenge: unknown id %q", id))
	}
	c.Consumed = true
	return nil
}
