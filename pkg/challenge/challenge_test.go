package challenge_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/halp-system/zkcore/internal/halperr"
	"github.com/halp-system/zkcore/pkg/challenge"
)

func newStore(t *testing.T) *challenge.Store {
	t.Helper()
	s := challenge.NewStore(zerolog.Nop())
	t.Cleanup(s.Close)
	return s
}

func TestIssueThenValidateSucceeds(t *testing.T) {
	s := newStore(t)
	c, err := s.Issue("example.com", big.NewInt(1))
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)

	got, err := s.Validate(c.ID, c.Value)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
}

func TestValidateRejectsWrongValue(t *testing.T) {
	s := newStore(t)
	c, err := s.Issue("example.com", big.NewInt(1))
	require.NoError(t, err)

	_, err = s.Validate(c.ID, big.NewInt(0).Add(c.Value, big.NewInt(1)))
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindInvalidChallenge))
}

func TestValidateRejectsUnknownID(t *testing.T) {
	s := newStore(t)
	_, err := s.Validate("ch_does_not_exist", big.NewInt(1))
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindInvalidChallenge))
}

func TestConsumeIsIdempotent(t *testing.T) {
	s := newStore(t)
	c, err := s.Issue("example.com", big.NewInt(1))
	require.NoError(t, err)

	require.NoError(t, s.Consume(c.ID))
	require.NoError(t, s.Consume(c.ID))
}

func TestIssueTwoChallengesHaveDistinctIDs(t *testing.T) {
	s := newStore(t)
	a, err := s.Issue("example.com", big.NewInt(1))
	require.NoError(t, err)
	b, err := s.Issue("example.com", big.NewInt(1))
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestExpiredChallengeFailsValidation(t *testing.T) {
	s := newStore(t)
	c, err := s.Issue("example.com", big.NewInt(1))
	require.NoError(t, err)

	c.ExpiresAt = time.Now().Add(-time.Second)

	_, err = s.Validate(c.ID, c.Value)
	require.Error(t, err)
	require.True(t, halperr.Is(err, halperr.KindChallengeExpired))
}
