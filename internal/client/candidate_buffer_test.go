package client

import (
	"errors"
	"fmt"
	"testing"

	"pairlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(n int) domain.ICECandidate {
	return domain.ICECandidate{Candidate: fmt.Sprintf("candidate:%d", n)}
}

func TestCandidateBuffer_QueuesUntilOpen(t *testing.T) {
	var applied []string
	buf := NewCandidateBuffer(func(c domain.ICECandidate) error {
		applied = append(applied, c.Candidate)
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, buf.Add(candidate(i)))
	}
	assert.Empty(t, applied)
	assert.Equal(t, 3, buf.Len())

	errs := buf.Open()
	assert.Empty(t, errs)
	assert.Equal(t, []string{"candidate:0", "candidate:1", "candidate:2"}, applied)
	assert.Equal(t, 0, buf.Len())
}

func TestCandidateBuffer_PassThroughAfterOpen(t *testing.T) {
	var applied []string
	buf := NewCandidateBuffer(func(c domain.ICECandidate) error {
		applied = append(applied, c.Candidate)
		return nil
	})

	buf.Open()
	require.NoError(t, buf.Add(candidate(7)))
	assert.Equal(t, []string{"candidate:7"}, applied)
}

func TestCandidateBuffer_OpenIsIdempotent(t *testing.T) {
	var applied []string
	buf := NewCandidateBuffer(func(c domain.ICECandidate) error {
		applied = append(applied, c.Candidate)
		return nil
	})

	buf.Add(candidate(1))
	buf.Open()
	buf.Open()
	assert.Len(t, applied, 1)
}

func TestCandidateBuffer_FailedCandidateDoesNotBlockDrain(t *testing.T) {
	var applied []string
	buf := NewCandidateBuffer(func(c domain.ICECandidate) error {
		if c.Candidate == "candidate:1" {
			return errors.New("bad candidate")
		}
		applied = append(applied, c.Candidate)
		return nil
	})

	buf.Add(candidate(0))
	buf.Add(candidate(1))
	buf.Add(candidate(2))

	errs := buf.Open()
	assert.Len(t, errs, 1)
	assert.Equal(t, []string{"candidate:0", "candidate:2"}, applied)
}

func TestCandidateBuffer_ResetClosesGateAndDiscards(t *testing.T) {
	var applied []string
	buf := NewCandidateBuffer(func(c domain.ICECandidate) error {
		applied = append(applied, c.Candidate)
		return nil
	})

	buf.Open()
	buf.Reset()

	require.NoError(t, buf.Add(candidate(5)))
	assert.Empty(t, applied, "candidate after reset must queue, not apply")
	assert.Equal(t, 1, buf.Len())
}
