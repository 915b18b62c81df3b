package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_NonDecreasingUpToMax(t *testing.T) {
	b := NewBackoff()

	var prev time.Duration
	for i := 0; i < 10; i++ {
		d := b.Next()
		assert.GreaterOrEqual(t, d, prev, "delay must never shrink between failures")
		assert.LessOrEqual(t, d, b.Max)
		prev = d
	}
	assert.Equal(t, b.Max, prev, "delays must saturate at the maximum")
}

func TestBackoff_Sequence(t *testing.T) {
	b := &Backoff{
		Base:     3 * time.Second,
		Max:      30 * time.Second,
		Ceiling:  50,
		Cooldown: 60 * time.Second,
	}

	want := []time.Duration{
		3 * time.Second,
		6 * time.Second,
		12 * time.Second,
		24 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Next(), "attempt %d", i)
	}
}

func TestBackoff_ResetAfterSuccess(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 5; i++ {
		b.Next()
	}
	require.Greater(t, b.Attempts(), 0)

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, b.Base, b.Next(), "first delay after a successful reconnect is the base delay")
}

func TestBackoff_CeilingPausesAndResumes(t *testing.T) {
	b := &Backoff{
		Base:     time.Second,
		Max:      4 * time.Second,
		Ceiling:  3,
		Cooldown: time.Minute,
	}

	b.Next() // 1s
	b.Next() // 2s
	b.Next() // 4s, attempt counter now at ceiling

	assert.Equal(t, time.Minute, b.Next(), "hitting the ceiling yields one cooldown")
	assert.Equal(t, time.Second, b.Next(), "after the cooldown the counter starts over")
}
