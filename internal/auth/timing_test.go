package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimingDelay_DelaysOnDenied(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 30, RandomDelayMs: 0})

	start := time.Now()
	td.Wait(false)

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestTimingDelay_SkipsAllowedByDefault(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 100, RandomDelayMs: 0})

	start := time.Now()
	td.Wait(true)

	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestTimingDelay_DelayOnAllowed(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 30, RandomDelayMs: 0, DelayOnAllowed: true})

	start := time.Now()
	td.Wait(true)

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestCryptoRandIntn_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		v, err := cryptoRandIntn(10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 10)
	}
}

func TestCryptoRandIntn_ZeroMax(t *testing.T) {
	v, err := cryptoRandIntn(0)
	require.NoError(t, err)
	assert.Zero(t, v)
}
