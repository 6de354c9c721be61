package adapters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatePersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "limiter.json")

	lim, clock := newTestLimiter(DefaultLimiterConfig())
	for i := 0; i < 3; i++ {
		require.Equal(t, Proceed, lim.Admit().Kind)
		clock.Advance(15 * time.Second)
	}
	lim.MarkThrottled(10*time.Minute, ReasonProvider)

	spm := NewStatePersistenceManager(path, time.Hour, lim)
	require.NoError(t, spm.Save())
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// a fresh process five minutes later
	clock2 := NewManualClock(clock.Now().Add(5 * time.Minute))
	lim2 := NewRateLimiter(DefaultLimiterConfig(), clock2)
	ok, err := NewStatePersistenceManager(path, time.Hour, lim2).Load()
	require.NoError(t, err)
	assert.True(t, ok)

	st := lim2.Export()
	assert.Len(t, st.DayCalls, 3)
	assert.Empty(t, st.MinuteCalls)
	assert.True(t, st.Throttle.Throttled)
	assert.Equal(t, Refuse, lim2.Admit().Kind)
}

func TestStatePersistenceMissingFile(t *testing.T) {
	lim, _ := newTestLimiter(DefaultLimiterConfig())
	spm := NewStatePersistenceManager(filepath.Join(t.TempDir(), "none.json"), 0, lim)

	ok, err := spm.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatePersistenceRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	lim, _ := newTestLimiter(DefaultLimiterConfig())

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0o644))
	_, err := NewStatePersistenceManager(garbage, 0, lim).Load()
	assert.Error(t, err)

	future := filepath.Join(dir, "future.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"version": 99}`), 0o644))
	_, err = NewStatePersistenceManager(future, 0, lim).Load()
	assert.Error(t, err)
}

func TestStatePersistenceStopSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limiter.json")
	lim, _ := newTestLimiter(DefaultLimiterConfig())
	require.Equal(t, Proceed, lim.Admit().Kind)

	spm := NewStatePersistenceManager(path, time.Hour, lim)
	spm.Start()
	spm.Start()
	require.NoError(t, spm.Stop())

	_, err := os.Stat(path)
	assert.NoError(t, err)

	// restartable after stop
	spm.Start()
	require.NoError(t, spm.Stop())
}
