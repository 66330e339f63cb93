package vizcore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viz.toml")
	require.NoError(t, os.WriteFile(path, []byte("[lighting]\nambient_intensity = 0.2\n"), 0o644))

	var (
		mu   sync.Mutex
		seen []float32
	)
	cw, err := NewConfigWatcher(path, nil, func(c Config) {
		mu.Lock()
		seen = append(seen, c.Lighting.AmbientIntensity)
		mu.Unlock()
	})
	require.NoError(t, err)
	cw.debounce = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cw.Run(ctx) }()

	got := func() []float32 {
		mu.Lock()
		defer mu.Unlock()
		return append([]float32(nil), seen...)
	}

	// Invalid edits are ignored.
	require.NoError(t, os.WriteFile(path, []byte("[lighting]\nambient_intensity = -1.0\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, got())

	require.NoError(t, os.WriteFile(path, []byte("[lighting]\nambient_intensity = 0.7\n"), 0o644))
	require.Eventually(t, func() bool {
		s := got()
		return len(s) > 0 && s[len(s)-1] == 0.7
	}, 2*time.Second, 10*time.Millisecond)

	// Other files in the directory do not trigger reloads.
	n := len(got())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, got(), n)

	require.NoError(t, cw.Close())
	assert.Error(t, cw.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}
