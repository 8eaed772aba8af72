package config

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RequiresPathAndCallback(t *testing.T) {
	_, err := NewWatcher(NewLoader(""), zerolog.Nop(), func(*Config) {})
	assert.Error(t, err)

	path := writeConfigFile(t, `{}`)
	_, err = NewWatcher(NewLoader(path), zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfigFile(t, `{}`)

	var mu sync.Mutex
	var got *Config
	w, err := NewWatcher(NewLoader(path), zerolog.Nop(), func(cfg *Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"logging": {"level": "debug"}}`), 0600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.Logging.Level == "debug"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_KeepsPreviousConfigOnBadReload(t *testing.T) {
	path := writeConfigFile(t, `{}`)

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(NewLoader(path), zerolog.Nop(), func(*Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"agent": {"max_turns": -1}}`), 0600))

	// The invalid config must never reach the callback.
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}
