// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reloadBase = `
storage:
  backend: local
  local:
    dir: /srv/out
`

func TestConfigHolderReload(t *testing.T) {
	path := writeConfig(t, reloadBase+"processing:\n  max_in_flight: 2\n")
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewConfigHolder(initial, loader)
	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	require.NoError(t, os.WriteFile(path, []byte(reloadBase+"processing:\n  max_in_flight: 6\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, 6, h.Get().Processing.MaxInFlight)
	assert.Equal(t, 6, (<-updates).Processing.MaxInFlight)

	require.NoError(t, os.WriteFile(path, []byte(reloadBase+"processing:\n  max_in_flight: 0\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 6, h.Get().Processing.MaxInFlight, "invalid reload keeps the old config")
}

func TestConfigHolderWatcher(t *testing.T) {
	path := writeConfig(t, reloadBase)
	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewConfigHolder(initial, loader)
	h.debounce = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte(reloadBase+"listen: \":9300\"\n"), 0o600))
	assert.Eventually(t, func() bool { return h.Get().Listen == ":9300" }, 5*time.Second, 20*time.Millisecond)
}

func TestConfigHolderWatcherWithoutFile(t *testing.T) {
	h := NewConfigHolder(Defaults(), NewLoader("", ""))
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
