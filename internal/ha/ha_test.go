package ha

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledElectionActsAsSoleLeader(t *testing.T) {
	cfg := DefaultConfig()
	le := NewLeaderElector(cfg, nil, nil)

	started := make(chan struct{})
	le.OnStartLeading(func(context.Context) { close(started) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		le.Run(ctx)
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("leader callback never fired")
	}
	assert.True(t, le.IsLeader())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LEDGER_LEADER_ELECTION_ENABLED", "true")
	t.Setenv("LEDGER_LEADER_LEASE_NAME", "custom-lease")
	t.Setenv("LEDGER_LEADER_LEASE_DURATION", "30")
	t.Setenv("POD_NAME", "ledger-0")

	cfg := ConfigFromEnv()
	require.True(t, cfg.Enabled)
	assert.Equal(t, "custom-lease", cfg.LeaseName)
	assert.Equal(t, 30*time.Second, cfg.LeaseDuration)
	assert.Equal(t, "ledger-0", cfg.Identity)
}
