package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhpds/provision-ledger/internal/lifecycle"
)

func TestRecordTransitionDedupesConsecutiveStates(t *testing.T) {
	_, stores := setupTestDB(t)
	ctx := context.Background()
	id := uuid.New().String()

	_, err := stores.Provisions.Upsert(ctx, &Provision{UUID: id})
	require.NoError(t, err)

	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateProvisioning, "jane.doe"))
	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateProvisioning, "jane.doe"))
	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateStarted, "jane.doe"))
	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateStarted, "jane.doe"))

	entries, err := stores.Lifecycle.Entries(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "provisioning", entries[0].State)
	assert.Equal(t, "started", entries[1].State)
}

func TestRecordTransitionAllowsRevisits(t *testing.T) {
	_, stores := setupTestDB(t)
	ctx := context.Background()
	id := uuid.New().String()

	_, err := stores.Provisions.Upsert(ctx, &Provision{UUID: id})
	require.NoError(t, err)

	for _, s := range []lifecycle.State{
		lifecycle.StateStarted, lifecycle.StateStopped, lifecycle.StateStarted,
	} {
		require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, s, "jane.doe"))
	}

	entries, err := stores.Lifecycle.Entries(ctx, id)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRecordTransitionUpdatesLastState(t *testing.T) {
	_, stores := setupTestDB(t)
	ctx := context.Background()
	id := uuid.New().String()

	_, err := stores.Provisions.Upsert(ctx, &Provision{UUID: id})
	require.NoError(t, err)

	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateProvisioning, "jane.doe"))

	p, err := stores.Provisions.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "provisioning", p.LastState)
	require.NotNil(t, p.ModifiedAt)
}

func TestRecordTransitionDefaultsExecutor(t *testing.T) {
	_, stores := setupTestDB(t)
	ctx := context.Background()
	id := uuid.New().String()

	_, err := stores.Provisions.Upsert(ctx, &Provision{UUID: id})
	require.NoError(t, err)

	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateProvisioning, ""))

	entries, err := stores.Lifecycle.Entries(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultExecutor, entries[0].Executor)
}

func TestDestroyCompletedRecordsExactLifetime(t *testing.T) {
	_, stores := setupTestDB(t)
	ctx := context.Background()
	id := uuid.New().String()

	_, err := stores.Provisions.Upsert(ctx, &Provision{UUID: id})
	require.NoError(t, err)

	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(49*time.Hour + 30*time.Minute)

	stores.Lifecycle.now = func() time.Time { return t0 }
	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateProvisioning, "jane.doe"))

	stores.Lifecycle.now = func() time.Time { return t1 }
	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateDestroyCompleted, "jane.doe"))

	p, err := stores.Provisions.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, t1.Sub(t0), p.LifetimeInterval)
}

func TestDestroyCompletedWithoutProvisioningLeavesLifetimeZero(t *testing.T) {
	_, stores := setupTestDB(t)
	ctx := context.Background()
	id := uuid.New().String()

	_, err := stores.Provisions.Upsert(ctx, &Provision{UUID: id})
	require.NoError(t, err)

	require.NoError(t, stores.Lifecycle.RecordTransition(ctx, id, lifecycle.StateDestroyCompleted, "jane.doe"))

	p, err := stores.Provisions.Get(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, p.LifetimeInterval)
}

func TestLastStateEmptyWhenNeverLogged(t *testing.T) {
	_, stores := setupTestDB(t)

	last, err := stores.Lifecycle.LastState(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, last)
}
