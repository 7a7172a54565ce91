package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rhpds/provision-ledger/internal/lifecycle"
)

// DefaultExecutor is logged when the requester is unknown.
const DefaultExecutor = "gpte-user"

// LifecycleStore is the append-only transition log plus the denormalized
// last-state cache on provisions. It is the single source of truth for
// "what was the last action" on a provision.
type LifecycleStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLifecycleStore creates a new LifecycleStore.
func NewLifecycleStore(db *gorm.DB) *LifecycleStore {
	return &LifecycleStore{db: db, now: time.Now}
}

// LastState returns the most recently logged state for a provision, or ""
// when nothing was logged yet.
func (s *LifecycleStore) LastState(ctx context.Context, provisionUUID string) (lifecycle.State, error) {
	var entry LifecycleEntry
	err := s.db.WithContext(ctx).
		Where("provision_uuid = ?", provisionUUID).
		Order("logged_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("last lifecycle state for %s: %w", provisionUUID, err)
	}
	return lifecycle.State(entry.State), nil
}

// RecordTransition appends a transition to the log and refreshes the
// provision's last_state. Redelivery of the state already at the head of the
// log is a no-op, so the log never contains consecutive duplicates. On the
// terminal destroy-completed transition the provision's lifetime is computed
// back to its most recent provisioning entry.
func (s *LifecycleStore) RecordTransition(ctx context.Context, provisionUUID string, state lifecycle.State, executor string) error {
	last, err := s.LastState(ctx, provisionUUID)
	if err != nil {
		return err
	}
	if last == state {
		return nil
	}

	now := s.now().UTC()

	err = s.db.WithContext(ctx).Model(&Provision{}).
		Where("uuid = ?", provisionUUID).
		Updates(map[string]any{
			"last_state":  string(state),
			"modified_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("update last_state for %s: %w", provisionUUID, err)
	}

	if executor == "" {
		executor = DefaultExecutor
	}
	entry := &LifecycleEntry{
		ProvisionUUID: provisionUUID,
		State:         string(state),
		Executor:      executor,
		LoggedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append lifecycle entry for %s: %w", provisionUUID, err)
	}

	if state == lifecycle.StateDestroyCompleted {
		if err := s.recordLifetime(ctx, provisionUUID, now); err != nil {
			return err
		}
	}
	return nil
}

// recordLifetime computes now minus the most recent provisioning entry and
// persists it as the environment's total lifetime.
func (s *LifecycleStore) recordLifetime(ctx context.Context, provisionUUID string, now time.Time) error {
	var entry LifecycleEntry
	err := s.db.WithContext(ctx).
		Where("provision_uuid = ? AND state = ?", provisionUUID, string(lifecycle.StateProvisioning)).
		Order("logged_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Never seen provisioning; nothing to measure against.
			return nil
		}
		return fmt.Errorf("find provisioning entry for %s: %w", provisionUUID, err)
	}

	lifetime := now.Sub(entry.LoggedAt)
	err = s.db.WithContext(ctx).Model(&Provision{}).
		Where("uuid = ?", provisionUUID).
		Update("lifetime_interval", lifetime).Error
	if err != nil {
		return fmt.Errorf("record lifetime for %s: %w", provisionUUID, err)
	}
	return nil
}

// Entries returns the full transition log for a provision, oldest first.
func (s *LifecycleStore) Entries(ctx context.Context, provisionUUID string) ([]LifecycleEntry, error) {
	var entries []LifecycleEntry
	err := s.db.WithContext(ctx).
		Where("provision_uuid = ?", provisionUUID).
		Order("logged_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list lifecycle entries for %s: %w", provisionUUID, err)
	}
	return entries, nil
}
