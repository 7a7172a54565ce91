package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ProvisionStore maintains the provisions table.
type ProvisionStore struct {
	db *gorm.DB
}

// NewProvisionStore creates a new ProvisionStore.
func NewProvisionStore(db *gorm.DB) *ProvisionStore {
	return &ProvisionStore{db: db}
}

// mutableColumns are the provision fields refreshed on every observed event.
// Lifecycle bookkeeping (last_state, provision_result, retired_at,
// lifetime_interval) is owned by the lifecycle store and never clobbered
// here.
var mutableColumns = []string{
	"student_id", "catalog_id", "purpose_id",
	"manager_id", "manager_chargeback_id", "opportunity_db_id",
	"guid", "babylon_guid", "subject_name", "cost_center", "student_geo",
	"purpose", "opportunity", "chargeback_method", "workshop_users", "service_type",
	"cloud", "cloud_region", "account", "environment", "class_name",
	"datasource", "env_type", "sandbox", "sandbox_name",
	"azure_tenant", "azure_subscription", "platform_url",
	"provisioned_at", "provision_time", "deploy_interval",
	"tower_job_id", "tower_job_url",
	"modified_at",
}

// Upsert inserts a provision on first observation or refreshes the mutable
// fields on redelivery, keyed by the unique provisioning UUID. Returns the
// surrogate id.
func (s *ProvisionStore) Upsert(ctx context.Context, p *Provision) (int64, error) {
	now := time.Now().UTC()
	p.ModifiedAt = &now
	err := upsert(s.db.WithContext(ctx), p, []string{"uuid"}, mutableColumns)
	if err != nil {
		return 0, fmt.Errorf("upsert provision %s: %w", p.UUID, err)
	}
	return p.ID, nil
}

// Get returns the provision for uuid, or nil when it was never observed.
func (s *ProvisionStore) Get(ctx context.Context, uuid string) (*Provision, error) {
	var p Provision
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get provision %s: %w", uuid, err)
	}
	return &p, nil
}

// Retire sets the retirement timestamp once. Redelivered deletion events
// leave the original timestamp untouched.
func (s *ProvisionStore) Retire(ctx context.Context, uuid string, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&Provision{}).
		Where("uuid = ? AND retired_at IS NULL", uuid).
		Update("retired_at", at.UTC())
	if result.Error != nil {
		return fmt.Errorf("retire provision %s: %w", uuid, result.Error)
	}
	return nil
}

// UpdateResult sets the provision result.
func (s *ProvisionStore) UpdateResult(ctx context.Context, uuid, result string) error {
	err := s.db.WithContext(ctx).Model(&Provision{}).
		Where("uuid = ?", uuid).
		Update("provision_result", result).Error
	if err != nil {
		return fmt.Errorf("update provision result %s: %w", uuid, err)
	}
	return nil
}

// SetLastState updates the denormalized last-state cache.
func (s *ProvisionStore) SetLastState(ctx context.Context, uuid, state string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&Provision{}).
		Where("uuid = ?", uuid).
		Updates(map[string]any{
			"last_state":  state,
			"modified_at": at.UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("set last state for %s: %w", uuid, err)
	}
	return nil
}

// SetLifetime records the total lifetime of a destroyed environment.
func (s *ProvisionStore) SetLifetime(ctx context.Context, uuid string, lifetime time.Duration) error {
	err := s.db.WithContext(ctx).Model(&Provision{}).
		Where("uuid = ?", uuid).
		Update("lifetime_interval", lifetime).Error
	if err != nil {
		return fmt.Errorf("set lifetime for %s: %w", uuid, err)
	}
	return nil
}
