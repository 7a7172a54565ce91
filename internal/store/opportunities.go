package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// OpportunityStore mirrors CRM opportunities into the reporting database.
type OpportunityStore struct {
	db *gorm.DB
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(db *gorm.DB) *OpportunityStore {
	return &OpportunityStore{db: db}
}

// Upsert creates or updates an opportunity by its unique external number and
// returns the surrogate id.
func (s *OpportunityStore) Upsert(ctx context.Context, o *Opportunity) (int64, error) {
	err := upsert(s.db.WithContext(ctx), o,
		[]string{"number"},
		[]string{
			"opportunity_id", "opportunity_name", "account_id", "account_name",
			"amount", "expected_revenue", "closed_at", "is_closed",
			"stage", "type", "owner_id", "owner_name", "owner_email", "owner_title",
			"updated_at",
		})
	if err != nil {
		return 0, fmt.Errorf("upsert opportunity %q: %w", o.Number, err)
	}
	return o.ID, nil
}

// Get looks an opportunity up by external number, falling back to the CRM
// record id. Returns nil when neither matches.
func (s *OpportunityStore) Get(ctx context.Context, ref string) (*Opportunity, error) {
	var o Opportunity
	err := s.db.WithContext(ctx).
		Where("number = ? OR opportunity_id = ?", ref, ref).
		First(&o).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get opportunity %q: %w", ref, err)
	}
	return &o, nil
}
