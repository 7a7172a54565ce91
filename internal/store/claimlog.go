package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// ClaimLogStore keeps the raw payload audit mirror: the claim object as
// fetched and the provision variables as derived, one row per claim.
type ClaimLogStore struct {
	db *gorm.DB
}

// NewClaimLogStore creates a new ClaimLogStore.
func NewClaimLogStore(db *gorm.DB) *ClaimLogStore {
	return &ClaimLogStore{db: db}
}

// SaveClaim records the raw claim object for a provision. Empty payloads are
// skipped.
func (s *ClaimLogStore) SaveClaim(ctx context.Context, provisionUUID, claimName, claimNamespace string, claim map[string]any) error {
	if len(claim) == 0 {
		return nil
	}
	// The server-managed field bookkeeping is noise in an audit mirror.
	if metadata, ok := claim["metadata"].(map[string]any); ok {
		delete(metadata, "managedFields")
	}
	raw, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("marshal claim payload: %w", err)
	}
	rec := &ClaimLog{
		ProvisionUUID:  provisionUUID,
		ClaimName:      claimName,
		ClaimNamespace: claimNamespace,
		ClaimJSON:      string(raw),
	}
	err = upsert(s.db.WithContext(ctx), rec,
		[]string{"provision_uuid", "resource_claim_name", "resource_claim_namespace"},
		[]string{"resource_claim_json"})
	if err != nil {
		return fmt.Errorf("save claim payload for %s: %w", provisionUUID, err)
	}
	return nil
}

// SaveProvisionVars records the derived provision variables for a provision.
func (s *ClaimLogStore) SaveProvisionVars(ctx context.Context, provisionUUID, claimName, claimNamespace string, vars any) error {
	raw, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("marshal provision vars: %w", err)
	}
	rec := &ClaimLog{
		ProvisionUUID:     provisionUUID,
		ClaimName:         claimName,
		ClaimNamespace:    claimNamespace,
		ProvisionVarsJSON: string(raw),
	}
	err = upsert(s.db.WithContext(ctx), rec,
		[]string{"provision_uuid", "resource_claim_name", "resource_claim_namespace"},
		[]string{"provision_vars_json"})
	if err != nil {
		return fmt.Errorf("save provision vars for %s: %w", provisionUUID, err)
	}
	return nil
}
