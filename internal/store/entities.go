package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// CatalogStore maintains the catalog_items table.
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// Upsert creates or updates a catalog item by its unique name and returns
// the surrogate id.
func (s *CatalogStore) Upsert(ctx context.Context, item *CatalogItem) (int64, error) {
	err := upsert(s.db.WithContext(ctx), item,
		[]string{"catalog_item"},
		[]string{"catalog_name", "class_name", "infra_type"})
	if err != nil {
		return 0, fmt.Errorf("upsert catalog item %q: %w", item.CatalogItem, err)
	}
	return item.ID, nil
}

// PurposeStore maintains the purpose table.
type PurposeStore struct {
	db *gorm.DB
}

// NewPurposeStore creates a new PurposeStore.
func NewPurposeStore(db *gorm.DB) *PurposeStore {
	return &PurposeStore{db: db}
}

// Upsert creates or updates a purpose row by its unique text and returns the
// surrogate id.
func (s *PurposeStore) Upsert(ctx context.Context, p *Purpose) (int64, error) {
	err := upsert(s.db.WithContext(ctx), p,
		[]string{"purpose"},
		[]string{"category"})
	if err != nil {
		return 0, fmt.Errorf("upsert purpose %q: %w", p.Purpose, err)
	}
	return p.ID, nil
}

// ManagerStore maintains the manager table.
type ManagerStore struct {
	db *gorm.DB
}

// NewManagerStore creates a new ManagerStore.
func NewManagerStore(db *gorm.DB) *ManagerStore {
	return &ManagerStore{db: db}
}

// Upsert creates or updates a manager by email and returns the surrogate id.
func (s *ManagerStore) Upsert(ctx context.Context, name, email, kerberosID string) (int64, error) {
	m := &Manager{Name: name, Email: email, KerberosID: kerberosID}
	err := upsert(s.db.WithContext(ctx), m,
		[]string{"email"},
		[]string{"name", "kerberos_id"})
	if err != nil {
		return 0, fmt.Errorf("upsert manager %q: %w", email, err)
	}
	return m.ID, nil
}

// StudentStore maintains the students table.
type StudentStore struct {
	db *gorm.DB
}

// NewStudentStore creates a new StudentStore.
func NewStudentStore(db *gorm.DB) *StudentStore {
	return &StudentStore{db: db}
}

// Upsert creates or updates a student by email. It returns the surrogate id
// and the stored chargeback-eligibility flag, which operators may have
// toggled out of band and therefore wins over the caller's value.
func (s *StudentStore) Upsert(ctx context.Context, student *Student) (int64, bool, error) {
	err := upsert(s.db.WithContext(ctx), student,
		[]string{"email"},
		[]string{
			"company_id", "username", "full_name", "first_name", "last_name",
			"geo", "partner", "cost_center", "kerberos_id",
			"manager", "manager_email", "title", "user_category", "updated_at",
		})
	if err != nil {
		return 0, false, fmt.Errorf("upsert student %q: %w", student.Email, err)
	}
	return student.ID, student.CheckHeadcount, nil
}

// RosterStore reads the chargeback-eligible manager roster.
type RosterStore struct {
	db *gorm.DB
}

// NewRosterStore creates a new RosterStore.
func NewRosterStore(db *gorm.DB) *RosterStore {
	return &RosterStore{db: db}
}

// List returns the roster as an email to id mapping.
func (s *RosterStore) List(ctx context.Context) (map[string]int64, error) {
	var rows []ChargebackManager
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list chargeback managers: %w", err)
	}
	roster := make(map[string]int64, len(rows))
	for _, r := range rows {
		roster[r.Email] = r.ID
	}
	return roster, nil
}
