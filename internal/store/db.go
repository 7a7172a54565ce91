package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the reporting database. Postgres is the production
// backend; mysql is supported for parity with the other reporting tools.
func Open(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "postgres", "":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres or mysql)", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dbType, err)
	}
	return db, nil
}

// Stores bundles the per-entity stores over one database handle.
type Stores struct {
	Provisions    *ProvisionStore
	Lifecycle     *LifecycleStore
	Catalog       *CatalogStore
	Purposes      *PurposeStore
	Managers      *ManagerStore
	Students      *StudentStore
	Opportunities *OpportunityStore
	Roster        *RosterStore
	ClaimLog      *ClaimLogStore
}

// NewStores creates all entity stores on db.
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Provisions:    NewProvisionStore(db),
		Lifecycle:     NewLifecycleStore(db),
		Catalog:       NewCatalogStore(db),
		Purposes:      NewPurposeStore(db),
		Managers:      NewManagerStore(db),
		Students:      NewStudentStore(db),
		Opportunities: NewOpportunityStore(db),
		Roster:        NewRosterStore(db),
		ClaimLog:      NewClaimLogStore(db),
	}
}

// AutoMigrate creates or updates every reporting table.
func (s *Stores) AutoMigrate(db *gorm.DB) error {
	models := []any{
		&Provision{},
		&LifecycleEntry{},
		&CatalogItem{},
		&Purpose{},
		&Manager{},
		&Student{},
		&Opportunity{},
		&ChargebackManager{},
		&ClaimLog{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto-migrate %T: %w", m, err)
		}
	}
	return nil
}
