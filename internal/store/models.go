// Package store persists the reporting view of provisioned environments.
// Every secondary entity follows the same insert-or-update-by-natural-key
// contract; see upsert.go.
package store

import (
	"time"
)

// Provision result vocabulary.
const (
	ResultInstalling = "installing"
	ResultSuccess    = "success"
	ResultFailure    = "failure"
)

// Provision is one provisioned environment, keyed by the globally unique
// provisioning UUID. Rows are never deleted; terminal destruction sets
// RetiredAt.
type Provision struct {
	ID              int64      `gorm:"primaryKey;column:id"`
	UUID            string     `gorm:"column:uuid;uniqueIndex:provisions_unique_uuid;not null"`
	LastState       string     `gorm:"column:last_state"`
	ProvisionResult string     `gorm:"column:provision_result"`
	ProvisionedAt   *time.Time `gorm:"column:provisioned_at"`
	ModifiedAt      *time.Time `gorm:"column:modified_at"`
	RetiredAt       *time.Time `gorm:"column:retired_at"`

	GUID        string `gorm:"column:guid"`
	BabylonGUID string `gorm:"column:babylon_guid"`
	SubjectName string `gorm:"column:subject_name"`

	CatalogID           *int64 `gorm:"column:catalog_id"`
	PurposeID           *int64 `gorm:"column:purpose_id"`
	StudentID           *int64 `gorm:"column:student_id"`
	ManagerID           *int64 `gorm:"column:manager_id"`
	ManagerChargebackID *int64 `gorm:"column:manager_chargeback_id"`
	OpportunityID       *int64 `gorm:"column:opportunity_db_id"`

	Purpose     string `gorm:"column:purpose"`
	Opportunity string `gorm:"column:opportunity"`

	CostCenter *int   `gorm:"column:cost_center"`
	StudentGeo string `gorm:"column:student_geo"`

	Cloud             string `gorm:"column:cloud"`
	CloudRegion       string `gorm:"column:cloud_region"`
	Account           string `gorm:"column:account"`
	Environment       string `gorm:"column:environment"`
	ClassName         string `gorm:"column:class_name"`
	Datasource        string `gorm:"column:datasource"`
	EnvType           string `gorm:"column:env_type"`
	SandboxAccount    string `gorm:"column:sandbox"`
	SandboxName       string `gorm:"column:sandbox_name"`
	AzureTenant       string `gorm:"column:azure_tenant"`
	AzureSubscription string `gorm:"column:azure_subscription"`
	PlatformURL       string `gorm:"column:platform_url"`

	ChargebackMethod string `gorm:"column:chargeback_method"`
	WorkshopUsers    int    `gorm:"column:workshop_users;default:1"`
	ServiceType      string `gorm:"column:service_type"`

	// Timing. Intervals are stored as nanosecond counts.
	ProvisionTime    float64       `gorm:"column:provision_time"`
	DeployInterval   time.Duration `gorm:"column:deploy_interval"`
	LifetimeInterval time.Duration `gorm:"column:lifetime_interval"`

	TowerJobID  string `gorm:"column:tower_job_id"`
	TowerJobURL string `gorm:"column:tower_job_url"`
}

// TableName returns the GORM table name.
func (Provision) TableName() string { return "provisions" }

// LifecycleEntry is one append-only transition log row. Rows are immutable
// once written.
type LifecycleEntry struct {
	ID            int64     `gorm:"primaryKey;column:id"`
	ProvisionUUID string    `gorm:"column:provision_uuid;index:idx_lifecycle_uuid_at,priority:1;not null"`
	State         string    `gorm:"column:state;not null"`
	Executor      string    `gorm:"column:executor"`
	LoggedAt      time.Time `gorm:"column:logged_at;index:idx_lifecycle_uuid_at,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (LifecycleEntry) TableName() string { return "lifecycle_log" }

// CatalogItem is one catalog entry, keyed by the catalog item name.
type CatalogItem struct {
	ID          int64  `gorm:"primaryKey;column:id"`
	CatalogItem string `gorm:"column:catalog_item;uniqueIndex:catalog_items_unique_item;not null"`
	CatalogName string `gorm:"column:catalog_name"`
	ClassName   string `gorm:"column:class_name"`
	InfraType   string `gorm:"column:infra_type"`
}

// TableName returns the GORM table name.
func (CatalogItem) TableName() string { return "catalog_items" }

// Purpose is one free-text purpose with its derived reporting category.
type Purpose struct {
	ID       int64  `gorm:"primaryKey;column:id"`
	Purpose  string `gorm:"column:purpose;uniqueIndex:purpose_unique_purpose;not null"`
	Category string `gorm:"column:category"`
}

// TableName returns the GORM table name.
func (Purpose) TableName() string { return "purpose" }

// Manager is a resolved people manager, keyed by email.
type Manager struct {
	ID         int64  `gorm:"primaryKey;column:id"`
	Name       string `gorm:"column:name"`
	Email      string `gorm:"column:email;uniqueIndex:manager_unique_email;not null"`
	KerberosID string `gorm:"column:kerberos_id"`
}

// TableName returns the GORM table name.
func (Manager) TableName() string { return "manager" }

// Student is a requesting user, keyed by email.
type Student struct {
	ID             int64     `gorm:"primaryKey;column:id"`
	CompanyID      int       `gorm:"column:company_id"`
	Username       string    `gorm:"column:username"`
	Email          string    `gorm:"column:email;uniqueIndex:students_unique_email;not null"`
	FullName       string    `gorm:"column:full_name"`
	FirstName      string    `gorm:"column:first_name"`
	LastName       string    `gorm:"column:last_name"`
	Geo            string    `gorm:"column:geo"`
	Partner        string    `gorm:"column:partner"`
	CostCenter     *int      `gorm:"column:cost_center"`
	KerberosID     string    `gorm:"column:kerberos_id"`
	Manager        string    `gorm:"column:manager"`
	ManagerEmail   string    `gorm:"column:manager_email"`
	Title          string    `gorm:"column:title"`
	UserCategory   string    `gorm:"column:user_category"`
	CheckHeadcount bool      `gorm:"column:check_headcount;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (Student) TableName() string { return "students" }

// Opportunity mirrors a CRM opportunity, keyed by the external opportunity
// number.
type Opportunity struct {
	ID              int64      `gorm:"primaryKey;column:id"`
	OpportunityID   string     `gorm:"column:opportunity_id;index:idx_opportunity_crm_id"`
	Number          string     `gorm:"column:number;uniqueIndex:opportunities_unique_number;not null"`
	Name            string     `gorm:"column:opportunity_name"`
	AccountID       string     `gorm:"column:account_id"`
	AccountName     string     `gorm:"column:account_name"`
	Amount          float64    `gorm:"column:amount"`
	ExpectedRevenue float64    `gorm:"column:expected_revenue"`
	ClosedAt        string     `gorm:"column:closed_at"`
	IsClosed        bool       `gorm:"column:is_closed"`
	Stage           string     `gorm:"column:stage"`
	Type            string     `gorm:"column:type"`
	OwnerID         string     `gorm:"column:owner_id"`
	OwnerName       string     `gorm:"column:owner_name"`
	OwnerEmail      string     `gorm:"column:owner_email"`
	OwnerTitle      string     `gorm:"column:owner_title"`
	UpdatedAt       *time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (Opportunity) TableName() string { return "opportunities" }

// ChargebackManager is one roster entry of managers eligible to be billed
// for shared-account usage. The roster is maintained out of band.
type ChargebackManager struct {
	ID    int64  `gorm:"primaryKey;column:id"`
	Email string `gorm:"column:email;uniqueIndex:manager_chargeback_unique_email;not null"`
	Name  string `gorm:"column:name"`
}

// TableName returns the GORM table name.
func (ChargebackManager) TableName() string { return "manager_chargeback" }

// ClaimLog mirrors the raw claim payload and the derived provision variables
// for auditing, keyed by provision UUID plus claim identity.
type ClaimLog struct {
	ID                int64  `gorm:"primaryKey;column:id"`
	ProvisionUUID     string `gorm:"column:provision_uuid;uniqueIndex:claim_log_unique_claim,priority:1;not null"`
	ClaimName         string `gorm:"column:resource_claim_name;uniqueIndex:claim_log_unique_claim,priority:2"`
	ClaimNamespace    string `gorm:"column:resource_claim_namespace;uniqueIndex:claim_log_unique_claim,priority:3"`
	ClaimJSON         string `gorm:"column:resource_claim_json"`
	ProvisionVarsJSON string `gorm:"column:provision_vars_json"`
}

// TableName returns the GORM table name.
func (ClaimLog) TableName() string { return "resource_claim_log" }
