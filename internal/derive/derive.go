package derive

import (
	"strings"
	"time"

	"github.com/rhpds/provision-ledger/internal/event"
)

// JobInfo carries the extra variables fetched from the deployer job record.
type JobInfo struct {
	ExtraVars map[string]any
}

// Draft is the fully derived provision record, ready for persistence. Fields
// that can be absent upstream stay zero.
type Draft struct {
	UUID      string
	Requester string
	Notifier  bool

	CatalogName string // catalog display name, short form
	CatalogItem string // catalog item display name, short form
	ClassName   string
	Account     string
	Environment string
	Governor    string
	SubjectName string

	GUID        string // short guid assigned by the external platform
	BabylonGUID string

	Cloud             string
	CloudRegion       string
	Datasource        string
	EnvType           string
	SandboxAccount    string
	SandboxName       string
	AzureTenant       string
	AzureSubscription string
	PlatformURL       string

	Purpose          string
	OpportunityID    string
	ChargebackMethod string
	WorkshopUsers    int
	ServiceType      string

	CurrentState string
	DesiredState string

	ProvisionedAt  *time.Time
	JobStartedAt   *time.Time
	JobCompletedAt *time.Time
	ProvisionTime  float64 // minutes; live elapsed time while the job runs
	DeployInterval time.Duration

	TowerJobID  string
	TowerJobURL string
}

// Build derives a Draft from the event vars, the optionally fetched claim,
// and the optionally fetched job variables. It is pure: all clock reads use
// now, and no I/O happens here. Only a malformed governor is an error; every
// other absent or unparsable field falls back per the documented chains.
func Build(vars event.ResourceVars, claim *event.Claim, job *JobInfo, now time.Time) (*Draft, error) {
	parts, err := ParseGovernor(vars.Governor)
	if err != nil {
		return nil, err
	}

	extraVars := map[string]any{}
	if job != nil && job.ExtraVars != nil {
		extraVars = job.ExtraVars
	}

	d := &Draft{
		UUID:         vars.UUID,
		Governor:     vars.Governor,
		SubjectName:  vars.SubjectName,
		ClassName:    parts.ClassName,
		Account:      parts.Account,
		Environment:  parts.Environment,
		CurrentState: vars.CurrentState,
		DesiredState: vars.DesiredState,
		ServiceType:  "babylon",
		TowerJobID:   vars.ProvisionJob.DeployerJob,
		TowerJobURL:  vars.ProvisionJob.JobURL,
	}

	// Requester precedence: the claim fetched during processing is more
	// specific than the subject annotation; job variables are the last
	// resort.
	d.Requester = vars.Requester
	if claim != nil && claim.Requester != "" {
		d.Requester = claim.Requester
	}
	if d.Requester == "" {
		d.Requester = stringVar(extraVars, "requester_username")
	}

	// Catalog names: claim metadata wins, governor supplies the fallback.
	d.CatalogName = ShortCatalogName(parts.ShortName)
	d.CatalogItem = d.CatalogName
	if claim != nil {
		if claim.CatalogDisplayName != "" {
			d.CatalogName = ShortCatalogName(claim.CatalogDisplayName)
		}
		if claim.CatalogItemDisplayName != "" {
			d.CatalogItem = ShortCatalogName(claim.CatalogItemDisplayName)
		}
		d.OpportunityID = claim.SalesforceID
		if claim.ExternalPlatformURL != "" {
			d.Notifier = true
			d.PlatformURL = claim.ExternalPlatformURL
			if len(claim.Name) >= 4 {
				d.GUID = claim.Name[len(claim.Name)-4:]
			}
		}
	}

	d.Purpose = ""
	if claim != nil {
		d.Purpose = claim.Purpose
	}
	if d.Purpose == "" {
		d.Purpose = stringVar(extraVars, "purpose")
	}
	if d.Purpose == "" {
		d.Purpose = DefaultPurpose
	}

	d.BabylonGUID = stringVar(extraVars, "guid")
	if d.BabylonGUID == "" {
		d.BabylonGUID = vars.GUID
	}
	d.CloudRegion = stringVar(extraVars, "region")
	if d.CloudRegion == "" {
		d.CloudRegion = vars.CloudRegion
	}

	d.Datasource = NormalizeDatasource(stringVarDefault(extraVars, "platform", "BABYLON"))
	d.Cloud = NormalizeCloud(stringVarDefault(extraVars, "cloud_provider", "test"))
	d.EnvType = stringVarDefault(extraVars, "env_type", "tests")

	d.WorkshopUsers = intVar(extraVars, "user_count")
	if d.WorkshopUsers == 0 {
		d.WorkshopUsers = intVar(extraVars, "num_users")
	}
	if d.WorkshopUsers == 0 {
		d.WorkshopUsers = 1
	}

	d.AzureTenant = stringVar(vars.ProvisionData, "azure_subscription")
	d.AzureSubscription = stringVar(vars.ProvisionData, "azure_subscription")
	if d.Cloud == "azure" {
		d.SandboxName = stringVar(vars.ProvisionData, "sandbox_name")
	} else {
		d.SandboxAccount = vars.SandboxAccount
		d.SandboxName = vars.SandboxName
	}

	d.ChargebackMethod = ChargebackRegional
	if boolVar(extraVars, "agnosticd_open_environment") ||
		strings.Contains(d.CatalogItem, "Open Environment") {
		d.ChargebackMethod = ChargebackOpen
	}

	// Timing. A still-running job reports live elapsed minutes by using now
	// in place of the absent completion timestamp.
	start, serr := ParseTimestamp(vars.ProvisionJob.StartTimestamp)
	complete, cerr := ParseTimestamp(vars.ProvisionJob.CompleteTimestamp)
	if serr == nil && !start.IsZero() {
		d.JobStartedAt = &start
		d.ProvisionedAt = &start
		end := now.UTC()
		if cerr == nil && !complete.IsZero() {
			d.JobCompletedAt = &complete
			end = complete
		}
		d.DeployInterval = end.Sub(start)
		d.ProvisionTime = d.DeployInterval.Seconds() / 60.0
	}

	return d, nil
}

func stringVar(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func stringVarDefault(m map[string]any, key, fallback string) string {
	if s := stringVar(m, key); s != "" {
		return s
	}
	return fallback
}

func intVar(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func boolVar(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}
