// Package processor mirrors classified lifecycle events into the reporting
// store, coordinating claim fetches, job lookups, enrichment, and the entity
// upserts.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/rhpds/provision-ledger/internal/clients"
	"github.com/rhpds/provision-ledger/internal/derive"
	"github.com/rhpds/provision-ledger/internal/enrich"
	"github.com/rhpds/provision-ledger/internal/event"
	"github.com/rhpds/provision-ledger/internal/lifecycle"
	"github.com/rhpds/provision-ledger/internal/metrics"
	"github.com/rhpds/provision-ledger/internal/store"
)

// ClaimFetcher reads resource claims from the cluster.
type ClaimFetcher interface {
	Get(ctx context.Context, namespace, name string) (*unstructured.Unstructured, error)
}

// JobFetcher reads deployer jobs from the automation controller.
type JobFetcher interface {
	GetJob(ctx context.Context, jobID string) (*clients.JobRecord, error)
}

// OpportunityFetcher resolves sales opportunities in the CRM.
type OpportunityFetcher interface {
	LookupOpportunity(ctx context.Context, ref string) (*clients.CRMOpportunity, error)
}

// Enricher resolves requester identity and attribution.
type Enricher interface {
	Resolve(ctx context.Context, username, email string, notifier bool) (*enrich.Result, error)
}

// NamespaceResolver maps a namespace to its requesting user.
type NamespaceResolver interface {
	Requester(namespace string) string
}

// Processor runs the mirroring pipeline for one event at a time. Claim,
// deployer-job, and directory lookup failures fail the event so redelivery
// retries it; a CRM outage degrades to the previously mirrored opportunity.
type Processor struct {
	stores     *store.Stores
	claims     ClaimFetcher
	jobs       JobFetcher
	crm        OpportunityFetcher
	enricher   Enricher
	namespaces NamespaceResolver
	domains    event.Domains
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Processor. claims, jobs, crm, enricher, and namespaces may
// each be nil when the corresponding integration is not configured.
func New(stores *store.Stores, claims ClaimFetcher, jobs JobFetcher, crm OpportunityFetcher, enricher Enricher, namespaces NamespaceResolver, domains event.Domains, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		stores:     stores,
		claims:     claims,
		jobs:       jobs,
		crm:        crm,
		enricher:   enricher,
		namespaces: namespaces,
		domains:    domains,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Process handles one delivered event.
func (p *Processor) Process(ctx context.Context, ev event.Event) error {
	cls := lifecycle.Classify(ev)
	p.metrics.EventsObserved.WithLabelValues(string(cls.CurrentState)).Inc()

	switch cls.Decision {
	case lifecycle.DecisionIgnore, lifecycle.DecisionSteady:
		p.metrics.EventsIgnored.Inc()
		p.logger.Debug("event skipped",
			"uuid", cls.UUID,
			"current_state", cls.CurrentState,
			"desired_state", cls.DesiredState)
		return nil
	case lifecycle.DecisionRetire:
		if err := p.retire(ctx, cls); err != nil {
			p.metrics.EventsFailed.Inc()
			return err
		}
		return nil
	}

	start := p.now()
	if err := p.mirror(ctx, ev, cls); err != nil {
		p.metrics.EventsFailed.Inc()
		return err
	}
	p.metrics.ProcessSeconds.Observe(p.now().Sub(start).Seconds())
	p.metrics.EventsProcessed.Inc()
	return nil
}

// retire terminates a lifecycle: the retirement timestamp is set once and a
// terminal destroy-completed transition is logged, which also records the
// environment's total lifetime.
func (p *Processor) retire(ctx context.Context, cls lifecycle.Classification) error {
	if cls.UUID == "" {
		return fmt.Errorf("retire event without uuid")
	}
	if err := p.stores.Provisions.Retire(ctx, cls.UUID, p.now()); err != nil {
		return err
	}
	if err := p.stores.Lifecycle.RecordTransition(ctx, cls.UUID, lifecycle.StateDestroyCompleted, cls.Requester); err != nil {
		return err
	}
	p.metrics.Retirements.Inc()
	p.logger.Info("provision retired", "uuid", cls.UUID)
	return nil
}

func (p *Processor) mirror(ctx context.Context, ev event.Event, cls lifecycle.Classification) error {
	vars := ev.Vars
	if vars.UUID == "" {
		return fmt.Errorf("event for %s has no provisioning uuid", vars.SubjectName)
	}

	// The namespace's own requester annotation is more reliable than the
	// login derived by munging the namespace name.
	if p.namespaces != nil && vars.ClaimNamespace != "" &&
		vars.Requester == event.RequesterFromNamespace(vars.ClaimNamespace) {
		if r := p.namespaces.Requester(vars.ClaimNamespace); r != "" {
			vars.Requester = r
		}
	}

	claim, err := p.fetchClaim(ctx, vars)
	if err != nil {
		return err
	}
	job, err := p.fetchJob(ctx, vars)
	if err != nil {
		return err
	}

	draft, err := derive.Build(vars, claim, job, p.now())
	if err != nil {
		return fmt.Errorf("derive provision %s: %w", vars.UUID, err)
	}

	catalogID, err := p.stores.Catalog.Upsert(ctx, &store.CatalogItem{
		CatalogItem: draft.CatalogItem,
		CatalogName: draft.CatalogName,
		ClassName:   draft.ClassName,
		InfraType:   derive.InfraType(draft.ClassName, draft.Account),
	})
	if err != nil {
		return err
	}

	purposeID, err := p.stores.Purposes.Upsert(ctx, &store.Purpose{
		Purpose:  draft.Purpose,
		Category: derive.CategorizePurpose(draft.Purpose),
	})
	if err != nil {
		return err
	}

	opportunityID, err := p.resolveOpportunity(ctx, draft.OpportunityID)
	if err != nil {
		return err
	}

	attribution, err := p.resolveRequester(ctx, draft.Requester, vars.RequesterEmail, draft.Notifier)
	if err != nil {
		return err
	}

	prov := draftToProvision(draft)
	prov.CatalogID = &catalogID
	prov.PurposeID = &purposeID
	prov.OpportunityID = opportunityID
	if attribution != nil {
		prov.StudentID = attribution.StudentID
		prov.ManagerID = attribution.ManagerID
		prov.ManagerChargebackID = attribution.ManagerChargebackID
		prov.CostCenter = attribution.CostCenter
		prov.StudentGeo = attribution.Geo
	}

	if _, err := p.stores.Provisions.Upsert(ctx, prov); err != nil {
		return err
	}
	prior, err := p.stores.Lifecycle.LastState(ctx, draft.UUID)
	if err != nil {
		return err
	}
	if result, ok := provisionResult(cls.CurrentState, prior); ok {
		if err := p.stores.Provisions.UpdateResult(ctx, draft.UUID, result); err != nil {
			return err
		}
	}

	if err := p.stores.ClaimLog.SaveProvisionVars(ctx, draft.UUID, vars.ClaimName, vars.ClaimNamespace, draft); err != nil {
		return err
	}

	if err := p.stores.Lifecycle.RecordTransition(ctx, draft.UUID, cls.CurrentState, draft.Requester); err != nil {
		return err
	}
	if cls.CurrentState == lifecycle.StateProvision {
		if err := p.stores.Lifecycle.RecordTransition(ctx, draft.UUID, lifecycle.StateProvisionCompleted, draft.Requester); err != nil {
			return err
		}
	}

	p.logger.Info("provision mirrored",
		"uuid", draft.UUID,
		"state", cls.CurrentState,
		"catalog_item", draft.CatalogItem,
		"requester", draft.Requester)
	return nil
}

// fetchClaim retrieves and mirrors the claim named by the event. A claim
// already deleted from the cluster degrades to nil; an unreachable API
// server fails the event so redelivery retries it.
func (p *Processor) fetchClaim(ctx context.Context, vars event.ResourceVars) (*event.Claim, error) {
	if p.claims == nil || vars.ClaimName == "" || vars.ClaimNamespace == "" {
		return nil, nil
	}
	obj, err := p.claims.Get(ctx, vars.ClaimNamespace, vars.ClaimName)
	if err != nil {
		p.metrics.LookupFailures.WithLabelValues("claims").Inc()
		return nil, fmt.Errorf("fetch claim %s/%s: %w", vars.ClaimNamespace, vars.ClaimName, err)
	}
	if obj == nil {
		return nil, nil
	}
	claim := event.ExtractClaim(obj, p.domains)
	if err := p.stores.ClaimLog.SaveClaim(ctx, vars.UUID, claim.Name, claim.Namespace, claim.Raw); err != nil {
		return nil, err
	}
	return claim, nil
}

// fetchJob retrieves the deployer job record. A job the controller has
// already purged degrades to nil; auth or network failure fails the event.
func (p *Processor) fetchJob(ctx context.Context, vars event.ResourceVars) (*derive.JobInfo, error) {
	if p.jobs == nil || vars.ProvisionJob.DeployerJob == "" {
		return nil, nil
	}
	rec, err := p.jobs.GetJob(ctx, vars.ProvisionJob.DeployerJob)
	if err != nil {
		p.metrics.LookupFailures.WithLabelValues("awx").Inc()
		return nil, fmt.Errorf("fetch deployer job %s: %w", vars.ProvisionJob.DeployerJob, err)
	}
	if rec == nil {
		return nil, nil
	}
	return &derive.JobInfo{ExtraVars: rec.ExtraVars}, nil
}

// resolveOpportunity mirrors the CRM opportunity and returns its surrogate
// id. When the CRM cannot resolve the reference, a previously mirrored row
// still counts.
func (p *Processor) resolveOpportunity(ctx context.Context, ref string) (*int64, error) {
	if ref == "" {
		return nil, nil
	}
	if p.crm != nil {
		opp, err := p.crm.LookupOpportunity(ctx, ref)
		if err != nil {
			p.metrics.LookupFailures.WithLabelValues("crm").Inc()
			p.logger.Warn("opportunity lookup failed", "opportunity", ref, "error", err)
		} else if opp != nil {
			id, err := p.stores.Opportunities.Upsert(ctx, crmToOpportunity(opp, p.now()))
			if err != nil {
				return nil, err
			}
			return &id, nil
		}
	}
	existing, err := p.stores.Opportunities.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	return &existing.ID, nil
}

// resolveRequester enriches the requester. Directory and store failures fail
// the event so redelivery retries it with stored attribution intact.
func (p *Processor) resolveRequester(ctx context.Context, username, email string, notifier bool) (*enrich.Result, error) {
	if p.enricher == nil {
		return nil, nil
	}
	result, err := p.enricher.Resolve(ctx, username, email, notifier)
	if err != nil {
		p.metrics.LookupFailures.WithLabelValues("directory").Inc()
		return nil, fmt.Errorf("enrich requester %s: %w", username, err)
	}
	return result, nil
}

// provisionResult maps a lifecycle state onto the provision result
// vocabulary. A failure only counts against the provision result when the
// action logged before it was part of the provision phase.
func provisionResult(s lifecycle.State, prior lifecycle.State) (string, bool) {
	switch {
	case s == lifecycle.StateProvisioning:
		return store.ResultInstalling, true
	case s == lifecycle.StateProvision:
		return store.ResultSuccess, true
	case s.IsFailure() && strings.HasPrefix(string(prior), "provision"):
		return store.ResultFailure, true
	}
	return "", false
}

func draftToProvision(d *derive.Draft) *store.Provision {
	return &store.Provision{
		UUID:              d.UUID,
		GUID:              d.GUID,
		BabylonGUID:       d.BabylonGUID,
		SubjectName:       d.SubjectName,
		Purpose:           d.Purpose,
		Opportunity:       d.OpportunityID,
		Cloud:             d.Cloud,
		CloudRegion:       d.CloudRegion,
		Account:           d.Account,
		Environment:       d.Environment,
		ClassName:         d.ClassName,
		Datasource:        d.Datasource,
		EnvType:           d.EnvType,
		SandboxAccount:    d.SandboxAccount,
		SandboxName:       d.SandboxName,
		AzureTenant:       d.AzureTenant,
		AzureSubscription: d.AzureSubscription,
		PlatformURL:       d.PlatformURL,
		ChargebackMethod:  d.ChargebackMethod,
		WorkshopUsers:     d.WorkshopUsers,
		ServiceType:       d.ServiceType,
		ProvisionedAt:     d.ProvisionedAt,
		ProvisionTime:     d.ProvisionTime,
		DeployInterval:    d.DeployInterval,
		TowerJobID:        d.TowerJobID,
		TowerJobURL:       d.TowerJobURL,
	}
}

func crmToOpportunity(opp *clients.CRMOpportunity, now time.Time) *store.Opportunity {
	number := opp.Number
	if number == "" {
		number = opp.ID
	}
	updated := now.UTC()
	return &store.Opportunity{
		OpportunityID:   opp.ID,
		Number:          number,
		Name:            opp.Name,
		AccountID:       opp.AccountID,
		AccountName:     opp.AccountName,
		Amount:          opp.Amount,
		ExpectedRevenue: opp.ExpectedRevenue,
		ClosedAt:        opp.CloseDate,
		IsClosed:        opp.IsClosed,
		Stage:           opp.Stage,
		Type:            opp.Type,
		OwnerID:         opp.OwnerID,
		OwnerName:       opp.OwnerName,
		OwnerEmail:      opp.OwnerEmail,
		OwnerTitle:      opp.OwnerTitle,
		UpdatedAt:       &updated,
	}
}
