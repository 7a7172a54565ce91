// Package event extracts the normalized variable set the reporting pipeline
// consumes from raw subject resources delivered by the platform watch.
package event

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Domains holds the annotation/label domains used on subject and claim
// resources. All keys consumed from resource metadata are built from these.
type Domains struct {
	Subject string // custom resource group of the subject CR
	Catalog string // catalog metadata annotations (requester, display names)
	Broker  string // claim broker annotations (claim linkage, handle uid)
	Sales   string // sales/purpose annotations
}

// DefaultDomains returns the annotation domains used in production.
func DefaultDomains() Domains {
	return Domains{
		Subject: "anarchy.gpte.redhat.com",
		Catalog: "babylon.gpte.redhat.com",
		Broker:  "poolboy.gpte.redhat.com",
		Sales:   "pfe.redhat.com",
	}
}

// ProvisionJob is the deployer job reference embedded in the subject status.
type ProvisionJob struct {
	DeployerJob       string
	JobURL            string
	GUID              string
	Region            string
	StartTimestamp    string
	CompleteTimestamp string
}

// ResourceVars is the flattened view of a subject resource. Every field is
// optional upstream; absent values are zero. The extraction rules (which
// source wins when several carry the same datum) live here and nowhere else.
type ResourceVars struct {
	CurrentState   string
	DesiredState   string
	UUID           string
	Requester      string
	RequesterEmail string
	SubjectName    string
	Governor       string
	ClaimName      string
	ClaimNamespace string

	GUID           string
	CloudRegion    string
	SandboxAccount string
	SandboxName    string

	JobVars       map[string]any
	ProvisionData map[string]any
	ProvisionJob  ProvisionJob
}

// Event is one watch delivery: the extracted vars plus the delivery type.
type Event struct {
	Vars    ResourceVars
	Deleted bool
}

// ServiceAccountRequester is recorded when no human requester can be derived,
// signifying the event originated from the environment broker itself.
const ServiceAccountRequester = "poolboy"

// claimNamespacePrefix is stripped from claim namespaces when deriving a
// requester from the namespace name.
const claimNamespacePrefix = "user-"

// RequesterFromNamespace derives a requester login from a claim namespace
// name: "user-jane-doe" becomes "jane.doe". Returns "" when the namespace
// does not follow the user-namespace convention.
func RequesterFromNamespace(namespace string) string {
	if !strings.HasPrefix(namespace, claimNamespacePrefix) {
		return ""
	}
	name := strings.TrimPrefix(namespace, claimNamespacePrefix)
	return strings.ReplaceAll(name, "-", ".")
}

// Extract flattens a subject resource into ResourceVars. The requester
// fallback chain is: explicit requester annotation, then the broker's
// requester annotation, then a login derived from the claim namespace, then
// the broker service account when no claim namespace exists or the governor
// is an empty-config placeholder.
func Extract(obj *unstructured.Unstructured, d Domains) (ResourceVars, error) {
	if obj == nil {
		return ResourceVars{}, fmt.Errorf("extract resource vars: nil object")
	}

	spec, _, _ := unstructured.NestedMap(obj.Object, "spec")
	vars, _ := spec["vars"].(map[string]any)
	jobVars, _ := vars["job_vars"].(map[string]any)
	provisionData, _ := vars["provision_data"].(map[string]any)
	annotations := obj.GetAnnotations()

	governor, _ := spec["governor"].(string)

	rv := ResourceVars{
		CurrentState:   asString(vars["current_state"]),
		DesiredState:   asString(vars["desired_state"]),
		SubjectName:    obj.GetName(),
		Governor:       governor,
		ClaimName:      annotations[d.Broker+"/resource-claim-name"],
		ClaimNamespace: annotations[d.Broker+"/resource-claim-namespace"],
		RequesterEmail: annotations[d.Catalog+"/requester-email"],
		JobVars:        jobVars,
		ProvisionData:  provisionData,
	}

	// The provisioning identifier prefers the job-supplied uuid and falls
	// back to the broker's resource handle uid.
	rv.UUID = asString(jobVars["uuid"])
	if rv.UUID == "" {
		rv.UUID = annotations[d.Broker+"/resource-handle-uid"]
	}

	status, _, _ := unstructured.NestedMap(obj.Object, "status")
	towerJobs, _ := status["towerJobs"].(map[string]any)
	provisionJob, _ := towerJobs["provision"].(map[string]any)
	rv.ProvisionJob = ProvisionJob{
		DeployerJob:       asString(provisionJob["deployerJob"]),
		JobURL:            asString(provisionJob["towerJobURL"]),
		GUID:              asString(provisionJob["guid"]),
		Region:            asString(provisionJob["region"]),
		StartTimestamp:    asString(provisionJob["startTimestamp"]),
		CompleteTimestamp: asString(provisionJob["completeTimestamp"]),
	}

	if rv.ProvisionJob.GUID == "" {
		rv.ProvisionJob.GUID = asString(jobVars["guid"])
	}
	rv.GUID = rv.ProvisionJob.GUID
	rv.CloudRegion = rv.ProvisionJob.Region
	if rv.CloudRegion == "" {
		rv.CloudRegion = asString(jobVars["region"])
	}

	rv.SandboxAccount = asString(jobVars["sandbox_account"])
	if rv.SandboxAccount == "" {
		rv.SandboxAccount = asString(provisionData["ibm_sandbox_account"])
	}
	rv.SandboxName = asString(jobVars["sandbox_name"])
	if rv.SandboxName == "" {
		rv.SandboxName = asString(provisionData["ibm_sandbox_name"])
	}

	rv.Requester = annotations[d.Catalog+"/requester"]
	if rv.Requester == "" {
		rv.Requester = annotations[d.Broker+"/resource-requester-user"]
	}
	if rv.Requester == "" {
		rv.Requester = RequesterFromNamespace(rv.ClaimNamespace)
	}
	if rv.Requester == "" && strings.Contains(governor, "empty-config") {
		rv.Requester = ServiceAccountRequester
	}
	if rv.ClaimNamespace == "" {
		// Without a claim namespace the environment was provisioned directly
		// by the broker, not requested by a user.
		rv.Requester = ServiceAccountRequester
	}

	return rv, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
