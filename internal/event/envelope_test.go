package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func subjectFixture(annotations map[string]any, vars map[string]any) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "anarchy.gpte.redhat.com/v1",
		"kind":       "AnarchySubject",
		"metadata": map[string]any{
			"name":        "ocp4-cluster-abcde",
			"namespace":   "anarchy-operator",
			"annotations": annotations,
		},
		"spec": map[string]any{
			"governor": "gpte.ocp4-cluster.prod",
			"vars":     vars,
		},
		"status": map[string]any{
			"towerJobs": map[string]any{
				"provision": map[string]any{
					"deployerJob":       "12345",
					"towerJobURL":       "https://tower.example.com/#/jobs/12345",
					"guid":              "abcde",
					"region":            "us-east-1",
					"startTimestamp":    "2026-03-01T08:00:00Z",
					"completeTimestamp": "2026-03-01T08:45:00Z",
				},
			},
		},
	}}
}

func TestRequesterFromNamespace(t *testing.T) {
	assert.Equal(t, "jane.doe", RequesterFromNamespace("user-jane-doe"))
	assert.Equal(t, "jdoe", RequesterFromNamespace("user-jdoe"))
	assert.Empty(t, RequesterFromNamespace("anarchy-operator"))
	assert.Empty(t, RequesterFromNamespace(""))
}

func TestExtractFlattensSubject(t *testing.T) {
	obj := subjectFixture(map[string]any{
		"poolboy.gpte.redhat.com/resource-claim-name":      "claim-1",
		"poolboy.gpte.redhat.com/resource-claim-namespace": "user-jane-doe",
		"babylon.gpte.redhat.com/requester":                "jane.doe",
		"babylon.gpte.redhat.com/requester-email":          "jane.doe@redhat.com",
	}, map[string]any{
		"current_state": "provisioning",
		"desired_state": "started",
		"job_vars": map[string]any{
			"uuid": "11111111-2222-3333-4444-555555555555",
		},
	})

	vars, err := Extract(obj, DefaultDomains())
	require.NoError(t, err)

	assert.Equal(t, "provisioning", vars.CurrentState)
	assert.Equal(t, "started", vars.DesiredState)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", vars.UUID)
	assert.Equal(t, "jane.doe", vars.Requester)
	assert.Equal(t, "jane.doe@redhat.com", vars.RequesterEmail)
	assert.Equal(t, "claim-1", vars.ClaimName)
	assert.Equal(t, "user-jane-doe", vars.ClaimNamespace)
	assert.Equal(t, "ocp4-cluster-abcde", vars.SubjectName)
	assert.Equal(t, "gpte.ocp4-cluster.prod", vars.Governor)
	assert.Equal(t, "12345", vars.ProvisionJob.DeployerJob)
	assert.Equal(t, "abcde", vars.GUID)
	assert.Equal(t, "us-east-1", vars.CloudRegion)
}

func TestExtractUUIDFallsBackToHandleUID(t *testing.T) {
	obj := subjectFixture(map[string]any{
		"poolboy.gpte.redhat.com/resource-claim-namespace": "user-jane-doe",
		"poolboy.gpte.redhat.com/resource-handle-uid":      "66666666-7777-8888-9999-000000000000",
	}, map[string]any{
		"current_state": "provisioning",
	})

	vars, err := Extract(obj, DefaultDomains())
	require.NoError(t, err)
	assert.Equal(t, "66666666-7777-8888-9999-000000000000", vars.UUID)
}

func TestExtractRequesterFallbackChain(t *testing.T) {
	// Broker annotation beats namespace derivation.
	obj := subjectFixture(map[string]any{
		"poolboy.gpte.redhat.com/resource-claim-namespace": "user-jane-doe",
		"poolboy.gpte.redhat.com/resource-requester-user":  "broker.user",
	}, map[string]any{"current_state": "provisioning"})
	vars, err := Extract(obj, DefaultDomains())
	require.NoError(t, err)
	assert.Equal(t, "broker.user", vars.Requester)

	// Namespace derivation when no annotation carries a requester.
	obj = subjectFixture(map[string]any{
		"poolboy.gpte.redhat.com/resource-claim-namespace": "user-jane-doe",
	}, map[string]any{"current_state": "provisioning"})
	vars, err = Extract(obj, DefaultDomains())
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", vars.Requester)
}

func TestExtractServiceAccountWithoutClaimNamespace(t *testing.T) {
	obj := subjectFixture(map[string]any{}, map[string]any{
		"current_state": "provisioning",
	})

	vars, err := Extract(obj, DefaultDomains())
	require.NoError(t, err)
	assert.Equal(t, ServiceAccountRequester, vars.Requester)
}

func TestExtractServiceAccountForEmptyConfigGovernor(t *testing.T) {
	obj := subjectFixture(map[string]any{
		"poolboy.gpte.redhat.com/resource-claim-namespace": "pool-namespace",
	}, map[string]any{"current_state": "provisioning"})
	require.NoError(t, unstructured.SetNestedField(obj.Object, "gpte.empty-config.prod", "spec", "governor"))

	vars, err := Extract(obj, DefaultDomains())
	require.NoError(t, err)
	assert.Equal(t, ServiceAccountRequester, vars.Requester)
}

func TestExtractSandboxFallsBackToProvisionData(t *testing.T) {
	obj := subjectFixture(map[string]any{
		"poolboy.gpte.redhat.com/resource-claim-namespace": "user-jane-doe",
	}, map[string]any{
		"current_state": "provisioning",
		"provision_data": map[string]any{
			"ibm_sandbox_account": "ibm-acct-1",
			"ibm_sandbox_name":    "ibm-sb-1",
		},
	})

	vars, err := Extract(obj, DefaultDomains())
	require.NoError(t, err)
	assert.Equal(t, "ibm-acct-1", vars.SandboxAccount)
	assert.Equal(t, "ibm-sb-1", vars.SandboxName)
}

func TestExtractNilObject(t *testing.T) {
	_, err := Extract(nil, DefaultDomains())
	assert.Error(t, err)
}

func TestExtractClaimLabelFallback(t *testing.T) {
	obj := &unstructured.Unstructured{Object: map[string]any{
		"metadata": map[string]any{
			"name":      "claim-1",
			"namespace": "user-jane-doe",
			"labels": map[string]any{
				"babylon.gpte.redhat.com/catalogItemName": "ocp4-cluster",
			},
			"annotations": map[string]any{
				"pfe.redhat.com/salesforce-id": "OPP-1234",
				"pfe.redhat.com/purpose":       "Training - Workshop",
			},
		},
	}}

	claim := ExtractClaim(obj, DefaultDomains())
	require.NotNil(t, claim)
	assert.Equal(t, "ocp4-cluster", claim.CatalogDisplayName)
	assert.Equal(t, "ocp4-cluster", claim.CatalogItemDisplayName)
	assert.Equal(t, "OPP-1234", claim.SalesforceID)
	assert.Equal(t, "Training - Workshop", claim.Purpose)
	assert.Equal(t, "claim-1", claim.Name)
}
