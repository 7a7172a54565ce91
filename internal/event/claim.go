package event

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Claim is the subset of a resource claim the pipeline consumes, plus the raw
// object for the audit mirror.
type Claim struct {
	Name                   string
	Namespace              string
	Requester              string
	CatalogDisplayName     string
	CatalogItemDisplayName string
	SalesforceID           string
	Purpose                string
	ExternalPlatformURL    string
	Raw                    map[string]any
}

// ExtractClaim flattens a fetched resource claim. Display-name precedence is
// annotation, then the catalog item label; the caller supplies the
// governor-derived fallback when both are absent.
func ExtractClaim(obj *unstructured.Unstructured, d Domains) *Claim {
	if obj == nil {
		return nil
	}
	annotations := obj.GetAnnotations()
	labels := obj.GetLabels()

	c := &Claim{
		Name:                   obj.GetName(),
		Namespace:              obj.GetNamespace(),
		Requester:              annotations[d.Catalog+"/requester"],
		CatalogDisplayName:     annotations[d.Catalog+"/catalogDisplayName"],
		CatalogItemDisplayName: annotations[d.Catalog+"/catalogItemDisplayName"],
		SalesforceID:           annotations[d.Sales+"/salesforce-id"],
		Purpose:                annotations[d.Sales+"/purpose"],
		ExternalPlatformURL:    annotations[d.Catalog+"/externalPlatformUrl"],
		Raw:                    obj.Object,
	}

	if c.CatalogDisplayName == "" {
		c.CatalogDisplayName = labels[d.Catalog+"/catalogItemName"]
	}
	if c.CatalogItemDisplayName == "" {
		c.CatalogItemDisplayName = labels[d.Catalog+"/catalogItemName"]
	}
	return c
}
