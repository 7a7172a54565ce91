package clients

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// DefaultClaimResource is the broker's claim custom resource.
var DefaultClaimResource = schema.GroupVersionResource{
	Group:    "poolboy.gpte.redhat.com",
	Version:  "v1",
	Resource: "resourceclaims",
}

// ClaimReader fetches broker resource claims from the cluster.
type ClaimReader struct {
	client dynamic.Interface
	gvr    schema.GroupVersionResource
}

// NewClaimReader creates a claim reader over the given dynamic client.
func NewClaimReader(client dynamic.Interface, gvr schema.GroupVersionResource) *ClaimReader {
	if gvr.Resource == "" {
		gvr = DefaultClaimResource
	}
	return &ClaimReader{client: client, gvr: gvr}
}

// Get fetches one claim. Returns (nil, nil) when the claim is already gone,
// which is routine for events observed during teardown.
func (r *ClaimReader) Get(ctx context.Context, namespace, name string) (*unstructured.Unstructured, error) {
	obj, err := r.client.Resource(r.gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get claim %s/%s: %w", namespace, name, err)
	}
	return obj, nil
}
