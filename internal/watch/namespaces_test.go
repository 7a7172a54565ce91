package watch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestNamespaceRegistryResolvesRequester(t *testing.T) {
	client := fake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{
			Name:        "user-jane-doe",
			Annotations: map[string]string{RequesterAnnotation: "jdoe"},
		}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{
			Name: "unannotated",
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewNamespaceRegistry(client, nil)
	require.NoError(t, registry.Start(ctx))

	assert.Equal(t, "jdoe", registry.Requester("user-jane-doe"))
	assert.Empty(t, registry.Requester("unannotated"))
	assert.Empty(t, registry.Requester("no-such-namespace"))
}
