package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	corev1listers "k8s.io/client-go/listers/core/v1"
	"k8s.io/client-go/tools/cache"
)

// RequesterAnnotation names the user who requested a namespace.
const RequesterAnnotation = "openshift.io/requester"

// NamespaceRegistry caches cluster namespaces so the processor can resolve
// a claim namespace to its requesting user without a per-event API call.
type NamespaceRegistry struct {
	factory informers.SharedInformerFactory
	lister  corev1listers.NamespaceLister
	logger  *slog.Logger
}

// NewNamespaceRegistry creates a registry over client.
func NewNamespaceRegistry(client kubernetes.Interface, logger *slog.Logger) *NamespaceRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	factory := informers.NewSharedInformerFactory(client, 10*time.Minute)
	return &NamespaceRegistry{
		factory: factory,
		lister:  factory.Core().V1().Namespaces().Lister(),
		logger:  logger,
	}
}

// Start runs the namespace informer and blocks until its cache is warm.
func (r *NamespaceRegistry) Start(ctx context.Context) error {
	informer := r.factory.Core().V1().Namespaces().Informer()
	r.factory.Start(ctx.Done())
	if !cache.WaitForCacheSync(ctx.Done(), informer.HasSynced) {
		return fmt.Errorf("namespace informer cache never synced")
	}
	r.logger.Info("namespace registry synced")
	return nil
}

// Requester returns the requesting user recorded on the namespace, or ""
// when the namespace is unknown or carries no requester annotation.
func (r *NamespaceRegistry) Requester(name string) string {
	ns, err := r.lister.Get(name)
	if err != nil {
		if !apierrors.IsNotFound(err) {
			r.logger.Warn("namespace lookup failed", "namespace", name, "error", err)
		}
		return ""
	}
	return ns.Annotations[RequesterAnnotation]
}
