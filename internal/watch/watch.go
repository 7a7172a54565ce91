// Package watch subscribes to subject custom resources and feeds their
// lifecycle events to the processor, one at a time, in delivery order.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/dynamic/dynamicinformer"
	"k8s.io/client-go/tools/cache"

	"github.com/rhpds/provision-ledger/internal/event"
)

// DefaultSubjectResource is the lifecycle subject custom resource.
var DefaultSubjectResource = schema.GroupVersionResource{
	Group:    "anarchy.gpte.redhat.com",
	Version:  "v1",
	Resource: "anarchysubjects",
}

// Config tunes the watch.
type Config struct {
	Resource  schema.GroupVersionResource
	Namespace string
	Resync    time.Duration
	QueueSize int
}

// Handler consumes one event at a time.
type Handler interface {
	Process(ctx context.Context, ev event.Event) error
}

// Watcher runs a shared informer on the subject resource and dispatches
// extracted events serially. Serial dispatch keeps the per-uuid transition
// log ordered without row locking.
type Watcher struct {
	client  dynamic.Interface
	cfg     Config
	domains event.Domains
	handler Handler
	logger  *slog.Logger
	queue   chan event.Event
}

// New creates a Watcher.
func New(client dynamic.Interface, cfg Config, domains event.Domains, handler Handler, logger *slog.Logger) *Watcher {
	if cfg.Resource.Resource == "" {
		cfg.Resource = DefaultSubjectResource
	}
	if cfg.Resync == 0 {
		cfg.Resync = 10 * time.Minute
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		client:  client,
		cfg:     cfg,
		domains: domains,
		handler: handler,
		logger:  logger,
		queue:   make(chan event.Event, cfg.QueueSize),
	}
}

// Run blocks consuming events until ctx is canceled. Handler errors are
// logged and do not stop the watch; the next delivery of the same subject
// retries naturally.
func (w *Watcher) Run(ctx context.Context) error {
	factory := dynamicinformer.NewFilteredDynamicSharedInformerFactory(
		w.client, w.cfg.Resync, w.cfg.Namespace, nil)
	informer := factory.ForResource(w.cfg.Resource).Informer()

	_, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj any) { w.enqueue(ctx, obj, false) },
		UpdateFunc: func(_, obj any) { w.enqueue(ctx, obj, false) },
		DeleteFunc: func(obj any) { w.enqueue(ctx, obj, true) },
	})
	if err != nil {
		return fmt.Errorf("register subject handler: %w", err)
	}

	go informer.Run(ctx.Done())
	if !cache.WaitForCacheSync(ctx.Done(), informer.HasSynced) {
		return fmt.Errorf("subject informer cache never synced")
	}
	w.logger.Info("watching subjects",
		"resource", w.cfg.Resource.String(), "namespace", w.cfg.Namespace)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-w.queue:
			if err := w.handler.Process(ctx, ev); err != nil {
				w.logger.Error("event processing failed",
					"uuid", ev.Vars.UUID,
					"subject", ev.Vars.SubjectName,
					"error", err)
			}
		}
	}
}

func (w *Watcher) enqueue(ctx context.Context, obj any, deleted bool) {
	if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		obj = tombstone.Obj
	}
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		w.logger.Warn("watch delivered unexpected object", "type", fmt.Sprintf("%T", obj))
		return
	}
	vars, err := event.Extract(u, w.domains)
	if err != nil {
		w.logger.Warn("subject extraction failed", "subject", u.GetName(), "error", err)
		return
	}
	select {
	case w.queue <- event.Event{Vars: vars, Deleted: deleted}:
	case <-ctx.Done():
	}
}
