// Package ha elects one controller replica to own the watch. Lifecycle
// events must be mirrored exactly once, so only the leader runs the
// informer and the processor.
package ha

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
)

// Config holds the leader election settings.
type Config struct {
	// Enabled gates election. When false the replica acts as the sole
	// leader, which suits single-replica deployments and local runs.
	Enabled bool

	LeaseName      string
	LeaseNamespace string
	LeaseDuration  time.Duration
	RenewDeadline  time.Duration
	RetryPeriod    time.Duration

	// Identity uniquely names this replica, typically the pod name.
	Identity string
}

// DefaultConfig returns the election defaults.
func DefaultConfig() *Config {
	ns := os.Getenv("POD_NAMESPACE")
	if ns == "" {
		ns = "provision-ledger"
	}
	return &Config{
		Enabled:        false,
		LeaseName:      "provision-ledger-leader",
		LeaseNamespace: ns,
		LeaseDuration:  15 * time.Second,
		RenewDeadline:  10 * time.Second,
		RetryPeriod:    2 * time.Second,
		Identity:       defaultIdentity(),
	}
}

// ConfigFromEnv reads the election settings from the environment, falling
// back to defaults for any unset variable.
//
// Environment variables:
//   - LEDGER_LEADER_ELECTION_ENABLED: "true" or "false" (default: "false")
//   - LEDGER_LEADER_LEASE_NAME: Lease resource name (default: "provision-ledger-leader")
//   - LEDGER_LEADER_LEASE_NAMESPACE: Lease namespace (default from POD_NAMESPACE)
//   - LEDGER_LEADER_LEASE_DURATION: seconds (default: 15)
//   - LEDGER_LEADER_RENEW_DEADLINE: seconds (default: 10)
//   - LEDGER_LEADER_RETRY_PERIOD: seconds (default: 2)
//   - POD_NAME: replica identity for leader election
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("LEDGER_LEADER_ELECTION_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("LEDGER_LEADER_LEASE_NAME"); v != "" {
		cfg.LeaseName = v
	}
	if v := os.Getenv("LEDGER_LEADER_LEASE_NAMESPACE"); v != "" {
		cfg.LeaseNamespace = v
	}
	if v := os.Getenv("LEDGER_LEADER_LEASE_DURATION"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.LeaseDuration = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("LEDGER_LEADER_RENEW_DEADLINE"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RenewDeadline = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("LEDGER_LEADER_RETRY_PERIOD"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RetryPeriod = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("POD_NAME"); v != "" {
		cfg.Identity = v
	}

	return cfg
}

func defaultIdentity() string {
	if v := os.Getenv("POD_NAME"); v != "" {
		return v
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// LeaderElector runs Kubernetes Lease-based leader election for the watch
// loop.
type LeaderElector struct {
	config   *Config
	client   kubernetes.Interface
	isLeader bool
	mu       sync.RWMutex
	logger   *slog.Logger
	onStart  func(ctx context.Context)
	onStop   func()
}

// NewLeaderElector creates a LeaderElector.
func NewLeaderElector(cfg *Config, client kubernetes.Interface, logger *slog.Logger) *LeaderElector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderElector{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// OnStartLeading registers the callback invoked on becoming leader. The
// provided context is cancelled when leadership is lost.
func (le *LeaderElector) OnStartLeading(fn func(ctx context.Context)) {
	le.onStart = fn
}

// OnStopLeading registers the callback invoked on losing leadership.
func (le *LeaderElector) OnStopLeading(fn func()) {
	le.onStop = fn
}

// IsLeader reports whether this replica currently holds the lease.
func (le *LeaderElector) IsLeader() bool {
	le.mu.RLock()
	defer le.mu.RUnlock()
	return le.isLeader
}

// Run blocks on the election until ctx is cancelled. When election is
// disabled it invokes the leader callback immediately and waits.
func (le *LeaderElector) Run(ctx context.Context) {
	if !le.config.Enabled {
		le.mu.Lock()
		le.isLeader = true
		le.mu.Unlock()
		le.logger.Info("leader election disabled, acting as sole leader")
		if le.onStart != nil {
			le.onStart(ctx)
		}
		<-ctx.Done()
		return
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      le.config.LeaseName,
			Namespace: le.config.LeaseNamespace,
		},
		Client: le.client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: le.config.Identity,
		},
	}

	le.logger.Info("starting leader election",
		"identity", le.config.Identity,
		"lease", le.config.LeaseName,
		"namespace", le.config.LeaseNamespace,
	)

	leaderelection.RunOrDie(ctx, leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   le.config.LeaseDuration,
		RenewDeadline:   le.config.RenewDeadline,
		RetryPeriod:     le.config.RetryPeriod,
		ReleaseOnCancel: true,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				le.mu.Lock()
				le.isLeader = true
				le.mu.Unlock()
				le.logger.Info("elected as leader", "identity", le.config.Identity)
				if le.onStart != nil {
					le.onStart(ctx)
				}
			},
			OnStoppedLeading: func() {
				le.mu.Lock()
				le.isLeader = false
				le.mu.Unlock()
				le.logger.Info("lost leadership", "identity", le.config.Identity)
				if le.onStop != nil {
					le.onStop()
				}
			},
			OnNewLeader: func(identity string) {
				if identity != le.config.Identity {
					le.logger.Info("new leader elected", "leader", identity)
				}
			},
		},
	})
}
