// Package main provides the reporting operator entry point. The operator
// watches provisioned-environment subjects on the cluster and mirrors their
// lifecycle into the reporting database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/rhpds/provision-ledger/internal/clients"
	"github.com/rhpds/provision-ledger/internal/config"
	"github.com/rhpds/provision-ledger/internal/enrich"
	"github.com/rhpds/provision-ledger/internal/ha"
	"github.com/rhpds/provision-ledger/internal/metrics"
	"github.com/rhpds/provision-ledger/internal/processor"
	"github.com/rhpds/provision-ledger/internal/server"
	"github.com/rhpds/provision-ledger/internal/store"
	"github.com/rhpds/provision-ledger/internal/watch"
)

var (
	version = "dev"

	listenAddr string
	dbType     string
	dbDSN      string
	kubeconfig string
	namespace  string
)

var rootCmd = &cobra.Command{
	Use:     "reporting-operator",
	Short:   "Mirrors provisioned-environment lifecycles into the reporting database",
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			glog.Fatalf("reporting operator failed: %v", err)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "Address for health and metrics (overrides LEDGER_HTTP_ADDR)")
	rootCmd.Flags().StringVar(&dbType, "db-type", "", "Database type, postgres or mysql (overrides LEDGER_DB_TYPE)")
	rootCmd.Flags().StringVar(&dbDSN, "db-dsn", "", "Database connection string (overrides LEDGER_DB_DSN)")
	rootCmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig; empty uses in-cluster credentials")
	rootCmd.Flags().StringVar(&namespace, "namespace", "", "Namespace to watch; empty watches the whole cluster")
}

func main() {
	_ = flag.Set("logtostderr", "true")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.FromEnv()
	if listenAddr != "" {
		cfg.HTTPAddr = listenAddr
	}
	if dbType != "" {
		cfg.Database.Type = dbType
	}
	if dbDSN != "" {
		cfg.Database.DSN = dbDSN
	}
	if kubeconfig != "" {
		cfg.Kubeconfig = kubeconfig
	}
	if namespace != "" {
		cfg.WatchNamespace = namespace
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting reporting operator",
		"version", version,
		"listen", cfg.HTTPAddr,
		"db_type", cfg.Database.Type,
		"watch_namespace", cfg.WatchNamespace,
	)

	db, err := store.Open(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		return err
	}
	stores := store.NewStores(db)
	if err := stores.AutoMigrate(db); err != nil {
		return err
	}

	restCfg, err := kubeRestConfig(cfg.Kubeconfig)
	if err != nil {
		return err
	}
	kubeClient, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return err
	}
	dynClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return err
	}

	var corporate, federated enrich.Directory
	if cfg.CorporateLDAP.URL != "" {
		corporate = clients.NewCorporateDirectory(cfg.CorporateLDAP)
	}
	if cfg.FederatedLDAP.URL != "" {
		federated = clients.NewFederatedDirectory(cfg.FederatedLDAP)
	}
	enricher := enrich.NewCoordinator(corporate, federated,
		stores.Managers, stores.Students, stores.Roster, logger)

	var jobs processor.JobFetcher
	if cfg.AWX.BaseURL != "" {
		jobs = clients.NewAWXClient(cfg.AWX)
	}
	var crm processor.OpportunityFetcher
	if cfg.CRM.LoginURL != "" {
		crm = clients.NewCRMClient(cfg.CRM)
	}
	claims := clients.NewClaimReader(dynClient, clients.DefaultClaimResource)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	namespaces := watch.NewNamespaceRegistry(kubeClient, logger)
	proc := processor.New(stores, claims, jobs, crm, enricher, namespaces, cfg.Domains, m, logger)
	watcher := watch.New(dynClient, watch.Config{Namespace: cfg.WatchNamespace}, cfg.Domains, proc, logger)

	elector := ha.NewLeaderElector(ha.ConfigFromEnv(), kubeClient, logger)
	elector.OnStartLeading(func(leadCtx context.Context) {
		go func() {
			if err := namespaces.Start(leadCtx); err != nil {
				if leadCtx.Err() == nil {
					glog.Fatalf("namespace registry failed: %v", err)
				}
				return
			}
			if err := watcher.Run(leadCtx); err != nil && leadCtx.Err() == nil {
				glog.Fatalf("subject watch failed: %v", err)
			}
		}()
	})

	srvErr := make(chan error, 1)
	srv := server.New(cfg.HTTPAddr, db, reg, nil, logger)
	go func() {
		srvErr <- srv.Run(ctx)
	}()

	electDone := make(chan struct{})
	go func() {
		elector.Run(ctx)
		close(electDone)
	}()

	select {
	case err := <-srvErr:
		cancel()
		<-electDone
		return err
	case <-ctx.Done():
		<-electDone
		return <-srvErr
	}
}

func kubeRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	}
	return rest.InClusterConfig()
}
