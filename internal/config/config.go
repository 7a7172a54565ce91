// Package config assembles the controller configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rhpds/provision-ledger/internal/clients"
	"github.com/rhpds/provision-ledger/internal/event"
)

// DatabaseConfig connects the reporting database.
type DatabaseConfig struct {
	Type string
	DSN  string
}

// Config is the full controller configuration.
type Config struct {
	Database DatabaseConfig

	// HTTPAddr serves health, readiness, and metrics.
	HTTPAddr string

	// WatchNamespace restricts the subject watch; empty watches the whole
	// cluster.
	WatchNamespace string

	// Kubeconfig is used when running outside the cluster; empty means
	// in-cluster credentials.
	Kubeconfig string

	AWX clients.AWXConfig
	CRM clients.CRMConfig

	CorporateLDAP clients.LDAPConfig
	FederatedLDAP clients.LDAPConfig

	Domains event.Domains
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Type: "postgres"},
		HTTPAddr: ":8080",
		Domains:  event.DefaultDomains(),
	}
}

// FromEnv reads the configuration from LEDGER_* environment variables,
// falling back to defaults for any unset variable.
func FromEnv() *Config {
	cfg := Default()

	setString(&cfg.Database.Type, "LEDGER_DB_TYPE")
	setString(&cfg.Database.DSN, "LEDGER_DB_DSN")
	setString(&cfg.HTTPAddr, "LEDGER_HTTP_ADDR")
	setString(&cfg.WatchNamespace, "LEDGER_WATCH_NAMESPACE")
	setString(&cfg.Kubeconfig, "LEDGER_KUBECONFIG")
	if cfg.Kubeconfig == "" {
		cfg.Kubeconfig = os.Getenv("KUBECONFIG")
	}

	setString(&cfg.AWX.BaseURL, "LEDGER_AWX_URL")
	setString(&cfg.AWX.Username, "LEDGER_AWX_USERNAME")
	setString(&cfg.AWX.Password, "LEDGER_AWX_PASSWORD")
	if v := os.Getenv("LEDGER_AWX_INSECURE_SKIP_VERIFY"); v != "" {
		cfg.AWX.SkipTLSVerify = strings.EqualFold(v, "true") || v == "1"
	}

	setString(&cfg.CRM.LoginURL, "LEDGER_CRM_LOGIN_URL")
	setString(&cfg.CRM.Username, "LEDGER_CRM_USERNAME")
	setString(&cfg.CRM.Password, "LEDGER_CRM_PASSWORD")
	setString(&cfg.CRM.ClientID, "LEDGER_CRM_CLIENT_ID")
	setString(&cfg.CRM.ClientSecret, "LEDGER_CRM_CLIENT_SECRET")
	setString(&cfg.CRM.APIVersion, "LEDGER_CRM_API_VERSION")

	setString(&cfg.CorporateLDAP.URL, "LEDGER_LDAP_CORPORATE_URL")
	setString(&cfg.CorporateLDAP.BindDN, "LEDGER_LDAP_CORPORATE_BIND_DN")
	setString(&cfg.CorporateLDAP.BindPassword, "LEDGER_LDAP_CORPORATE_BIND_PASSWORD")
	setString(&cfg.CorporateLDAP.BaseDN, "LEDGER_LDAP_CORPORATE_BASE_DN")

	setString(&cfg.FederatedLDAP.URL, "LEDGER_LDAP_FEDERATED_URL")
	setString(&cfg.FederatedLDAP.BindDN, "LEDGER_LDAP_FEDERATED_BIND_DN")
	setString(&cfg.FederatedLDAP.BindPassword, "LEDGER_LDAP_FEDERATED_BIND_PASSWORD")
	setString(&cfg.FederatedLDAP.BaseDN, "LEDGER_LDAP_FEDERATED_BASE_DN")

	setString(&cfg.Domains.Subject, "LEDGER_DOMAIN_SUBJECT")
	setString(&cfg.Domains.Catalog, "LEDGER_DOMAIN_CATALOG")
	setString(&cfg.Domains.Broker, "LEDGER_DOMAIN_BROKER")
	setString(&cfg.Domains.Sales, "LEDGER_DOMAIN_SALES")

	return cfg
}

// Validate rejects configurations the controller cannot start with.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("LEDGER_DB_DSN is required")
	}
	if c.Database.Type != "postgres" && c.Database.Type != "mysql" {
		return fmt.Errorf("unsupported LEDGER_DB_TYPE %q", c.Database.Type)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
