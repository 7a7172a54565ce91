// Package clients holds the outbound integrations: directories, the
// automation controller, the CRM, and the cluster claim reader.
package clients

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/rhpds/provision-ledger/internal/enrich"
)

// LDAPConfig connects one directory.
type LDAPConfig struct {
	URL          string
	BindDN       string
	BindPassword string
	BaseDN       string
}

// dialer opens an authenticated LDAP connection. Connections are opened per
// search; lookups are rare enough that pooling is not worth the reconnect
// handling.
type dialer struct {
	cfg LDAPConfig
}

func (d dialer) connect() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial ldap %s: %w", d.cfg.URL, err)
	}
	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind ldap %s: %w", d.cfg.URL, err)
		}
	}
	return conn, nil
}

func (d dialer) search(ctx context.Context, filter string, attrs []string) (*ldap.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := d.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		d.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		filter, attrs, nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if res != nil && ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) && len(res.Entries) > 0 {
			return res.Entries[0], nil
		}
		return nil, fmt.Errorf("ldap search %s: %w", filter, err)
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	return res.Entries[0], nil
}

// CorporateDirectory resolves internal users against the corporate LDAP,
// which carries cost center, geo, and the management chain.
type CorporateDirectory struct {
	d dialer
}

// NewCorporateDirectory creates a corporate directory client.
func NewCorporateDirectory(cfg LDAPConfig) *CorporateDirectory {
	return &CorporateDirectory{d: dialer{cfg: cfg}}
}

var corporateAttrs = []string{
	"uid", "mail", "givenName", "sn", "cn", "title",
	"rhatCostCenter", "rhatGeo", "manager",
}

// SearchByUID implements enrich.Directory.
func (c *CorporateDirectory) SearchByUID(ctx context.Context, uid string) (*enrich.Person, error) {
	entry, err := c.d.search(ctx, fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(uid)), corporateAttrs)
	if err != nil || entry == nil {
		return nil, err
	}
	return corporatePerson(entry), nil
}

// SearchByMail implements enrich.Directory.
func (c *CorporateDirectory) SearchByMail(ctx context.Context, mail string) (*enrich.Person, error) {
	entry, err := c.d.search(ctx, fmt.Sprintf("(mail=%s)", ldap.EscapeFilter(mail)), corporateAttrs)
	if err != nil || entry == nil {
		return nil, err
	}
	return corporatePerson(entry), nil
}

func corporatePerson(entry *ldap.Entry) *enrich.Person {
	cost, _ := strconv.Atoi(entry.GetAttributeValue("rhatCostCenter"))
	return &enrich.Person{
		UID:        entry.GetAttributeValue("uid"),
		Mail:       entry.GetAttributeValue("mail"),
		GivenName:  entry.GetAttributeValue("givenName"),
		Surname:    entry.GetAttributeValue("sn"),
		FullName:   entry.GetAttributeValue("cn"),
		Title:      entry.GetAttributeValue("title"),
		Geo:        entry.GetAttributeValue("rhatGeo"),
		CostCenter: cost,
		ManagerUID: uidFromDN(entry.GetAttributeValue("manager")),
	}
}

// uidFromDN extracts the uid from a manager DN such as
// "uid=jdoe,ou=users,dc=redhat,dc=com".
func uidFromDN(dn string) string {
	if dn == "" {
		return ""
	}
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 {
		return ""
	}
	for _, attr := range parsed.RDNs[0].Attributes {
		if strings.EqualFold(attr.Type, "uid") {
			return attr.Value
		}
	}
	return ""
}

// FederatedDirectory resolves external and partner users against the
// federated IPA directory. It carries identity only, no management chain.
type FederatedDirectory struct {
	d dialer
}

// NewFederatedDirectory creates a federated directory client.
func NewFederatedDirectory(cfg LDAPConfig) *FederatedDirectory {
	return &FederatedDirectory{d: dialer{cfg: cfg}}
}

var federatedAttrs = []string{"uid", "mail", "givenName", "sn", "cn", "title"}

// SearchByUID implements enrich.Directory.
func (f *FederatedDirectory) SearchByUID(ctx context.Context, uid string) (*enrich.Person, error) {
	entry, err := f.d.search(ctx, fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(uid)), federatedAttrs)
	if err != nil || entry == nil {
		return nil, err
	}
	return federatedPerson(entry), nil
}

// SearchByMail implements enrich.Directory.
func (f *FederatedDirectory) SearchByMail(ctx context.Context, mail string) (*enrich.Person, error) {
	entry, err := f.d.search(ctx, fmt.Sprintf("(mail=%s)", ldap.EscapeFilter(mail)), federatedAttrs)
	if err != nil || entry == nil {
		return nil, err
	}
	return federatedPerson(entry), nil
}

func federatedPerson(entry *ldap.Entry) *enrich.Person {
	return &enrich.Person{
		UID:       entry.GetAttributeValue("uid"),
		Mail:      entry.GetAttributeValue("mail"),
		GivenName: entry.GetAttributeValue("givenName"),
		Surname:   entry.GetAttributeValue("sn"),
		FullName:  entry.GetAttributeValue("cn"),
		Title:     entry.GetAttributeValue("title"),
	}
}
