// Package enrich resolves the requesting user of a provision into identity,
// management chain, and chargeback attribution.
package enrich

import "context"

// Person is one directory entry, normalized across the corporate and
// federated directories.
type Person struct {
	UID        string
	Mail       string
	GivenName  string
	Surname    string
	FullName   string
	Title      string
	Geo        string
	CostCenter int
	// ManagerUID is the uid of the reporting manager, empty when the
	// directory does not carry a management chain.
	ManagerUID string
}

// Directory looks people up in an LDAP-style identity backend. Lookups that
// match nothing return (nil, nil).
type Directory interface {
	SearchByUID(ctx context.Context, uid string) (*Person, error)
	SearchByMail(ctx context.Context, mail string) (*Person, error)
}
