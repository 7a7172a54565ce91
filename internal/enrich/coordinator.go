package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhpds/provision-ledger/internal/event"
	"github.com/rhpds/provision-ledger/internal/store"
)

// Company identifiers in the reporting warehouse.
const (
	CompanyRedHat = 16736
	CompanyIBM    = 13716
	CompanyOther  = 10000
)

// Partner vocabulary.
const (
	PartnerRedHat = "redhat"
	PartnerIBM    = "IBM"
	PartnerOther  = "partner"
)

// User categories.
const (
	CategoryInternal       = "internal"
	CategoryPartner        = "partner"
	CategoryServiceAccount = "service-account"
	CategoryExcluded       = "excluded"
)

// CostCenterService is billed for automation driven by the provisioning
// service account rather than a person.
const CostCenterService = 99999

// chargebackExcludedManager never receives chargeback attribution even when
// present in the roster.
const chargebackExcludedManager = "gpte@redhat.com"

// excludedEmails are internal automation identities that must never be
// charged back.
var excludedEmails = map[string]bool{
	"sborenst@redhat.com":      true,
	"oczernin@redhat.com":      true,
	"nalentor@redhat.com":      true,
	"jenkins.sfo01@redhat.com": true,
	"jenkins.sfo01@gmail.com":  true,
	"brezhnev@redhat.com":      true,
}

// aliasSuffixes are plus-address tags stripped from the local part before
// directory lookups.
var aliasSuffixes = map[string]bool{
	"generic": true,
	"shared":  true,
	"test":    true,
}

// ManagerWriter persists resolved managers.
type ManagerWriter interface {
	Upsert(ctx context.Context, name, email, kerberosID string) (int64, error)
}

// StudentWriter persists resolved students and reports the stored
// chargeback-eligibility flag.
type StudentWriter interface {
	Upsert(ctx context.Context, s *store.Student) (int64, bool, error)
}

// RosterReader lists the chargeback-eligible manager roster.
type RosterReader interface {
	List(ctx context.Context) (map[string]int64, error)
}

// Result is the identity attribution attached to a provision.
type Result struct {
	StudentID           *int64
	ManagerID           *int64
	ManagerChargebackID *int64
	CostCenter          *int
	Geo                 string
}

// Coordinator resolves requesters against the corporate and federated
// directories and persists the resulting student and manager rows. Directory
// outages are returned to the caller so the event is retried rather than
// recorded unattributed.
type Coordinator struct {
	corporate Directory
	federated Directory
	managers  ManagerWriter
	students  StudentWriter
	roster    RosterReader
	logger    *slog.Logger
}

// NewCoordinator creates a Coordinator. federated may be nil when no
// federated directory is configured.
func NewCoordinator(corporate, federated Directory, managers ManagerWriter, students StudentWriter, roster RosterReader, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		corporate: corporate,
		federated: federated,
		managers:  managers,
		students:  students,
		roster:    roster,
		logger:    logger,
	}
}

// Resolve enriches the requesting user identified by username and email.
// Notifier identities were announced by an external platform and resolve
// against the federated directory by mail regardless of their domain.
func (c *Coordinator) Resolve(ctx context.Context, username, email string, notifier bool) (*Result, error) {
	if username == event.ServiceAccountRequester || (username == "" && email == "") {
		return c.resolveServiceAccount(ctx)
	}

	if email == "" {
		email = username + "@redhat.com"
	}
	email = strings.ToLower(stripAlias(email))

	internal := strings.HasSuffix(email, "@redhat.com")
	person, err := c.lookup(ctx, username, email, internal, notifier)
	if err != nil {
		return nil, err
	}

	student := c.buildStudent(username, email, internal, person)

	var managerID *int64
	if person != nil && person.ManagerUID != "" && c.corporate != nil {
		managerID, err = c.resolveManager(ctx, person.ManagerUID, student)
		if err != nil {
			return nil, err
		}
	}

	studentID, checkHeadcount, err := c.students.Upsert(ctx, student)
	if err != nil {
		return nil, fmt.Errorf("persist student %s: %w", email, err)
	}

	result := &Result{
		StudentID: &studentID,
		ManagerID: managerID,
		Geo:       student.Geo,
	}
	if student.CostCenter != nil {
		result.CostCenter = student.CostCenter
	}
	if checkHeadcount && !excludedEmails[email] {
		result.ManagerChargebackID, err = c.chargebackID(ctx, student.ManagerEmail)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (c *Coordinator) resolveServiceAccount(ctx context.Context) (*Result, error) {
	cost := CostCenterService
	student := &store.Student{
		Username:     event.ServiceAccountRequester,
		Email:        event.ServiceAccountRequester + "@redhat.com",
		FullName:     "Provisioning service account",
		CompanyID:    CompanyRedHat,
		Partner:      PartnerRedHat,
		CostCenter:   &cost,
		UserCategory: CategoryServiceAccount,
	}
	id, _, err := c.students.Upsert(ctx, student)
	if err != nil {
		return nil, fmt.Errorf("persist service account student: %w", err)
	}
	return &Result{StudentID: &id, CostCenter: &cost}, nil
}

// lookup searches the appropriate directory, trying uid first and falling
// back to mail, then to the kerberos naming convention for dotted local
// parts. A notifier identity skips the uid strategies and goes straight to
// the federated directory by mail.
func (c *Coordinator) lookup(ctx context.Context, username, email string, internal, notifier bool) (*Person, error) {
	if notifier {
		if c.federated == nil {
			return nil, nil
		}
		person, err := c.federated.SearchByMail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("directory search by mail %s: %w", email, err)
		}
		return person, nil
	}

	dir := c.federated
	if internal {
		dir = c.corporate
	}
	if dir == nil {
		return nil, nil
	}

	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	uid := username
	if internal {
		uid = local
	}

	person, err := dir.SearchByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("directory search by uid %s: %w", uid, err)
	}
	if person == nil && internal && strings.Contains(local, ".") {
		person, err = dir.SearchByUID(ctx, kerberosUID(local))
		if err != nil {
			return nil, fmt.Errorf("directory search by uid %s: %w", kerberosUID(local), err)
		}
	}
	if person == nil {
		person, err = dir.SearchByMail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("directory search by mail %s: %w", email, err)
		}
	}
	return person, nil
}

func (c *Coordinator) buildStudent(username, email string, internal bool, person *Person) *store.Student {
	student := &store.Student{
		Username: username,
		Email:    email,
	}
	switch {
	case internal:
		student.CompanyID = CompanyRedHat
		student.Partner = PartnerRedHat
		student.UserCategory = CategoryInternal
	case strings.HasSuffix(email, "@ibm.com"):
		student.CompanyID = CompanyIBM
		student.Partner = PartnerIBM
		student.UserCategory = CategoryPartner
	default:
		student.CompanyID = CompanyOther
		student.Partner = PartnerOther
		student.UserCategory = CategoryPartner
	}
	if excludedEmails[email] {
		student.UserCategory = CategoryExcluded
	}
	if person != nil {
		student.FirstName = person.GivenName
		student.LastName = person.Surname
		student.FullName = person.FullName
		if student.FullName == "" {
			student.FullName = strings.TrimSpace(person.GivenName + " " + person.Surname)
		}
		student.Title = person.Title
		student.Geo = person.Geo
		student.KerberosID = person.UID
		if person.CostCenter > 0 {
			cost := person.CostCenter
			student.CostCenter = &cost
		}
	}
	return student
}

// resolveManager looks the manager up in the corporate directory and
// persists it, annotating the student with the management chain. A manager
// entry without a mail address leaves the student unattributed.
func (c *Coordinator) resolveManager(ctx context.Context, managerUID string, student *store.Student) (*int64, error) {
	manager, err := c.corporate.SearchByUID(ctx, managerUID)
	if err != nil {
		return nil, fmt.Errorf("directory search by uid %s: %w", managerUID, err)
	}
	if manager == nil || manager.Mail == "" {
		return nil, nil
	}
	name := manager.FullName
	if name == "" {
		name = strings.TrimSpace(manager.GivenName + " " + manager.Surname)
	}
	mail := strings.ToLower(manager.Mail)
	id, err := c.managers.Upsert(ctx, name, mail, manager.UID)
	if err != nil {
		return nil, fmt.Errorf("persist manager %s: %w", mail, err)
	}
	student.Manager = name
	student.ManagerEmail = mail
	return &id, nil
}

// chargebackID maps the manager to a roster entry when chargeback applies.
func (c *Coordinator) chargebackID(ctx context.Context, managerEmail string) (*int64, error) {
	if managerEmail == "" || managerEmail == chargebackExcludedManager {
		return nil, nil
	}
	roster, err := c.roster.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chargeback roster: %w", err)
	}
	id, ok := roster[managerEmail]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// stripAlias removes a recognized plus-address tag from the local part.
// "jane.doe+shared@redhat.com" and "jane.doe@redhat.com" are the same
// person.
func stripAlias(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return email
	}
	local, domain := email[:at], email[at:]
	plus := strings.Index(local, "+")
	if plus < 0 {
		return email
	}
	if aliasSuffixes[strings.ToLower(local[plus+1:])] {
		return local[:plus] + domain
	}
	return email
}

// kerberosUID derives the conventional kerberos id from a dotted local
// part: first initial plus up to eight characters of the surname.
func kerberosUID(local string) string {
	parts := strings.Split(local, ".")
	if len(parts) < 2 {
		return local
	}
	first, last := parts[0], parts[len(parts)-1]
	if first == "" || last == "" {
		return local
	}
	if len(last) > 8 {
		last = last[:8]
	}
	return first[:1] + last
}
