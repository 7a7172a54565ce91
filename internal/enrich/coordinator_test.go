package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhpds/provision-ledger/internal/store"
)

type fakeDirectory struct {
	byUID  map[string]*Person
	byMail map[string]*Person
	err    error
}

func (f *fakeDirectory) SearchByUID(_ context.Context, uid string) (*Person, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUID[uid], nil
}

func (f *fakeDirectory) SearchByMail(_ context.Context, mail string) (*Person, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byMail[mail], nil
}

type fakeManagers struct {
	upserts []string
	nextID  int64
}

func (f *fakeManagers) Upsert(_ context.Context, name, email, kerberosID string) (int64, error) {
	f.upserts = append(f.upserts, email)
	f.nextID++
	return f.nextID, nil
}

type fakeStudents struct {
	last           *store.Student
	checkHeadcount bool
	nextID         int64
}

func (f *fakeStudents) Upsert(_ context.Context, s *store.Student) (int64, bool, error) {
	f.last = s
	f.nextID++
	return f.nextID, f.checkHeadcount, nil
}

type fakeRoster struct {
	roster map[string]int64
}

func (f *fakeRoster) List(_ context.Context) (map[string]int64, error) {
	return f.roster, nil
}

type fixture struct {
	corporate *fakeDirectory
	federated *fakeDirectory
	managers  *fakeManagers
	students  *fakeStudents
	roster    *fakeRoster
	coord     *Coordinator
}

func newFixture() *fixture {
	f := &fixture{
		corporate: &fakeDirectory{byUID: map[string]*Person{}, byMail: map[string]*Person{}},
		federated: &fakeDirectory{byUID: map[string]*Person{}, byMail: map[string]*Person{}},
		managers:  &fakeManagers{},
		students:  &fakeStudents{checkHeadcount: true},
		roster:    &fakeRoster{roster: map[string]int64{}},
	}
	f.coord = NewCoordinator(f.corporate, f.federated, f.managers, f.students, f.roster, nil)
	return f
}

func janeDoe() *Person {
	return &Person{
		UID:        "jdoe",
		Mail:       "jane.doe@redhat.com",
		GivenName:  "Jane",
		Surname:    "Doe",
		FullName:   "Jane Doe",
		Title:      "Engineer",
		Geo:        "NA",
		CostCenter: 540,
		ManagerUID: "pboss",
	}
}

func patBoss() *Person {
	return &Person{
		UID:      "pboss",
		Mail:     "pboss@redhat.com",
		FullName: "Pat Boss",
	}
}

func TestResolveInternalUserWithManagerAndChargeback(t *testing.T) {
	f := newFixture()
	f.corporate.byUID["jane.doe"] = janeDoe()
	f.corporate.byUID["pboss"] = patBoss()
	f.roster.roster["pboss@redhat.com"] = 42

	result, err := f.coord.Resolve(context.Background(), "jane.doe", "jane.doe@redhat.com", false)
	require.NoError(t, err)

	require.NotNil(t, result.StudentID)
	require.NotNil(t, result.ManagerID)
	require.NotNil(t, result.ManagerChargebackID)
	assert.Equal(t, int64(42), *result.ManagerChargebackID)
	require.NotNil(t, result.CostCenter)
	assert.Equal(t, 540, *result.CostCenter)
	assert.Equal(t, "NA", result.Geo)

	assert.Equal(t, CompanyRedHat, f.students.last.CompanyID)
	assert.Equal(t, PartnerRedHat, f.students.last.Partner)
	assert.Equal(t, CategoryInternal, f.students.last.UserCategory)
	assert.Equal(t, "Pat Boss", f.students.last.Manager)
	assert.Equal(t, "pboss@redhat.com", f.students.last.ManagerEmail)
}

func TestResolveManagerNotInRosterSkipsChargeback(t *testing.T) {
	f := newFixture()
	f.corporate.byUID["jane.doe"] = janeDoe()
	f.corporate.byUID["pboss"] = patBoss()

	result, err := f.coord.Resolve(context.Background(), "jane.doe", "jane.doe@redhat.com", false)
	require.NoError(t, err)
	assert.NotNil(t, result.ManagerID)
	assert.Nil(t, result.ManagerChargebackID)
}

func TestResolveExcludedManagerNeverChargedBack(t *testing.T) {
	f := newFixture()
	person := janeDoe()
	person.ManagerUID = "gpte"
	f.corporate.byUID["jane.doe"] = person
	f.corporate.byUID["gpte"] = &Person{UID: "gpte", Mail: "gpte@redhat.com", FullName: "Shared Account"}
	f.roster.roster["gpte@redhat.com"] = 9

	result, err := f.coord.Resolve(context.Background(), "jane.doe", "jane.doe@redhat.com", false)
	require.NoError(t, err)
	assert.Nil(t, result.ManagerChargebackID)
}

func TestResolveOptedOutStudentSkipsChargeback(t *testing.T) {
	f := newFixture()
	f.students.checkHeadcount = false
	f.corporate.byUID["jane.doe"] = janeDoe()
	f.corporate.byUID["pboss"] = patBoss()
	f.roster.roster["pboss@redhat.com"] = 42

	result, err := f.coord.Resolve(context.Background(), "jane.doe", "jane.doe@redhat.com", false)
	require.NoError(t, err)
	assert.Nil(t, result.ManagerChargebackID)
}

func TestResolveExcludedAutomationIdentity(t *testing.T) {
	f := newFixture()
	f.corporate.byUID["jenkins.sfo01"] = &Person{UID: "jenkins", Mail: "jenkins.sfo01@redhat.com", ManagerUID: "pboss"}
	f.corporate.byUID["pboss"] = patBoss()
	f.roster.roster["pboss@redhat.com"] = 42

	result, err := f.coord.Resolve(context.Background(), "jenkins.sfo01", "jenkins.sfo01@redhat.com", false)
	require.NoError(t, err)
	assert.Nil(t, result.ManagerChargebackID)
	assert.Equal(t, CategoryExcluded, f.students.last.UserCategory)
}

func TestResolveAliasStripping(t *testing.T) {
	f := newFixture()
	f.corporate.byUID["jane.doe"] = janeDoe()

	_, err := f.coord.Resolve(context.Background(), "jane.doe", "jane.doe+shared@redhat.com", false)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@redhat.com", f.students.last.Email)
}

func TestResolveKerberosFallbackForDottedLocalPart(t *testing.T) {
	f := newFixture()
	// No entry under the dotted local part; only the conventional
	// first-initial-plus-surname uid exists.
	f.corporate.byUID["jdoe"] = janeDoe()

	result, err := f.coord.Resolve(context.Background(), "jane.doe", "jane.doe@redhat.com", false)
	require.NoError(t, err)
	require.NotNil(t, result.StudentID)
	assert.Equal(t, "jdoe", f.students.last.KerberosID)
}

func TestResolvePartnerUserViaFederatedDirectory(t *testing.T) {
	f := newFixture()
	f.federated.byUID["partner1"] = &Person{
		UID:       "partner1",
		Mail:      "partner1@ibm.com",
		GivenName: "Par",
		Surname:   "Tner",
	}

	result, err := f.coord.Resolve(context.Background(), "partner1", "partner1@ibm.com", false)
	require.NoError(t, err)
	require.NotNil(t, result.StudentID)
	assert.Nil(t, result.ManagerID)
	assert.Equal(t, CompanyIBM, f.students.last.CompanyID)
	assert.Equal(t, PartnerIBM, f.students.last.Partner)
	assert.Equal(t, CategoryPartner, f.students.last.UserCategory)
}

func TestResolveNotifierIdentityUsesFederatedMail(t *testing.T) {
	f := newFixture()
	// A corporate entry exists under the uid, but a notifier identity must
	// resolve through the federated directory by mail.
	f.corporate.byUID["jane.doe"] = janeDoe()
	f.federated.byMail["jane.doe@redhat.com"] = &Person{
		UID:       "jdoe-ext",
		Mail:      "jane.doe@redhat.com",
		GivenName: "Jane",
		Surname:   "Doe",
	}

	result, err := f.coord.Resolve(context.Background(), "jane.doe", "jane.doe@redhat.com", true)
	require.NoError(t, err)
	require.NotNil(t, result.StudentID)
	assert.Equal(t, "jdoe-ext", f.students.last.KerberosID)
}

func TestResolveDirectoryErrorPropagates(t *testing.T) {
	f := newFixture()
	f.corporate.err = errors.New("ldap unreachable")

	_, err := f.coord.Resolve(context.Background(), "jane.doe", "jane.doe@redhat.com", false)
	require.Error(t, err)
	assert.Nil(t, f.students.last)
}

func TestResolveExternalUserCompanyDefaults(t *testing.T) {
	f := newFixture()

	_, err := f.coord.Resolve(context.Background(), "someone", "someone@example.com", false)
	require.NoError(t, err)
	assert.Equal(t, CompanyOther, f.students.last.CompanyID)
	assert.Equal(t, PartnerOther, f.students.last.Partner)
}

func TestResolveServiceAccount(t *testing.T) {
	f := newFixture()

	result, err := f.coord.Resolve(context.Background(), "poolboy", "", false)
	require.NoError(t, err)
	require.NotNil(t, result.StudentID)
	require.NotNil(t, result.CostCenter)
	assert.Equal(t, CostCenterService, *result.CostCenter)
	assert.Equal(t, CategoryServiceAccount, f.students.last.UserCategory)
}

func TestResolveEmailDerivedFromUsername(t *testing.T) {
	f := newFixture()

	_, err := f.coord.Resolve(context.Background(), "jane.doe", "", false)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@redhat.com", f.students.last.Email)
	assert.Equal(t, CompanyRedHat, f.students.last.CompanyID)
}

func TestStripAlias(t *testing.T) {
	assert.Equal(t, "jane.doe@redhat.com", stripAlias("jane.doe+generic@redhat.com"))
	assert.Equal(t, "jane.doe+project@redhat.com", stripAlias("jane.doe+project@redhat.com"))
	assert.Equal(t, "jane.doe@redhat.com", stripAlias("jane.doe@redhat.com"))
}

func TestKerberosUID(t *testing.T) {
	assert.Equal(t, "jdoe", kerberosUID("jane.doe"))
	assert.Equal(t, "jlongsurn", kerberosUID("jane.longsurname"))
	assert.Equal(t, "plain", kerberosUID("plain"))
}
