package components

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotrs-io/dynamics-e2e/internal/config"
	"github.com/gotrs-io/dynamics-e2e/internal/locator"
)

// Portal paths of the application journey, relative to PORTAL_URL.
const (
	ApplicationStartPath       = "/Create-Application-Start"
	OrganisationInfoPathMarker = "New-Application-Organisation-Information"
	AboutTheGoodsPathMarker    = "New-Application-About-the-goods"
)

// Task status texts shown on the application task list.
const (
	StatusNotStarted     = "Not started"
	StatusCannotStartYet = "Cannot start yet"
)

// Task is an entry on the application task list.
type Task struct {
	// ID is the prefix of the task's status element id.
	ID   string
	Name string
}

var (
	TaskOrganisationInfo = Task{ID: "prepare-application-1", Name: "Organisation information"}
	TaskAboutTheGoods    = Task{ID: "prepare-application-2", Name: "About the goods"}
	TaskDownloadDocs     = Task{ID: "submit-documentation-1", Name: "Download documents"}
	TaskUploadDocs       = Task{ID: "submit-documentation-2", Name: "Upload documents"}
	TaskCheckAndSubmit   = Task{ID: "submit-documentation-3", Name: "Check and submit your application"}

	// ApplicationTasks lists every task in page order.
	ApplicationTasks = []Task{TaskOrganisationInfo, TaskAboutTheGoods, TaskDownloadDocs, TaskUploadDocs, TaskCheckAndSubmit}
)

const applicationHeading = "Create an application with the Trade Remedies Authority"

var (
	applicationTitle = locator.Candidates{
		locator.Named(`h1, [role="heading"]`, applicationHeading),
	}
	startApplication = locator.Candidates{
		locator.Named("button", "Start application"),
		locator.Named(`a.govuk-button, [role="button"]`, "Start application"),
	}
	guidanceLink  = locator.Candidates{locator.Named("a", "Read the guidance documents")}
	contactEmail  = locator.Candidates{locator.Named("a", "contact@traderemedies.gov.uk")}
	saveAndClose  = locator.Candidates{locator.NamedExactly("a", "Save and close"), locator.NamedExactly("button", "Save and close")}
	taskLists     = "ul.govuk-task-list"
	taskListItems = ".govuk-task-list__item"
)

// ApplicationStartPage is the portal landing page for a new application.
type ApplicationStartPage struct {
	*Actor
}

func NewApplicationStartPage(a *Actor) *ApplicationStartPage { return &ApplicationStartPage{Actor: a} }

// MissingSections returns the names of the landing page sections that are
// not shown.
func (p *ApplicationStartPage) MissingSections(ctx context.Context) ([]string, error) {
	sections := []struct {
		name string
		cs   locator.Candidates
	}{
		{"heading", applicationTitle},
		{"you will be able to", locator.Candidates{locator.Named("p, h2, h3, span", "You will be able to:")}},
		{"you will need", locator.Candidates{locator.Named("p, h2, h3, span", "You will need:")}},
		{"downloading templates", locator.Candidates{locator.Named("p, h2, h3, span", "Downloading templates")}},
		{"start application", startApplication},
		{"guidance", guidanceLink},
		{"contact email", contactEmail},
	}
	var missing []string
	for _, s := range sections {
		ok, err := p.Exists(ctx, s.name, s.cs, locator.Read)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, s.name)
		}
	}
	return missing, nil
}

// StartApplication clicks Start application.
func (p *ApplicationStartPage) StartApplication(ctx context.Context) error {
	return p.Click(ctx, "start application", startApplication)
}

// ApplicationTaskList is the task list shown once an application exists.
type ApplicationTaskList struct {
	*Actor
}

func NewApplicationTaskList(a *Actor) *ApplicationTaskList { return &ApplicationTaskList{Actor: a} }

// WaitReady waits for the heading and both task lists.
func (l *ApplicationTaskList) WaitReady(ctx context.Context) error {
	if _, err := l.Resolve(ctx, "application heading", applicationTitle, locator.Read); err != nil {
		return err
	}
	return l.WaitVisible(ctx, taskLists)
}

// TaskListCount returns the number of task lists on the page.
func (l *ApplicationTaskList) TaskListCount() (int, error) {
	els, err := l.Page.QueryAll(taskLists)
	return len(els), err
}

func statusOf(t Task) locator.Candidates {
	return locator.Selectors(
		fmt.Sprintf(`#%s-status`, t.ID),
		fmt.Sprintf(`[id=%s]`, quote(t.ID+"-status")),
	)
}

// Status returns the status text of task.
func (l *ApplicationTaskList) Status(ctx context.Context, t Task) (string, error) {
	res, err := l.Resolve(ctx, t.Name+" status", statusOf(t), locator.Read)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(text(res.Handle)), " "), nil
}

// item returns the task list entry for t, or nil.
func (l *ApplicationTaskList) item(t Task) (locator.Element, error) {
	els, err := l.Page.QueryAll(taskListItems)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(t.Name)
	for _, el := range els {
		if strings.Contains(strings.ToLower(strings.Join(strings.Fields(text(el)), " ")), want) {
			return el, nil
		}
	}
	return nil, nil
}

// IsAvailable reports whether t can be opened, meaning its entry carries a
// link. Locked tasks render as plain text.
func (l *ApplicationTaskList) IsAvailable(ctx context.Context, t Task) (bool, error) {
	el, err := l.item(t)
	if err != nil || el == nil {
		return false, err
	}
	links, err := el.QueryAll("a")
	if err != nil {
		return false, err
	}
	return len(links) > 0, nil
}

// Open clicks the task's link.
func (l *ApplicationTaskList) Open(ctx context.Context, t Task) error {
	return l.Click(ctx, "task "+t.Name, locator.Candidates{
		locator.NamedExactly("a.govuk-task-list__link", t.Name),
		locator.NamedExactly(taskListItems+" a", t.Name),
	})
}

func (l *ApplicationTaskList) SaveAndClose(ctx context.Context) error {
	return l.Click(ctx, "save and close", saveAndClose)
}

// Relationship is the applicant's relationship to the organisation, stored
// as the option value of cg_firstreporgrelationship.
type Relationship int

const (
	Employee      Relationship = 121480000
	Director      Relationship = 121480001
	ExternalParty Relationship = 121480002
)

func (r Relationship) String() string {
	switch r {
	case Employee:
		return "employee"
	case Director:
		return "director"
	case ExternalParty:
		return "external party"
	}
	return "relationship(" + strconv.Itoa(int(r)) + ")"
}

func (r Relationship) index() int { return int(r - Employee) }

// Organisation is the content of the organisation information form.
// Optional fields are left untouched when empty.
type Organisation struct {
	Name         string
	AddressLine1 string
	AddressLine2 string
	AddressLine3 string
	Town         string
	County       string
	Postcode     string
	Country      string
	Number       string
	Website      string

	Relationship Relationship
	// ExternalRole is only filled for ExternalParty.
	ExternalRole string
}

// OrganisationFromConfig returns the configured test organisation with
// relationship r.
func OrganisationFromConfig(org config.OrganizationData, r Relationship) Organisation {
	return Organisation{
		Name:         org.Name,
		AddressLine1: org.Address,
		Town:         org.City,
		Postcode:     org.Postcode,
		Country:      org.Country,
		Relationship: r,
	}
}

// orgField is a form input keyed by its Dataverse column.
type orgField struct {
	column string
	label  string
}

var (
	fieldOrgName  = orgField{"cg_organisationname", "Organisation Name"}
	fieldAddress1 = orgField{"cg_addressline1", "Address Line 1"}
	fieldAddress2 = orgField{"cg_addressline2", "Address Line 2"}
	fieldAddress3 = orgField{"cg_addressline3", "Address Line 3"}
	fieldTown     = orgField{"cg_town", "City / Town"}
	fieldCounty   = orgField{"cg_county", "County / State"}
	fieldPostcode = orgField{"cg_postcode", "Postal Code"}
	fieldCountry  = orgField{"cg_country", "Country"}
	fieldNumber   = orgField{"cg_organisationnumber", "Organisation Number"}
	fieldWebsite  = orgField{"cg_website", "Website"}
	fieldExtRole  = orgField{"cg_firstrepresentativeorgrelationshiptext", "Role"}

	// RequiredOrganisationFields are the columns the form will not submit
	// without.
	RequiredOrganisationFields = []string{
		fieldOrgName.column, fieldAddress1.column, fieldTown.column, fieldPostcode.column, fieldCountry.column,
	}
)

func (f orgField) candidates() locator.Candidates {
	return locator.Candidates{
		{Selector: fmt.Sprintf(`input[name*=%s]`, quote(f.column))},
		{Selector: fmt.Sprintf(`input[id=%s]`, quote(f.column))},
		locator.WithAttr("input", "aria-label", locator.AttrEquals, f.label),
	}
}

var (
	orgInfoHeading = locator.Candidates{locator.NamedExactly(`h3, [role="heading"]`, "Organisation information")}
	orgSubmit      = locator.Candidates{
		locator.NamedExactly("button", "Submit"),
		{Selector: `input[type="submit"][value="Submit"]`},
	}
	returnToTasks = locator.Candidates{locator.Named("a.govuk-back-link", "Return to tasks")}
	backLink      = locator.Candidates{locator.NamedExactly("a.govuk-back-link", "Back")}
)

func relationshipRadio(r Relationship) locator.Candidates {
	return locator.Selectors(
		fmt.Sprintf(`input[type="radio"][value="%d"]`, int(r)),
		fmt.Sprintf(`#cg_firstreporgrelationship_%d`, r.index()),
	)
}

// OrganisationInformationPage is the first task of a new application.
type OrganisationInformationPage struct {
	*Actor
}

func NewOrganisationInformationPage(a *Actor) *OrganisationInformationPage {
	return &OrganisationInformationPage{Actor: a}
}

// WaitReady waits for the form heading and the organisation name field.
func (p *OrganisationInformationPage) WaitReady(ctx context.Context) error {
	if _, err := p.Resolve(ctx, "organisation information", orgInfoHeading, locator.Read); err != nil {
		return err
	}
	_, err := p.Resolve(ctx, fieldOrgName.label, fieldOrgName.candidates(), locator.Type)
	return err
}

// UneditableFields returns the columns among columns whose inputs cannot be
// typed into.
func (p *OrganisationInformationPage) UneditableFields(ctx context.Context, columns ...string) ([]string, error) {
	var out []string
	for _, c := range columns {
		ok, err := p.Exists(ctx, c, orgField{column: c, label: c}.candidates(), locator.Type)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Fill enters org, skipping empty optional fields, and selects its
// relationship.
func (p *OrganisationInformationPage) Fill(ctx context.Context, org Organisation) error {
	fields := []struct {
		f     orgField
		value string
		req   bool
	}{
		{fieldOrgName, org.Name, true},
		{fieldAddress1, org.AddressLine1, true},
		{fieldAddress2, org.AddressLine2, false},
		{fieldAddress3, org.AddressLine3, false},
		{fieldTown, org.Town, true},
		{fieldCounty, org.County, false},
		{fieldPostcode, org.Postcode, true},
		{fieldCountry, org.Country, true},
		{fieldNumber, org.Number, false},
		{fieldWebsite, org.Website, false},
	}
	for _, fv := range fields {
		if fv.value == "" && !fv.req {
			continue
		}
		if err := p.Actor.Fill(ctx, fv.f.label, fv.f.candidates(), fv.value); err != nil {
			return err
		}
	}
	if org.Relationship == 0 {
		return nil
	}
	if err := p.SelectRelationship(ctx, org.Relationship); err != nil {
		return err
	}
	if org.Relationship == ExternalParty && org.ExternalRole != "" {
		return p.Actor.Fill(ctx, "external party role", fieldExtRole.candidates(), org.ExternalRole)
	}
	return nil
}

// SelectRelationship checks the radio for r.
func (p *OrganisationInformationPage) SelectRelationship(ctx context.Context, r Relationship) error {
	return p.Click(ctx, "relationship "+r.String(), relationshipRadio(r))
}

// IsRelationshipSelected reports whether the radio for r is checked.
func (p *OrganisationInformationPage) IsRelationshipSelected(ctx context.Context, r Relationship) (bool, error) {
	res, err := p.Find(ctx, "relationship "+r.String(), relationshipRadio(r), locator.Attached)
	if err != nil {
		return false, err
	}
	return res.Handle.IsChecked()
}

// IsExternalRoleVisible reports whether the role field shown for external
// parties is visible.
func (p *OrganisationInformationPage) IsExternalRoleVisible(ctx context.Context) (bool, error) {
	return p.Exists(ctx, "external party role", fieldExtRole.candidates(), locator.Read)
}

func (p *OrganisationInformationPage) Submit(ctx context.Context) error {
	return p.Click(ctx, "submit", orgSubmit)
}

func (p *OrganisationInformationPage) ReturnToTasks(ctx context.Context) error {
	return p.Click(ctx, "return to tasks", returnToTasks)
}

func (p *OrganisationInformationPage) Back(ctx context.Context) error {
	return p.Click(ctx, "back", backLink)
}
