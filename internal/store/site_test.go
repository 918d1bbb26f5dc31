package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mlaflamme/proofonsite/internal/database"
	"github.com/mlaflamme/proofonsite/internal/model"
)

func setupSiteTestDB(t *testing.T) (*SiteStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSiteStore(db), NewUserStore(db)
}

func createSiteOwner(t *testing.T, us *UserStore, email string) *model.User {
	t.Helper()
	u, err := us.Create(uuid.NewString(), email, "x", "Owner")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func testSite(ownerID, name, code string) *model.Site {
	return &model.Site{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Name:          name,
		Address:       "12 Maple St",
		Status:        model.SiteStatusActive,
		ReferenceCode: code,
		CaptureToken:  uuid.NewString(),
	}
}

func TestSiteCRUD(t *testing.T) {
	sites, us := setupSiteTestDB(t)
	owner := createSiteOwner(t, us, "owner@example.com")

	in := testSite(owner.ID, "Maple Street Build", "ABC234")
	in.ContactName = "Pat Foreman"
	in.ContactPhone = "555-0100"
	in.Notes = "Gate code 4821"
	in.NotificationEmails = []string{"foreman@example.com", "office@example.com"}

	site, err := sites.Create(in)
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	if site.Name != "Maple Street Build" {
		t.Errorf("name = %q", site.Name)
	}
	if site.ReferenceCode != "ABC234" {
		t.Errorf("reference_code = %q", site.ReferenceCode)
	}
	if site.Status != model.SiteStatusActive {
		t.Errorf("status = %q, want active", site.Status)
	}
	if len(site.NotificationEmails) != 2 || site.NotificationEmails[0] != "foreman@example.com" {
		t.Errorf("notification_emails = %v", site.NotificationEmails)
	}
	if site.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	// Lookup by capture token
	got, err := sites.GetByCaptureToken(in.CaptureToken)
	if err != nil {
		t.Fatalf("get by capture token: %v", err)
	}
	if got == nil || got.ID != site.ID {
		t.Fatalf("get by capture token = %+v, want site %s", got, site.ID)
	}

	// Reference code existence
	exists, err := sites.ReferenceCodeExists("ABC234")
	if err != nil {
		t.Fatalf("reference code exists: %v", err)
	}
	if !exists {
		t.Error("expected ABC234 to exist")
	}
	exists, err = sites.ReferenceCodeExists("ZZZZZZ")
	if err != nil {
		t.Fatalf("reference code exists: %v", err)
	}
	if exists {
		t.Error("ZZZZZZ should not exist")
	}

	// Update mutable fields
	site.Name = "Maple Street Phase 2"
	site.Status = model.SiteStatusArchived
	site.NotificationEmails = []string{"new@example.com"}
	updated, err := sites.Update(site.ID, owner.ID, site)
	if err != nil {
		t.Fatalf("update site: %v", err)
	}
	if updated.Name != "Maple Street Phase 2" {
		t.Errorf("name = %q", updated.Name)
	}
	if updated.Status != model.SiteStatusArchived {
		t.Errorf("status = %q, want archived", updated.Status)
	}
	if len(updated.NotificationEmails) != 1 || updated.NotificationEmails[0] != "new@example.com" {
		t.Errorf("notification_emails = %v", updated.NotificationEmails)
	}
	// Identifiers are immutable through Update.
	if updated.ReferenceCode != "ABC234" {
		t.Errorf("reference_code changed to %q", updated.ReferenceCode)
	}
	if updated.CaptureToken != in.CaptureToken {
		t.Error("capture_token changed on update")
	}

	// Delete
	deleted, err := sites.Delete(site.ID, owner.ID)
	if err != nil {
		t.Fatalf("delete site: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report true")
	}
	got, err = sites.GetByID(site.ID)
	if err != nil {
		t.Fatalf("get deleted site: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSiteEmptyNotificationEmails(t *testing.T) {
	sites, us := setupSiteTestDB(t)
	owner := createSiteOwner(t, us, "owner@example.com")

	site, err := sites.Create(testSite(owner.ID, "No Emails", "AAAAAA"))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	if site.NotificationEmails == nil {
		t.Error("notification_emails must be empty slice, not nil")
	}
	if len(site.NotificationEmails) != 0 {
		t.Errorf("notification_emails = %v, want empty", site.NotificationEmails)
	}
}

func TestSiteOwnershipScoping(t *testing.T) {
	sites, us := setupSiteTestDB(t)
	alice := createSiteOwner(t, us, "alice@example.com")
	bob := createSiteOwner(t, us, "bob@example.com")

	site, err := sites.Create(testSite(alice.ID, "Alice Site", "AAAAAB"))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	// Foreign owner sees nothing.
	got, err := sites.GetByIDForOwner(site.ID, bob.ID)
	if err != nil {
		t.Fatalf("get for owner: %v", err)
	}
	if got != nil {
		t.Error("bob should not see alice's site")
	}

	site.Name = "Hijacked"
	updated, err := sites.Update(site.ID, bob.ID, site)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated != nil {
		t.Error("bob should not update alice's site")
	}

	deleted, err := sites.Delete(site.ID, bob.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Error("bob should not delete alice's site")
	}

	// The owner still can.
	got, err = sites.GetByIDForOwner(site.ID, alice.ID)
	if err != nil {
		t.Fatalf("get for owner: %v", err)
	}
	if got == nil {
		t.Error("alice should see her own site")
	}
}

func TestSiteUniqueReferenceCode(t *testing.T) {
	sites, us := setupSiteTestDB(t)
	owner := createSiteOwner(t, us, "owner@example.com")

	if _, err := sites.Create(testSite(owner.ID, "First", "SAMEC0")); err != nil {
		t.Fatalf("create first site: %v", err)
	}
	_, err := sites.Create(testSite(owner.ID, "Second", "SAMEC0"))
	if err == nil {
		t.Fatal("expected error for duplicate reference code")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got: %v", err)
	}
}

func TestSiteDuplicateNamePerOwner(t *testing.T) {
	sites, us := setupSiteTestDB(t)
	alice := createSiteOwner(t, us, "alice@example.com")
	bob := createSiteOwner(t, us, "bob@example.com")

	if _, err := sites.Create(testSite(alice.ID, "Main Street", "AAAAAC")); err != nil {
		t.Fatalf("create first site: %v", err)
	}

	// Same owner, same name: rejected.
	_, err := sites.Create(testSite(alice.ID, "Main Street", "AAAAAD"))
	if err == nil {
		t.Fatal("expected error for duplicate name under one owner")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got: %v", err)
	}

	// Different owner, same name: fine.
	if _, err := sites.Create(testSite(bob.ID, "Main Street", "AAAAAE")); err != nil {
		t.Fatalf("same name under another owner should work: %v", err)
	}
}

func TestSiteListByOwner(t *testing.T) {
	sites, us := setupSiteTestDB(t)
	alice := createSiteOwner(t, us, "alice@example.com")
	bob := createSiteOwner(t, us, "bob@example.com")

	for i, code := range []string{"AAAAA2", "AAAAA3", "AAAAA4"} {
		if _, err := sites.Create(testSite(alice.ID, "Site "+code, code)); err != nil {
			t.Fatalf("create site %d: %v", i, err)
		}
	}
	if _, err := sites.Create(testSite(bob.ID, "Bob Site", "BBBBB2")); err != nil {
		t.Fatalf("create bob site: %v", err)
	}

	list, err := sites.ListByOwner(alice.ID)
	if err != nil {
		t.Fatalf("list sites: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("len = %d, want 3", len(list))
	}
	for _, s := range list {
		if s.OwnerID != alice.ID {
			t.Errorf("foreign site %s in alice's list", s.ID)
		}
	}
}
