package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mlaflamme/proofonsite/internal/database"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCRUD(t *testing.T) {
	us := setupUserTestDB(t)

	id := uuid.NewString()
	user, err := us.Create(id, "manager@example.com", "hashed-password", "Site Manager")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID != id {
		t.Errorf("id = %q, want %q", user.ID, id)
	}
	if user.Email != "manager@example.com" {
		t.Errorf("email = %q", user.Email)
	}
	if user.PasswordHash != "hashed-password" {
		t.Errorf("password_hash = %q", user.PasswordHash)
	}
	if user.DisplayName != "Site Manager" {
		t.Errorf("display_name = %q", user.DisplayName)
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	// Get by email
	got, err := us.GetByEmail("manager@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != id {
		t.Fatalf("get by email = %+v, want user %s", got, id)
	}

	// Update profile
	updated, err := us.UpdateProfile(id, "Renamed Manager")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.DisplayName != "Renamed Manager" {
		t.Errorf("display_name = %q, want Renamed Manager", updated.DisplayName)
	}
	if updated.Email != "manager@example.com" {
		t.Error("email must not change on profile update")
	}

	// Delete
	if err := us.Delete(id); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err = us.GetByID(id)
	if err != nil {
		t.Fatalf("get deleted user: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestUserNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	got, err := us.GetByID(uuid.NewString())
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown id")
	}

	got, err = us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create(uuid.NewString(), "dup@example.com", "h1", "First"); err != nil {
		t.Fatalf("create first user: %v", err)
	}
	_, err := us.Create(uuid.NewString(), "dup@example.com", "h2", "Second")
	if err == nil {
		t.Fatal("expected error for duplicate email")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got: %v", err)
	}
}
