package repository

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/opsdesk/opsdesk/internal/models"
)

func newTestUser(t *testing.T, repo *UserRepository, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Name:     "Test User",
		Email:    email,
		Role:     role,
		IsActive: true,
	}
	if err := repo.Create(u, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return u
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	u := newTestUser(t, repo, "admin@example.com", models.RoleAdmin)
	if u.ID == "" {
		t.Error("Create() did not set ID")
	}

	got, err := repo.GetByEmail("admin@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByEmail() returned nil")
	}
	if got.Role != models.RoleAdmin {
		t.Errorf("Role = %q, want ADMIN", got.Role)
	}

	missing, err := repo.GetByID("nonexistent")
	if err != nil {
		t.Fatalf("GetByID(missing) error = %v", err)
	}
	if missing != nil {
		t.Error("GetByID(missing) should return nil")
	}
}

func TestUserRepository_UpdateRole(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	admin := newTestUser(t, repo, "admin@example.com", models.RoleAdmin)
	agent := newTestUser(t, repo, "agent@example.com", models.RoleAgent)

	if err := repo.UpdateRole(agent.ID, models.RoleManager, admin.ID); err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}

	got, _ := repo.GetByID(agent.ID)
	if got.Role != models.RoleManager {
		t.Errorf("Role = %q, want MANAGER", got.Role)
	}

	err := repo.UpdateRole("nonexistent", models.RoleViewer, admin.ID)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("UpdateRole(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestUserRepository_SelfChangeRefused(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	admin := newTestUser(t, repo, "admin@example.com", models.RoleAdmin)

	err := repo.UpdateRole(admin.ID, models.RoleViewer, admin.ID)
	if !errors.Is(err, ErrSelfChange) {
		t.Fatalf("UpdateRole(self) error = %v, want ErrSelfChange", err)
	}

	err = repo.UpdateStatus(admin.ID, false, admin.ID)
	if !errors.Is(err, ErrSelfChange) {
		t.Fatalf("UpdateStatus(self) error = %v, want ErrSelfChange", err)
	}

	got, _ := repo.GetByID(admin.ID)
	if got.Role != models.RoleAdmin || !got.IsActive {
		t.Error("self change should leave the user untouched")
	}
}

func TestUserRepository_UpdateStatus(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	admin := newTestUser(t, repo, "admin@example.com", models.RoleAdmin)
	agent := newTestUser(t, repo, "agent@example.com", models.RoleAgent)

	if err := repo.UpdateStatus(agent.ID, false, admin.ID); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, _ := repo.GetByID(agent.ID)
	if got.IsActive {
		t.Error("user should be deactivated")
	}
}

func TestUserRepository_List(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	newTestUser(t, repo, "b@example.com", models.RoleViewer)
	newTestUser(t, repo, "a@example.com", models.RoleAdmin)

	users, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("List() returned %d users, want 2", len(users))
	}
	// Same name, so email breaks the tie
	if users[0].Email != "a@example.com" {
		t.Errorf("List() first = %q, want a@example.com", users[0].Email)
	}
}

func TestUserRepository_Delete(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	newTestUser(t, repo, "gone@example.com", models.RoleViewer)

	if err := repo.Delete("gone@example.com"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	err := repo.Delete("gone@example.com")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Delete(missing) error = %v, want sql.ErrNoRows", err)
	}
}
