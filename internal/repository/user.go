package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/models"
)

// ErrSelfChange is returned when a user tries to change their own role or
// active status.
var ErrSelfChange = errors.New("users cannot change their own role or status")

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user. passwordHash may be empty for token-only users.
func (r *UserRepository) Create(u *models.User, passwordHash string) error {
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt

	var hash any
	if passwordHash != "" {
		hash = passwordHash
	}

	_, err := r.db.Exec(`
		INSERT INTO users (id, name, email, role, is_active, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, string(u.Role), u.IsActive, hash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID returns a user by ID, or nil if it does not exist.
func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return r.get("SELECT id, name, email, role, is_active, created_at, updated_at FROM users WHERE id = ?", id)
}

// GetByEmail returns a user by email, or nil.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.get("SELECT id, name, email, role, is_active, created_at, updated_at FROM users WHERE email = ?", email)
}

func (r *UserRepository) get(query string, arg any) (*models.User, error) {
	u := &models.User{}
	var role string
	err := r.db.QueryRow(query, arg).Scan(&u.ID, &u.Name, &u.Email, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return u, nil
}

// List returns all users ordered by name.
func (r *UserRepository) List() ([]*models.User, error) {
	rows, err := r.db.Query("SELECT id, name, email, role, is_active, created_at, updated_at FROM users ORDER BY name, email")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u := &models.User{}
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateRole changes a user's role. actorID is the user performing the
// change; changing one's own role fails with ErrSelfChange.
func (r *UserRepository) UpdateRole(id string, role models.Role, actorID string) error {
	if id == actorID {
		return ErrSelfChange
	}

	res, err := r.db.Exec(
		"UPDATE users SET role = ?, updated_at = ? WHERE id = ?",
		string(role), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus sets a user's active flag. Deactivating oneself fails with
// ErrSelfChange.
func (r *UserRepository) UpdateStatus(id string, active bool, actorID string) error {
	if id == actorID {
		return ErrSelfChange
	}

	res, err := r.db.Exec(
		"UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?",
		active, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a user by email. Used by the CLI only.
func (r *UserRepository) Delete(email string) error {
	res, err := r.db.Exec("DELETE FROM users WHERE email = ?", email)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
