package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/models"
)

// ErrDefaultTemplate is returned when deleting the default template of a type.
var ErrDefaultTemplate = errors.New("default template cannot be deleted")

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// TemplateListFilter for filtering the template list server-side.
type TemplateListFilter struct {
	Search string
	Type   string
}

// Create creates a new template and its first version snapshot.
func (r *TemplateRepository) Create(t *models.EmailTemplate, createdBy string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t.ID = uuid.New().String()
	t.Version = 1
	t.CreatedBy = createdBy
	t.UpdatedBy = createdBy
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	vars, err := marshalVariables(t.Variables)
	if err != nil {
		return err
	}

	if t.IsDefault {
		if err := clearDefault(tx, t.Type); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT INTO templates (id, name, description, type, subject, body, variables, is_active, is_default, version, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Type, t.Subject, t.Body, vars, t.IsActive, t.IsDefault, t.Version, t.CreatedBy, t.UpdatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO template_versions (template_id, version, subject, body, change_note, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, 1, t.Subject, t.Body, "Initial version", createdBy, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template version: %w", err)
	}

	return tx.Commit()
}

// GetByID returns a template by ID, or nil if it does not exist.
func (r *TemplateRepository) GetByID(id string) (*models.EmailTemplate, error) {
	t := &models.EmailTemplate{}
	var vars sql.NullString
	err := r.db.QueryRow(`
		SELECT id, name, description, type, subject, body, variables, is_active, is_default, version, usage_count, test_count, created_by, updated_by, created_at, updated_at
		FROM templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.Type, &t.Subject, &t.Body, &vars, &t.IsActive, &t.IsDefault, &t.Version, &t.UsageCount, &t.TestCount, &t.CreatedBy, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalVariables(vars, &t.Variables); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns templates with optional filtering, newest updates first.
func (r *TemplateRepository) List(filter TemplateListFilter) ([]*models.EmailTemplate, error) {
	query := `
		SELECT id, name, description, type, subject, body, variables, is_active, is_default, version, usage_count, test_count, created_by, updated_by, created_at, updated_at
		FROM templates WHERE 1=1`
	args := []any{}

	if filter.Search != "" {
		query += " AND (name LIKE ? OR description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}

	query += " ORDER BY updated_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []*models.EmailTemplate{}
	for rows.Next() {
		t := &models.EmailTemplate{}
		var vars sql.NullString
		err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Type, &t.Subject, &t.Body, &vars, &t.IsActive, &t.IsDefault, &t.Version, &t.UsageCount, &t.TestCount, &t.CreatedBy, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if err := unmarshalVariables(vars, &t.Variables); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	return templates, rows.Err()
}

// Update updates a template and records a new version snapshot. The type
// column is never touched; it is immutable after creation.
func (r *TemplateRepository) Update(t *models.EmailTemplate, changeNote, updatedBy string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRow("SELECT version FROM templates WHERE id = ?", t.ID).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("template not found: %w", err)
	}

	t.Version = currentVersion + 1
	t.UpdatedBy = updatedBy
	t.UpdatedAt = time.Now()

	vars, err := marshalVariables(t.Variables)
	if err != nil {
		return err
	}

	if t.IsDefault {
		if err := clearDefault(tx, t.Type); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		UPDATE templates SET name = ?, description = ?, subject = ?, body = ?, variables = ?, is_active = ?, is_default = ?, version = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		t.Name, t.Description, t.Subject, t.Body, vars, t.IsActive, t.IsDefault, t.Version, t.UpdatedBy, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO template_versions (template_id, version, subject, body, change_note, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Version, t.Subject, t.Body, changeNote, updatedBy, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template version: %w", err)
	}

	return tx.Commit()
}

// Delete deletes a template. Deleting a default template fails with
// ErrDefaultTemplate.
func (r *TemplateRepository) Delete(id string) error {
	var isDefault bool
	err := r.db.QueryRow("SELECT is_default FROM templates WHERE id = ?", id).Scan(&isDefault)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if isDefault {
		return ErrDefaultTemplate
	}

	_, err = r.db.Exec("DELETE FROM templates WHERE id = ?", id)
	return err
}

// Duplicate clones a template under a fresh identifier. The clone starts at
// version 1 and is never the default for its type.
func (r *TemplateRepository) Duplicate(id, createdBy string) (*models.EmailTemplate, error) {
	src, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, nil
	}

	clone := &models.EmailTemplate{
		Name:        src.Name + " (Copy)",
		Description: src.Description,
		Type:        src.Type,
		Subject:     src.Subject,
		Body:        src.Body,
		Variables:   src.Variables,
		IsActive:    src.IsActive,
		IsDefault:   false,
	}

	if err := r.Create(clone, createdBy); err != nil {
		return nil, err
	}
	return clone, nil
}

// GetVersions returns all versions of a template, newest first.
func (r *TemplateRepository) GetVersions(templateID string) ([]models.TemplateVersion, error) {
	rows, err := r.db.Query(`
		SELECT id, template_id, version, subject, body, change_note, created_by, created_at
		FROM template_versions WHERE template_id = ? ORDER BY version DESC`, templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []models.TemplateVersion{}
	for rows.Next() {
		var v models.TemplateVersion
		var note, by sql.NullString
		err := rows.Scan(&v.ID, &v.TemplateID, &v.Version, &v.Subject, &v.Body, &note, &by, &v.CreatedAt)
		if err != nil {
			return nil, err
		}
		v.ChangeNote = note.String
		v.CreatedBy = by.String
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// GetVersion returns a specific version, or nil.
func (r *TemplateRepository) GetVersion(templateID string, version int) (*models.TemplateVersion, error) {
	v := &models.TemplateVersion{}
	var note, by sql.NullString
	err := r.db.QueryRow(`
		SELECT id, template_id, version, subject, body, change_note, created_by, created_at
		FROM template_versions WHERE template_id = ? AND version = ?`, templateID, version,
	).Scan(&v.ID, &v.TemplateID, &v.Version, &v.Subject, &v.Body, &note, &by, &v.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.ChangeNote = note.String
	v.CreatedBy = by.String
	return v, nil
}

// IncrementTestCount bumps the test counter after a test send.
func (r *TemplateRepository) IncrementTestCount(id string) error {
	_, err := r.db.Exec("UPDATE templates SET test_count = test_count + 1 WHERE id = ?", id)
	return err
}

// IncrementUsageCount bumps the usage counter after a production send.
func (r *TemplateRepository) IncrementUsageCount(id string) error {
	_, err := r.db.Exec("UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?", id)
	return err
}

// clearDefault drops the default flag from other templates of the same type
// so at most one default exists per type.
func clearDefault(tx *sql.Tx, templateType string) error {
	_, err := tx.Exec("UPDATE templates SET is_default = 0 WHERE type = ?", templateType)
	return err
}

func marshalVariables(vars []models.Variable) (string, error) {
	if len(vars) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("failed to encode variables: %w", err)
	}
	return string(data), nil
}

func unmarshalVariables(raw sql.NullString, out *[]models.Variable) error {
	if !raw.Valid || raw.String == "" {
		*out = nil
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), out); err != nil {
		return fmt.Errorf("failed to decode variables: %w", err)
	}
	return nil
}
