package repository

import (
	"database/sql"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends an entry to the audit log.
func (r *AuditRepository) Record(userID, userEmail, action, entityType, entityID, detail string) error {
	_, err := r.db.Exec(`
		INSERT INTO audit_log (user_id, user_email, action, entity_type, entity_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, userEmail, action, entityType, entityID, detail, time.Now(),
	)
	return err
}

// List returns the most recent entries, newest first.
func (r *AuditRepository) List(limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT id, user_id, user_email, action, entity_type, entity_id, detail, created_at
		FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserEmail, &e.Action, &e.EntityType, &e.EntityID, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Detail = detail.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
