package repository

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/models"
)

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// TokenCreateResult carries the plaintext token; it is only shown once.
type TokenCreateResult struct {
	Token models.APIToken
	Key   string
}

// Create issues a new bearer token for a user.
func (r *TokenRepository) Create(userID, name string, expiresAt *time.Time) (*TokenCreateResult, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	key := "odk_" + hex.EncodeToString(keyBytes)

	token := models.APIToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		KeyHash:   HashKey(key),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	_, err := r.db.Exec(`
		INSERT INTO api_tokens (id, user_id, name, key_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.Name, token.KeyHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &TokenCreateResult{Token: token, Key: key}, nil
}

// GetByHash returns a token by key hash, or nil.
func (r *TokenRepository) GetByHash(hash string) (*models.APIToken, error) {
	t := &models.APIToken{}
	var lastUsedAt, expiresAt sql.NullTime

	err := r.db.QueryRow(`
		SELECT id, user_id, name, key_hash, last_used_at, expires_at, created_at
		FROM api_tokens WHERE key_hash = ?`, hash,
	).Scan(&t.ID, &t.UserID, &t.Name, &t.KeyHash, &lastUsedAt, &expiresAt, &t.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastUsedAt.Valid {
		t.LastUsedAt = &lastUsedAt.Time
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	return t, nil
}

// UpdateLastUsed records when the token was last presented.
func (r *TokenRepository) UpdateLastUsed(id string) error {
	_, err := r.db.Exec("UPDATE api_tokens SET last_used_at = ? WHERE id = ?", time.Now(), id)
	return err
}

// Revoke deletes a token by ID.
func (r *TokenRepository) Revoke(id string) error {
	_, err := r.db.Exec("DELETE FROM api_tokens WHERE id = ?", id)
	return err
}

// HashKey computes the SHA-256 hash of a bearer token.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
