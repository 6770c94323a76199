package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// UserRepository persists [models.User] rows.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and sets its ID
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO users (username, voice_id, created_at, updated_at) VALUES (?, ?, ?, ?)
	`

	result, err := r.db.Exec(query, user.Username, user.VoiceID, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %q is taken", shared.ErrDuplicate, user.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(id int64) (*models.User, error) {
	query := `
		SELECT id, username, voice_id, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	user, err := scanUser(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username, ignoring case
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := `
		SELECT id, username, voice_id, created_at, updated_at
		FROM users
		WHERE username = ? COLLATE NOCASE
	`

	user, err := scanUser(r.db.QueryRow(query, strings.TrimSpace(username)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", shared.ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// UpdateVoice sets the user's default voice id
func (r *UserRepository) UpdateVoice(id int64, voiceID string) error {
	query := `UPDATE users SET voice_id = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.Exec(query, strings.TrimSpace(voiceID), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update voice: %w", err)
	}
	return requireAffected(result, "user %d", id)
}

// Delete removes a user. Prompt config, schedule entries and credentials cascade.
func (r *UserRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(result, "user %d", id)
}

// List returns every user ordered by id
func (r *UserRepository) List() ([]*models.User, error) {
	query := `
		SELECT id, username, voice_id, created_at, updated_at
		FROM users
		ORDER BY id ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.VoiceID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
