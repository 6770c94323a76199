package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// PromptRepository persists the one [models.PromptConfig] each user owns.
type PromptRepository struct {
	db *sql.DB
}

// NewPromptRepository creates a new [PromptRepository] with the given database connection
func NewPromptRepository(db *sql.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

const promptColumns = `id, user_id, topic, scope, wpm, covered_topics, created_at, updated_at`

// Create inserts a prompt config for a user that has none yet
func (r *PromptRepository) Create(config *models.PromptConfig) error {
	if config.CoveredTopics == nil {
		config.CoveredTopics = []string{}
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	covered, err := json.Marshal(config.CoveredTopics)
	if err != nil {
		return fmt.Errorf("failed to encode covered topics: %w", err)
	}

	now := time.Now().UTC()
	config.CreatedAt, config.UpdatedAt = now, now

	query := `
		INSERT INTO prompt_configs (user_id, topic, scope, wpm, covered_topics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query, config.UserID, config.Topic, config.Scope, config.WPM, string(covered), now, now)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: user %d already has a prompt config", shared.ErrDuplicate, config.UserID)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, config.UserID)
	case err != nil:
		return fmt.Errorf("failed to insert prompt config: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read prompt config id: %w", err)
	}
	config.ID = id
	return nil
}

// Get retrieves a prompt config by its own ID
func (r *PromptRepository) Get(id int64) (*models.PromptConfig, error) {
	query := `SELECT ` + promptColumns + ` FROM prompt_configs WHERE id = ?`

	config, err := scanPrompt(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: prompt config %d", shared.ErrNotFound, id)
	}
	return config, err
}

// GetByUser retrieves the prompt config owned by userID
func (r *PromptRepository) GetByUser(userID int64) (*models.PromptConfig, error) {
	query := `SELECT ` + promptColumns + ` FROM prompt_configs WHERE user_id = ?`

	config, err := scanPrompt(r.db.QueryRow(query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no prompt config for user %d", shared.ErrNotFound, userID)
	}
	return config, err
}

// UpdateField changes one of topic, scope or wpm. Any other field is rejected.
func (r *PromptRepository) UpdateField(userID int64, field, value string) error {
	f, err := models.ParsePromptField(field)
	if err != nil {
		return err
	}

	var arg any
	switch f {
	case models.FieldTopic:
		value = strings.TrimSpace(value)
		if value == "" {
			return fmt.Errorf("%w: topic cannot be empty", shared.ErrValidation)
		}
		arg = value
	case models.FieldScope:
		arg = strings.TrimSpace(value)
	case models.FieldWPM:
		wpm, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || wpm <= 0 {
			return fmt.Errorf("%w: wpm must be a positive integer, got %q", shared.ErrValidation, value)
		}
		arg = wpm
	}

	// f is one of three fixed column names.
	query := fmt.Sprintf(`UPDATE prompt_configs SET %s = ?, updated_at = ? WHERE user_id = ?`, f)

	result, err := r.db.Exec(query, arg, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update prompt %s: %w", f, err)
	}
	return requireAffected(result, "no prompt config for user %d", userID)
}

// AppendCoveredTopic adds title to the covered topics unless already present.
//
// The append and the duplicate check run as a single UPDATE. added is false when the title was
// already covered. A missing config is a [shared.ErrDataIntegrity] error.
func (r *PromptRepository) AppendCoveredTopic(configID int64, title string) (added bool, err error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return false, fmt.Errorf("%w: covered topic cannot be empty", shared.ErrValidation)
	}

	var exists bool
	if err := r.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM prompt_configs WHERE id = ?)`, configID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check prompt config: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("%w: prompt config %d does not exist", shared.ErrDataIntegrity, configID)
	}

	query := `
		UPDATE prompt_configs
		SET covered_topics = json_insert(covered_topics, '$[#]', ?), updated_at = ?
		WHERE id = ?
		AND NOT EXISTS (SELECT 1 FROM json_each(prompt_configs.covered_topics) WHERE value = ?)
	`

	result, err := r.db.Exec(query, title, time.Now().UTC(), configID, title)
	if err != nil {
		return false, fmt.Errorf("failed to append covered topic: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// Delete removes the prompt config owned by userID
func (r *PromptRepository) Delete(userID int64) error {
	result, err := r.db.Exec(`DELETE FROM prompt_configs WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete prompt config: %w", err)
	}
	return requireAffected(result, "no prompt config for user %d", userID)
}

func scanPrompt(row rowScanner) (*models.PromptConfig, error) {
	var (
		c       models.PromptConfig
		covered string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Topic, &c.Scope, &c.WPM, &covered, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan prompt config: %w", err)
	}

	if err := json.Unmarshal([]byte(covered), &c.CoveredTopics); err != nil {
		return nil, fmt.Errorf("%w: covered topics of prompt config %d: %v", shared.ErrDataIntegrity, c.ID, err)
	}
	if c.CoveredTopics == nil {
		c.CoveredTopics = []string{}
	}
	return &c, nil
}
