package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// weekOrder sorts the day column Monday first.
const weekOrder = `
	CASE day
		WHEN 'Monday' THEN 0 WHEN 'Tuesday' THEN 1 WHEN 'Wednesday' THEN 2 WHEN 'Thursday' THEN 3
		WHEN 'Friday' THEN 4 WHEN 'Saturday' THEN 5 ELSE 6
	END`

// ScheduleRepository persists [models.ScheduleEntry] rows and answers slot occupancy queries.
type ScheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new [ScheduleRepository] with the given database connection
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Add inserts entry. An identical (user, day, hour) triple is a [shared.ErrDuplicate] error.
func (r *ScheduleRepository) Add(entry *models.ScheduleEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO schedules (user_id, day, hour, created_at) VALUES (?, ?, ?, ?)`

	result, err := r.db.Exec(query, entry.UserID, entry.Slot.Day.String(), entry.Slot.Hour, entry.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: user %d is already scheduled for %s", shared.ErrDuplicate, entry.UserID, entry.Slot)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, entry.UserID)
	case err != nil:
		return fmt.Errorf("failed to insert schedule entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read schedule entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// Remove deletes the entry matching the exact (user, day, hour) triple.
func (r *ScheduleRepository) Remove(userID int64, slot models.Slot) error {
	if err := slot.Validate(); err != nil {
		return err
	}

	query := `DELETE FROM schedules WHERE user_id = ? AND day = ? AND hour = ?`

	result, err := r.db.Exec(query, userID, slot.Day.String(), slot.Hour)
	if err != nil {
		return fmt.Errorf("failed to delete schedule entry: %w", err)
	}
	return requireAffected(result, "user %d has no entry at %s", userID, slot)
}

// ListByUser returns a user's entries, Monday first, then by hour.
func (r *ScheduleRepository) ListByUser(userID int64) ([]*models.ScheduleEntry, error) {
	query := `
		SELECT id, user_id, day, hour, created_at
		FROM schedules
		WHERE user_id = ?
		ORDER BY ` + weekOrder + `, hour ASC
	`
	return r.query(query, userID)
}

// List returns every entry in week order, then by user.
func (r *ScheduleRepository) List() ([]*models.ScheduleEntry, error) {
	query := `
		SELECT id, user_id, day, hour, created_at
		FROM schedules
		ORDER BY ` + weekOrder + `, hour ASC, user_id ASC
	`
	return r.query(query)
}

// UsersInSlot returns the ids of users with an entry at exactly slot.
func (r *ScheduleRepository) UsersInSlot(slot models.Slot) ([]int64, error) {
	rows, err := r.db.Query(`SELECT user_id FROM schedules WHERE day = ? AND hour = ? ORDER BY user_id`, slot.Day.String(), slot.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// Occupancy counts the entries at slot across all users.
func (r *ScheduleRepository) Occupancy(slot models.Slot) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM schedules WHERE day = ? AND hour = ?`, slot.Day.String(), slot.Hour).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count slot occupancy: %w", err)
	}
	return n, nil
}

// OccupiedSlots returns every slot with at least one entry, in week order.
func (r *ScheduleRepository) OccupiedSlots() ([]models.Slot, error) {
	query := `
		SELECT DISTINCT day, hour
		FROM schedules
		ORDER BY ` + weekOrder + `, hour ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query occupied slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		var (
			day  string
			hour int
		)
		if err := rows.Scan(&day, &hour); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slot, err := models.NewSlot(day, hour)
		if err != nil {
			return nil, fmt.Errorf("%w: stored slot %s %d: %v", shared.ErrDataIntegrity, day, hour, err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return slots, nil
}

func (r *ScheduleRepository) query(query string, args ...any) ([]*models.ScheduleEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ScheduleEntry
	for rows.Next() {
		var (
			e   models.ScheduleEntry
			day string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &day, &e.Slot.Hour, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		d, err := models.ParseWeekday(day)
		if err != nil {
			return nil, fmt.Errorf("%w: schedule entry %d: %v", shared.ErrDataIntegrity, e.ID, err)
		}
		e.Slot.Day = d
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}
