package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/desertthunder/autoshorts/internal/shared"
)

// Store groups the repositories that share one database connection.
type Store struct {
	DB          *sql.DB
	Users       *UserRepository
	Prompts     *PromptRepository
	Schedules   *ScheduleRepository
	Credentials *CredentialRepository
}

// NewStore builds every repository on db. cipher may be nil when credentials are not touched.
func NewStore(db *sql.DB, cipher *shared.Cipher) *Store {
	return &Store{
		DB:          db,
		Users:       NewUserRepository(db),
		Prompts:     NewPromptRepository(db),
		Schedules:   NewScheduleRepository(db),
		Credentials: NewCredentialRepository(db, cipher),
	}
}

// OpenStore opens the database at path, applies migrations and returns a [Store].
func OpenStore(path string, cipher *shared.Cipher) (*Store, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return NewStore(db, cipher), nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// requireAffected maps zero affected rows to [shared.ErrNotFound].
func requireAffected(result sql.Result, format string, args ...any) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return nil
}
