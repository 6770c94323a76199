package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// CredentialRepository persists [models.PlatformCredential] rows.
//
// Secret fields are encrypted with the [shared.Cipher] before they reach the database and decrypted on
// read. A repository without a cipher fails every call with [shared.ErrMissingKey].
type CredentialRepository struct {
	db     *sql.DB
	cipher *shared.Cipher
}

// NewCredentialRepository creates a new [CredentialRepository]
func NewCredentialRepository(db *sql.DB, cipher *shared.Cipher) *CredentialRepository {
	return &CredentialRepository{db: db, cipher: cipher}
}

const credentialColumns = `id, user_id, platform, access_token, refresh_token, client_id, client_secret,
	cookies, login_username, login_password, account_id, expiry, created_at, updated_at`

// Upsert stores cred for its (user, platform). Empty fields keep the stored value.
//
// On return cred holds the merged record.
func (r *CredentialRepository) Upsert(cred *models.PlatformCredential) error {
	if r.cipher == nil {
		return fmt.Errorf("%w: credentials cannot be stored", shared.ErrMissingKey)
	}
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	secrets := []string{
		cred.AccessToken, cred.RefreshToken, cred.ClientID, cred.ClientSecret,
		cred.Cookies, cred.LoginUsername, cred.LoginPassword,
	}
	args := []any{cred.UserID, string(cred.Platform)}
	for _, s := range secrets {
		v, err := r.seal(s)
		if err != nil {
			return err
		}
		args = append(args, v)
	}

	var expiry any
	if cred.Expiry != nil {
		expiry = cred.Expiry.UTC()
	}
	now := time.Now().UTC()
	args = append(args, cred.AccountID, expiry, now, now)

	query := `
		INSERT INTO platform_credentials (
			user_id, platform, access_token, refresh_token, client_id, client_secret,
			cookies, login_username, login_password, account_id, expiry, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token = COALESCE(excluded.access_token, access_token),
			refresh_token = COALESCE(excluded.refresh_token, refresh_token),
			client_id = COALESCE(excluded.client_id, client_id),
			client_secret = COALESCE(excluded.client_secret, client_secret),
			cookies = COALESCE(excluded.cookies, cookies),
			login_username = COALESCE(excluded.login_username, login_username),
			login_password = COALESCE(excluded.login_password, login_password),
			account_id = CASE WHEN excluded.account_id = '' THEN account_id ELSE excluded.account_id END,
			expiry = COALESCE(excluded.expiry, expiry),
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user %d", shared.ErrNotFound, cred.UserID)
		}
		return fmt.Errorf("failed to store %s credentials: %w", cred.Platform, err)
	}

	stored, err := r.Get(cred.UserID, cred.Platform)
	if err != nil {
		return err
	}
	*cred = *stored
	return nil
}

// Get returns the decrypted credentials for (userID, platform).
func (r *CredentialRepository) Get(userID int64, platform models.Platform) (*models.PlatformCredential, error) {
	if r.cipher == nil {
		return nil, fmt.Errorf("%w: credentials cannot be read", shared.ErrMissingKey)
	}

	query := `SELECT ` + credentialColumns + ` FROM platform_credentials WHERE user_id = ? AND platform = ?`

	cred, err := r.scan(r.db.QueryRow(query, userID, string(platform)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s credentials for user %d", shared.ErrMissingCredentials, platform, userID)
	}
	return cred, err
}

// ListByUser returns every credential a user has stored, in platform name order.
func (r *CredentialRepository) ListByUser(userID int64) ([]*models.PlatformCredential, error) {
	if r.cipher == nil {
		return nil, fmt.Errorf("%w: credentials cannot be read", shared.ErrMissingKey)
	}

	query := `SELECT ` + credentialColumns + ` FROM platform_credentials WHERE user_id = ? ORDER BY platform ASC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.PlatformCredential
	for rows.Next() {
		cred, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return creds, nil
}

// Delete removes the credentials for (userID, platform).
func (r *CredentialRepository) Delete(userID int64, platform models.Platform) error {
	result, err := r.db.Exec(`DELETE FROM platform_credentials WHERE user_id = ? AND platform = ?`, userID, string(platform))
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return requireAffected(result, "no %s credentials for user %d", platform, userID)
}

// seal encrypts s, mapping the empty string to NULL.
func (r *CredentialRepository) seal(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	return r.cipher.Encrypt(s)
}

func (r *CredentialRepository) open(ns sql.NullString, field string, id int64) (string, error) {
	if !ns.Valid || ns.String == "" {
		return "", nil
	}
	plain, err := r.cipher.Decrypt(ns.String)
	if err != nil {
		return "", fmt.Errorf("credential %d %s: %w", id, field, err)
	}
	return plain, nil
}

func (r *CredentialRepository) scan(row rowScanner) (*models.PlatformCredential, error) {
	var (
		c        models.PlatformCredential
		platform string
		secrets  [7]sql.NullString
		expiry   sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.UserID, &platform,
		&secrets[0], &secrets[1], &secrets[2], &secrets[3], &secrets[4], &secrets[5], &secrets[6],
		&c.AccountID, &expiry, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	c.Platform = models.Platform(platform)
	if expiry.Valid {
		t := expiry.Time
		c.Expiry = &t
	}

	fields := []struct {
		name string
		dst  *string
	}{
		{"access_token", &c.AccessToken},
		{"refresh_token", &c.RefreshToken},
		{"client_id", &c.ClientID},
		{"client_secret", &c.ClientSecret},
		{"cookies", &c.Cookies},
		{"login_username", &c.LoginUsername},
		{"login_password", &c.LoginPassword},
	}
	for i, f := range fields {
		if *f.dst, err = r.open(secrets[i], f.name, c.ID); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
