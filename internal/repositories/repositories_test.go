package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	key, err := shared.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cipher, err := shared.NewCipher(key)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	return NewStore(setupTestDB(t), cipher)
}

func createUser(t *testing.T, s *Store, username string) *models.User {
	t.Helper()

	user := models.NewUser(username, "voice-"+username)
	if err := s.Users.Create(user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	t.Run("Create & Get", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")

		if user.ID == 0 {
			t.Fatal("user ID should be set after creation")
		}

		got, err := s.Users.Get(user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Username != "ada" || got.VoiceID != "voice-ada" {
			t.Errorf("unexpected user %+v", got)
		}
	})

	t.Run("GetByUsername ignores case", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "Ada")

		got, err := s.Users.GetByUsername("ADA")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("got user %d, want %d", got.ID, user.ID)
		}
	})

	t.Run("Duplicate username", func(t *testing.T) {
		s := setupTestStore(t)
		createUser(t, s, "ada")

		err := s.Users.Create(models.NewUser("ada", ""))
		if !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		s := setupTestStore(t)
		if err := s.Users.Create(models.NewUser("", "")); !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("UpdateVoice", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")

		if err := s.Users.UpdateVoice(user.ID, "new-voice"); err != nil {
			t.Fatalf("failed to update voice: %v", err)
		}
		got, _ := s.Users.Get(user.ID)
		if got.VoiceID != "new-voice" {
			t.Errorf("VoiceID = %q", got.VoiceID)
		}

		if err := s.Users.UpdateVoice(999, "x"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		s := setupTestStore(t)
		for _, name := range []string{"ada", "grace", "linus"} {
			createUser(t, s, name)
		}

		users, err := s.Users.List()
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 3 || users[0].Username != "ada" || users[2].Username != "linus" {
			t.Errorf("unexpected users %v", users)
		}
	})

	t.Run("Delete cascades", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")

		if err := s.Prompts.Create(&models.PromptConfig{UserID: user.ID, Topic: "surgery", WPM: 125}); err != nil {
			t.Fatalf("failed to create prompt: %v", err)
		}
		entry, _ := models.NewScheduleEntry(user.ID, "Monday", 9)
		if err := s.Schedules.Add(entry); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
		if err := s.Credentials.Upsert(&models.PlatformCredential{UserID: user.ID, Platform: models.YouTube, RefreshToken: "r"}); err != nil {
			t.Fatalf("failed to store credentials: %v", err)
		}

		if err := s.Users.Delete(user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		for _, table := range []string{"prompt_configs", "schedules", "platform_credentials"} {
			var n int
			if err := s.DB.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
				t.Fatalf("failed to count %s: %v", table, err)
			}
			if n != 0 {
				t.Errorf("%s still has %d rows after user delete", table, n)
			}
		}

		if err := s.Users.Delete(user.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("second delete: expected not found, got %v", err)
		}
	})
}

func TestPromptRepository(t *testing.T) {
	setup := func(t *testing.T) (*Store, *models.PromptConfig) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")
		config := &models.PromptConfig{UserID: user.ID, Topic: "surgery", Scope: "history", WPM: 125}
		if err := s.Prompts.Create(config); err != nil {
			t.Fatalf("failed to create prompt config: %v", err)
		}
		return s, config
	}

	t.Run("Create & GetByUser", func(t *testing.T) {
		s, config := setup(t)

		got, err := s.Prompts.GetByUser(config.UserID)
		if err != nil {
			t.Fatalf("failed to get prompt config: %v", err)
		}
		if got.ID != config.ID || got.Topic != "surgery" || got.WPM != 125 {
			t.Errorf("unexpected config %+v", got)
		}
		if got.CoveredTopics == nil || len(got.CoveredTopics) != 0 {
			t.Errorf("expected empty covered topics, got %v", got.CoveredTopics)
		}
	})

	t.Run("one config per user", func(t *testing.T) {
		s, config := setup(t)

		err := s.Prompts.Create(&models.PromptConfig{UserID: config.UserID, Topic: "other", WPM: 100})
		if !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		s := setupTestStore(t)

		err := s.Prompts.Create(&models.PromptConfig{UserID: 42, Topic: "x", WPM: 100})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("UpdateField", func(t *testing.T) {
		s, config := setup(t)

		tt := []struct {
			field   string
			value   string
			wantErr error
		}{
			{field: "topic", value: "dentistry"},
			{field: "scope", value: "fun facts"},
			{field: "wpm", value: "150"},
			{field: "wpm", value: "0", wantErr: shared.ErrValidation},
			{field: "wpm", value: "fast", wantErr: shared.ErrValidation},
			{field: "topic", value: "  ", wantErr: shared.ErrValidation},
			{field: "covered_topics", value: "[]", wantErr: shared.ErrValidation},
		}
		for _, tc := range tt {
			t.Run(tc.field+"="+tc.value, func(t *testing.T) {
				err := s.Prompts.UpdateField(config.UserID, tc.field, tc.value)
				if tc.wantErr == nil && err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			})
		}

		got, _ := s.Prompts.GetByUser(config.UserID)
		if got.Topic != "dentistry" || got.Scope != "fun facts" || got.WPM != 150 {
			t.Errorf("unexpected config after updates %+v", got)
		}

		if err := s.Prompts.UpdateField(999, "topic", "x"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("AppendCoveredTopic is idempotent", func(t *testing.T) {
		s, config := setup(t)

		for i, title := range []string{"Scalpels", "Sutures", "Scalpels", "Scalpels"} {
			added, err := s.Prompts.AppendCoveredTopic(config.ID, title)
			if err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
			if want := i < 2; added != want {
				t.Errorf("append %d (%s): added = %v, want %v", i, title, added, want)
			}
		}

		got, _ := s.Prompts.Get(config.ID)
		if len(got.CoveredTopics) != 2 || got.CoveredTopics[0] != "Scalpels" || got.CoveredTopics[1] != "Sutures" {
			t.Errorf("covered topics = %v", got.CoveredTopics)
		}
	})

	t.Run("AppendCoveredTopic concurrent", func(t *testing.T) {
		s, config := setup(t)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Prompts.AppendCoveredTopic(config.ID, "Scalpels"); err != nil {
					t.Errorf("append failed: %v", err)
				}
			}()
		}
		wg.Wait()

		got, _ := s.Prompts.Get(config.ID)
		if len(got.CoveredTopics) != 1 {
			t.Errorf("covered topics = %v, want exactly one entry", got.CoveredTopics)
		}
	})

	t.Run("AppendCoveredTopic missing config", func(t *testing.T) {
		s := setupTestStore(t)

		_, err := s.Prompts.AppendCoveredTopic(77, "Scalpels")
		if !errors.Is(err, shared.ErrDataIntegrity) {
			t.Fatalf("expected data integrity error, got %v", err)
		}
	})
}

func TestScheduleRepository(t *testing.T) {
	add := func(t *testing.T, s *Store, userID int64, day string, hour int) error {
		t.Helper()
		entry, err := models.NewScheduleEntry(userID, day, hour)
		if err != nil {
			t.Fatalf("invalid entry: %v", err)
		}
		return s.Schedules.Add(entry)
	}

	t.Run("duplicate triple", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")

		if err := add(t, s, user.ID, "Monday", 9); err != nil {
			t.Fatalf("first add: %v", err)
		}
		if err := add(t, s, user.ID, "monday", 9); !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if n, _ := s.Schedules.Occupancy(models.Slot{Day: time.Monday, Hour: 9}); n != 1 {
			t.Errorf("occupancy = %d, want 1", n)
		}
	})

	t.Run("ListByUser orders Monday first then hour", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")

		for _, e := range []struct {
			day  string
			hour int
		}{{"Sunday", 8}, {"Monday", 14}, {"Wednesday", 7}, {"Monday", 9}} {
			if err := add(t, s, user.ID, e.day, e.hour); err != nil {
				t.Fatalf("add: %v", err)
			}
		}

		entries, err := s.Schedules.ListByUser(user.ID)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}

		want := []models.Slot{
			{Day: time.Monday, Hour: 9},
			{Day: time.Monday, Hour: 14},
			{Day: time.Wednesday, Hour: 7},
			{Day: time.Sunday, Hour: 8},
		}
		if len(entries) != len(want) {
			t.Fatalf("got %d entries, want %d", len(entries), len(want))
		}
		for i, e := range entries {
			if e.Slot != want[i] {
				t.Errorf("entry %d = %v, want %v", i, e.Slot, want[i])
			}
		}
	})

	t.Run("occupancy and slot users", func(t *testing.T) {
		s := setupTestStore(t)
		a := createUser(t, s, "ada")
		b := createUser(t, s, "grace")
		monday9 := models.Slot{Day: time.Monday, Hour: 9}

		_ = add(t, s, a.ID, "Monday", 9)
		_ = add(t, s, b.ID, "Monday", 9)
		_ = add(t, s, b.ID, "Friday", 17)

		if n, _ := s.Schedules.Occupancy(monday9); n != 2 {
			t.Errorf("occupancy = %d, want 2", n)
		}
		ids, err := s.Schedules.UsersInSlot(monday9)
		if err != nil {
			t.Fatalf("UsersInSlot: %v", err)
		}
		if len(ids) != 2 || ids[0] != a.ID || ids[1] != b.ID {
			t.Errorf("UsersInSlot = %v", ids)
		}

		slots, err := s.Schedules.OccupiedSlots()
		if err != nil {
			t.Fatalf("OccupiedSlots: %v", err)
		}
		if len(slots) != 2 || slots[0] != monday9 || slots[1] != (models.Slot{Day: time.Friday, Hour: 17}) {
			t.Errorf("OccupiedSlots = %v", slots)
		}

		if ids, _ := s.Schedules.UsersInSlot(models.Slot{Day: time.Monday, Hour: 10}); len(ids) != 0 {
			t.Errorf("expected no users at Monday 10, got %v", ids)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")
		slot := models.Slot{Day: time.Tuesday, Hour: 6}
		_ = add(t, s, user.ID, "Tuesday", 6)

		if err := s.Schedules.Remove(user.ID, slot); err != nil {
			t.Fatalf("remove: %v", err)
		}
		err := s.Schedules.Remove(user.ID, slot)
		if !errors.Is(err, shared.ErrDataIntegrity) {
			t.Fatalf("expected data integrity error for missing entry, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		s := setupTestStore(t)
		if err := add(t, s, 404, "Monday", 9); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestCredentialRepository(t *testing.T) {
	t.Run("stores ciphertext and returns plaintext", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")

		cred := &models.PlatformCredential{
			UserID:       user.ID,
			Platform:     models.YouTube,
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RefreshToken: "refresh-token",
		}
		if err := s.Credentials.Upsert(cred); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		var raw sql.NullString
		if err := s.DB.QueryRow(`SELECT refresh_token FROM platform_credentials WHERE id = ?`, cred.ID).Scan(&raw); err != nil {
			t.Fatalf("raw select: %v", err)
		}
		if !raw.Valid || raw.String == "refresh-token" {
			t.Errorf("refresh token stored in plaintext: %q", raw.String)
		}

		got, err := s.Credentials.Get(user.ID, models.YouTube)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.RefreshToken != "refresh-token" || got.ClientSecret != "client-secret" {
			t.Errorf("unexpected decrypted credential %+v", got)
		}
		if got.AccessToken != "" {
			t.Errorf("unset field decrypted to %q", got.AccessToken)
		}
	})

	t.Run("update merges", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")

		first := &models.PlatformCredential{UserID: user.ID, Platform: models.Instagram, AccessToken: "old", AccountID: "1789"}
		if err := s.Credentials.Upsert(first); err != nil {
			t.Fatalf("first upsert: %v", err)
		}

		expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
		second := &models.PlatformCredential{UserID: user.ID, Platform: models.Instagram, Cookies: `[{"name":"a"}]`, Expiry: &expiry}
		if err := s.Credentials.Upsert(second); err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		if second.AccessToken != "old" || second.AccountID != "1789" || second.Cookies == "" {
			t.Errorf("merge lost fields: %+v", second)
		}
		if second.Expiry == nil || !second.Expiry.Equal(expiry) {
			t.Errorf("expiry = %v, want %v", second.Expiry, expiry)
		}

		creds, err := s.Credentials.ListByUser(user.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(creds) != 1 {
			t.Errorf("expected one credential row, got %d", len(creds))
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")

		if _, err := s.Credentials.Get(user.ID, models.TikTok); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected missing credentials, got %v", err)
		}
		if err := s.Credentials.Delete(user.ID, models.TikTok); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("wrong key is a data integrity error", func(t *testing.T) {
		s := setupTestStore(t)
		user := createUser(t, s, "ada")
		if err := s.Credentials.Upsert(&models.PlatformCredential{UserID: user.ID, Platform: models.YouTube, RefreshToken: "r"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		key, _ := shared.GenerateKey()
		other, _ := shared.NewCipher(key)
		repo := NewCredentialRepository(s.DB, other)

		if _, err := repo.Get(user.ID, models.YouTube); !errors.Is(err, shared.ErrDataIntegrity) {
			t.Errorf("expected data integrity error, got %v", err)
		}
	})

	t.Run("no cipher", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t), nil)
		err := repo.Upsert(&models.PlatformCredential{UserID: 1, Platform: models.YouTube})
		if !errors.Is(err, shared.ErrConfig) {
			t.Errorf("expected config error, got %v", err)
		}
	})
}

func TestOpenStore(t *testing.T) {
	s, err := OpenStore(":memory:", nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	if _, err := s.Users.List(); err != nil {
		t.Errorf("store not migrated: %v", err)
	}
}
