package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/autoshorts/internal/shared"
)

// Validator is implemented by every persisted model.
type Validator interface {
	Validate() error // Validate checks field values before any mutation
}

var (
	_ Validator = (*User)(nil)
	_ Validator = (*PromptConfig)(nil)
	_ Validator = (*ScheduleEntry)(nil)
	_ Validator = (*PlatformCredential)(nil)
	_ Validator = (*Script)(nil)
)

// User is a provisioned account. Deleting one cascades to its prompt config, schedule and credentials.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	VoiceID   string    `json:"voice_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a [User] with creation timestamps set.
func NewUser(username, voiceID string) *User {
	now := time.Now().UTC()
	return &User{
		Username:  strings.TrimSpace(username),
		VoiceID:   strings.TrimSpace(voiceID),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", shared.ErrValidation)
	}
	return nil
}

// PromptField names a [PromptConfig] field that can be updated on its own.
type PromptField string

const (
	FieldTopic PromptField = "topic"
	FieldScope PromptField = "scope"
	FieldWPM   PromptField = "wpm"
)

// ParsePromptField accepts only topic, scope and wpm.
func ParsePromptField(s string) (PromptField, error) {
	switch f := PromptField(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldTopic, FieldScope, FieldWPM:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown prompt field %q (want topic, scope or wpm)", shared.ErrValidation, s)
	}
}

// PromptConfig is the one-per-user generation input.
type PromptConfig struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Topic         string    `json:"topic"`
	Scope         string    `json:"scope"`
	WPM           int       `json:"wpm"`
	CoveredTopics []string  `json:"covered_topics"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *PromptConfig) Validate() error {
	if p.UserID <= 0 {
		return fmt.Errorf("%w: prompt config requires a user", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("%w: topic is required", shared.ErrValidation)
	}
	if p.WPM <= 0 {
		return fmt.Errorf("%w: wpm must be greater than zero, got %d", shared.ErrValidation, p.WPM)
	}
	seen := make(map[string]struct{}, len(p.CoveredTopics))
	for _, topic := range p.CoveredTopics {
		if _, ok := seen[topic]; ok {
			return fmt.Errorf("%w: covered topic %q is duplicated", shared.ErrDataIntegrity, topic)
		}
		seen[topic] = struct{}{}
	}
	return nil
}

// HasCovered reports whether title is already in the covered topics.
func (p *PromptConfig) HasCovered(title string) bool {
	for _, t := range p.CoveredTopics {
		if t == title {
			return true
		}
	}
	return false
}

// ScheduleEntry subscribes a user to one weekly slot.
type ScheduleEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Slot      Slot      `json:"slot"`
	CreatedAt time.Time `json:"created_at"`
}

// NewScheduleEntry parses day and validates hour.
func NewScheduleEntry(userID int64, day string, hour int) (*ScheduleEntry, error) {
	slot, err := NewSlot(day, hour)
	if err != nil {
		return nil, err
	}
	entry := &ScheduleEntry{UserID: userID, Slot: slot, CreatedAt: time.Now().UTC()}
	return entry, entry.Validate()
}

func (e *ScheduleEntry) Validate() error {
	if e.UserID <= 0 {
		return fmt.Errorf("%w: schedule entry requires a user", shared.ErrValidation)
	}
	return e.Slot.Validate()
}

// Platform is a social network a video can be posted to.
type Platform string

const (
	YouTube   Platform = "youtube"
	Instagram Platform = "instagram"
	TikTok    Platform = "tiktok"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{YouTube, Instagram, TikTok}

// ParsePlatform accepts a platform name case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown platform %q", shared.ErrValidation, s)
}

// PlatformCredential holds per-platform secrets for one user.
//
// Secret fields are plaintext in memory and encrypted by the credential repository on write.
type PlatformCredential struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	Platform      Platform   `json:"platform"`
	AccessToken   string     `json:"-"`
	RefreshToken  string     `json:"-"`
	ClientID      string     `json:"-"`
	ClientSecret  string     `json:"-"`
	Cookies       string     `json:"-"`
	LoginUsername string     `json:"-"`
	LoginPassword string     `json:"-"`
	AccountID     string     `json:"account_id,omitempty"`
	Expiry        *time.Time `json:"expiry,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (c *PlatformCredential) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("%w: credential requires a user", shared.ErrValidation)
	}
	if _, err := ParsePlatform(string(c.Platform)); err != nil {
		return err
	}
	return nil
}

// Merge copies every non-empty field of update onto c.
func (c *PlatformCredential) Merge(update *PlatformCredential) {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&c.AccessToken, update.AccessToken},
		{&c.RefreshToken, update.RefreshToken},
		{&c.ClientID, update.ClientID},
		{&c.ClientSecret, update.ClientSecret},
		{&c.Cookies, update.Cookies},
		{&c.LoginUsername, update.LoginUsername},
		{&c.LoginPassword, update.LoginPassword},
		{&c.AccountID, update.AccountID},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	if update.Expiry != nil {
		c.Expiry = update.Expiry
	}
}

// Redacted reports which secret fields are set without revealing them.
func (c *PlatformCredential) Redacted() map[string]bool {
	return map[string]bool{
		"access_token":   c.AccessToken != "",
		"refresh_token":  c.RefreshToken != "",
		"client_id":      c.ClientID != "",
		"client_secret":  c.ClientSecret != "",
		"cookies":        c.Cookies != "",
		"login_username": c.LoginUsername != "",
		"login_password": c.LoginPassword != "",
	}
}
