package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

type userView struct {
	User        *models.User                 `json:"user"`
	Prompt      *models.PromptConfig         `json:"prompt,omitempty"`
	Schedule    []*models.ScheduleEntry      `json:"schedule"`
	Credentials []*models.PlatformCredential `json:"credentials,omitempty"`
}

// CreateUser provisions a user and their prompt config, then optionally schedules a first slot.
//
// The user is removed again when the prompt config cannot be created.
func (r *Runner) CreateUser(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	user := models.NewUser(cmd.String("username"), cmd.String("voice"))
	if err := store.Users.Create(user); err != nil {
		return err
	}

	prompt := &models.PromptConfig{
		UserID: user.ID,
		Topic:  strings.TrimSpace(cmd.String("topic")),
		Scope:  strings.TrimSpace(cmd.String("scope")),
		WPM:    int(cmd.Int("wpm")),
	}
	if err := store.Prompts.Create(prompt); err != nil {
		if derr := store.Users.Delete(user.ID); derr != nil {
			r.logger.Error("failed to remove partially created user", "user", user.ID, "error", derr)
		}
		return err
	}
	r.logger.Info("user created", "id", user.ID, "username", user.Username, "topic", prompt.Topic)

	if day := cmd.String("day"); day != "" {
		coord, err := r.coordinator(ctx, false)
		if err != nil {
			return err
		}
		result, err := coord.AddEntry(ctx, user.ID, day, int(cmd.Int("hour")))
		if err != nil {
			return fmt.Errorf("user %d created but not scheduled: %w", user.ID, err)
		}
		r.reportEntry("scheduled", result)
	}

	return r.writePlain("%d\n", user.ID)
}

// ListUsers prints every user with their schedule slots.
func (r *Runner) ListUsers(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	users, err := store.Users.List()
	if err != nil {
		return err
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		entries, err := store.Schedules.ListByUser(u.ID)
		if err != nil {
			return err
		}
		views = append(views, userView{User: u, Schedule: entries})
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(views) == 0 {
		return r.writePlain("No users. Create one with 'autoshorts users create'.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Users (%d)", len(views)))
	for _, v := range views {
		r.writePlain("%4d  %-20s %s\n", v.User.ID, v.User.Username, formatSlots(v.Schedule))
	}
	return nil
}

// ShowUser prints a user's profile, prompt config, schedule and which credential fields are set.
func (r *Runner) ShowUser(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	id := cmd.Int64("user")
	user, err := store.Users.Get(id)
	if err != nil {
		return err
	}
	prompt, err := store.Prompts.GetByUser(id)
	if err != nil {
		r.logger.Warn("user has no prompt config", "user", id, "error", err)
	}
	entries, err := store.Schedules.ListByUser(id)
	if err != nil {
		return err
	}

	var creds []*models.PlatformCredential
	if r.requireCipher() == nil {
		if creds, err = store.Credentials.ListByUser(id); err != nil {
			return err
		}
	}

	view := userView{User: user, Prompt: prompt, Schedule: entries, Credentials: creds}
	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (#%d)", user.Username, user.ID))
	r.writePlain("Voice:    %s\n", orNone(user.VoiceID))
	if prompt != nil {
		r.writePrompt(prompt)
	}
	r.writePlain("Schedule: %s\n", formatSlots(entries))
	for _, c := range creds {
		r.writePlain("%-9s %s\n", c.Platform+":", formatRedacted(c))
	}
	return nil
}

// UpdateVoice changes a user's narration voice.
func (r *Runner) UpdateVoice(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	id := cmd.Int64("user")
	if err := store.Users.UpdateVoice(id, cmd.String("voice")); err != nil {
		return err
	}
	r.logger.Info("voice updated", "user", id, "voice", cmd.String("voice"))
	return nil
}

// DeleteUser removes a user with everything they own and releases triggers for slots left empty.
func (r *Runner) DeleteUser(ctx context.Context, cmd *cli.Command) error {
	coord, err := r.coordinator(ctx, false)
	if err != nil {
		return err
	}

	results, err := coord.RemoveUser(ctx, cmd.Int64("user"))
	if err != nil {
		return err
	}
	for _, result := range results {
		r.reportEntry("released", result)
	}
	r.logger.Info("user deleted", "user", cmd.Int64("user"), "slots", len(results))
	return nil
}

// ShowPrompt prints a user's prompt config.
func (r *Runner) ShowPrompt(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	prompt, err := store.Prompts.GetByUser(cmd.Int64("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(prompt, cmd.Bool("pretty"))
	}
	r.writePrompt(prompt)
	for _, t := range prompt.CoveredTopics {
		r.writePlain("  - %s\n", t)
	}
	return nil
}

// SetPromptField updates topic, scope or wpm.
func (r *Runner) SetPromptField(ctx context.Context, cmd *cli.Command) error {
	field, value := cmd.StringArg("field"), cmd.StringArg("value")
	if field == "" || value == "" {
		return fmt.Errorf("%w: usage: autoshorts prompt set --user N <topic|scope|wpm> <value>", shared.ErrMissingArgument)
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}

	id := cmd.Int64("user")
	if err := store.Prompts.UpdateField(id, field, value); err != nil {
		return err
	}
	r.logger.Info("prompt updated", "user", id, "field", field)
	return nil
}

func (r *Runner) writePrompt(p *models.PromptConfig) {
	r.writePlain("Topic:    %s\n", p.Topic)
	r.writePlain("Scope:    %s\n", orNone(p.Scope))
	r.writePlain("WPM:      %d (max %d words)\n", p.WPM, models.WordCap(p.WPM))
	r.writePlain("Covered:  %d topics\n", len(p.CoveredTopics))
}

func formatSlots(entries []*models.ScheduleEntry) string {
	if len(entries) == 0 {
		return "not scheduled"
	}
	slots := make([]string, len(entries))
	for i, e := range entries {
		slots[i] = e.Slot.String()
	}
	return strings.Join(slots, ", ")
}

func formatRedacted(c *models.PlatformCredential) string {
	set := c.Redacted()
	fields := make([]string, 0, len(set))
	for _, name := range []string{
		"access_token", "refresh_token", "client_id", "client_secret", "cookies", "login_username", "login_password",
	} {
		if set[name] {
			fields = append(fields, name)
		}
	}
	if len(fields) == 0 {
		return "nothing set"
	}
	return strings.Join(fields, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
