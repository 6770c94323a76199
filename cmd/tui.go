package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/autoshorts/internal/shared"
	"github.com/desertthunder/autoshorts/internal/ui"
)

// Menu launches the interactive terminal UI for picking a user and generating a video.
func (r *Runner) Menu(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/autoshorts-menu.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	gen, err := r.buildGenerator(ctx)
	if err != nil {
		return err
	}
	store, err := r.openStore()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.StoreFuncs{
		Users:    store.Users.List,
		Schedule: store.Schedules.ListByUser,
		Prompt:   store.Prompts.GetByUser,
	}, gen, r.config.Pipeline.Post)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running menu: %w", err)
	}

	return nil
}
