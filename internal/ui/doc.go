// Package ui implements the interactive menu using bubbletea's Elm architecture.
//
// The menu walks through one manual run:
//  1. [UserListView] : Browse users with their weekly slots
//  2. [ConfirmView] : Review the prompt config and toggle posting
//  3. [GenerateView] : Follow pipeline progress as it happens
//  4. [ResultView] : Show the video path and each platform's post outcome
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the pipeline, so a slow stage never blocks rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, p, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
