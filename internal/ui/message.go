package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/pipeline"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the menu (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgUsersFetched MsgKind = iota
	MsgPromptFetched
	MsgProgressUpdate
	MsgRunComplete
)

type usersFetched struct {
	items []userItem
	err   error
}

type promptFetched struct {
	prompt *models.PromptConfig
	err    error
}

type runComplete struct {
	run *pipeline.Run
	err error
}

// usersFetchedMsg is the constructor for [MsgUsersFetched]
func usersFetchedMsg(items []userItem, err error) Msg {
	return Msg{kind: MsgUsersFetched, data: usersFetched{items, err}}
}

// promptFetchedMsg is the constructor for [MsgPromptFetched]
func promptFetchedMsg(prompt *models.PromptConfig, err error) Msg {
	return Msg{kind: MsgPromptFetched, data: promptFetched{prompt, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update pipeline.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(run *pipeline.Run, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runComplete{run, err}}
}
