package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/pipeline"
	"github.com/desertthunder/autoshorts/internal/services"
)

// ViewState represents the current view in the menu.
type ViewState int

const (
	UserListView ViewState = iota
	ConfirmView
	GenerateView
	ResultView
)

// Store is the read access the menu needs.
type Store interface {
	ListUsers() ([]*models.User, error)
	ListSchedule(userID int64) ([]*models.ScheduleEntry, error)
	GetPrompt(userID int64) (*models.PromptConfig, error)
}

// Generator runs the pipeline for one user. [pipeline.Pipeline] satisfies it.
type Generator interface {
	Generate(ctx context.Context, userID int64, opts pipeline.Options) (*pipeline.Run, error)
}

// StoreFuncs adapts plain functions to [Store].
type StoreFuncs struct {
	Users    func() ([]*models.User, error)
	Schedule func(userID int64) ([]*models.ScheduleEntry, error)
	Prompt   func(userID int64) (*models.PromptConfig, error)
}

func (f StoreFuncs) ListUsers() ([]*models.User, error) { return f.Users() }
func (f StoreFuncs) ListSchedule(userID int64) ([]*models.ScheduleEntry, error) {
	return f.Schedule(userID)
}
func (f StoreFuncs) GetPrompt(userID int64) (*models.PromptConfig, error) { return f.Prompt(userID) }

// Model represents the menu state.
type Model struct {
	ctx          context.Context
	view         ViewState
	store        Store
	generator    Generator
	post         bool
	width        int
	height       int
	userList     list.Model
	listReady    bool
	selected     *userItem
	prompt       *models.PromptConfig
	progressChan chan pipeline.ProgressUpdate
	waitDone     chan runComplete
	progress     pipeline.ProgressUpdate
	log          []string
	run          *pipeline.Run
	err          error
	spinner      spinner.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a menu model. post is the initial publishing choice and can be toggled per run.
func NewModel(ctx context.Context, store Store, generator Generator, post bool) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:       ctx,
		view:      UserListView,
		store:     store,
		generator: generator,
		post:      post,
		spinner:   s,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the menu by loading users.
func (m *Model) Init() tea.Cmd {
	return m.fetchUsers()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.listReady {
			m.userList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case UserListView:
			return m.handleUserListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case GenerateView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != GenerateView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgUsersFetched:
		data := msg.data.(usersFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(data.items))
		for i, item := range data.items {
			items[i] = item
		}
		m.userList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.userList.Title = "Users"
		if m.width > 0 {
			m.userList.SetSize(m.width-4, m.height-8)
		}
		m.listReady = true
		return m, nil

	case MsgPromptFetched:
		data := msg.data.(promptFetched)
		m.prompt, m.err = data.prompt, data.err
		if m.err == nil {
			m.view = ConfirmView
		}
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(pipeline.ProgressUpdate)
		m.log = append(m.log, m.progress.Message)
		return m, m.waitForProgress()

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.run, m.err = data.run, data.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) handleUserListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.listReady {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetchUsers()
		}
		return m, nil
	}
	if m.userList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.userList, cmd = m.userList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchUsers()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.userList.SelectedItem().(userItem); ok {
			m.selected = &item
			return m, m.fetchPrompt(item.user.ID)
		}
	}

	var cmd tea.Cmd
	m.userList, cmd = m.userList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = UserListView
		return m, nil
	case key.Matches(msg, m.keys.post):
		m.post = !m.post
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = GenerateView
		m.log = nil
		return m, tea.Batch(m.spinner.Tick, m.startRun())
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = UserListView
		m.selected, m.prompt, m.run, m.err = nil, nil, nil, nil
		return m, m.fetchUsers()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != UserListView || !m.listReady {
		return m, nil
	}
	var cmd tea.Cmd
	m.userList, cmd = m.userList.Update(msg)
	return m, cmd
}

func (m *Model) fetchUsers() tea.Cmd {
	return func() tea.Msg {
		users, err := m.store.ListUsers()
		if err != nil {
			return usersFetchedMsg(nil, err)
		}
		items := make([]userItem, 0, len(users))
		for _, u := range users {
			entries, err := m.store.ListSchedule(u.ID)
			if err != nil {
				return usersFetchedMsg(nil, err)
			}
			items = append(items, userItem{user: u, entries: entries})
		}
		return usersFetchedMsg(items, nil)
	}
}

func (m *Model) fetchPrompt(userID int64) tea.Cmd {
	return func() tea.Msg {
		prompt, err := m.store.GetPrompt(userID)
		return promptFetchedMsg(prompt, err)
	}
}

// startRun runs the pipeline in the background. The goroutine owns and closes the progress channel.
func (m *Model) startRun() tea.Cmd {
	progress := make(chan pipeline.ProgressUpdate, 50)
	m.progressChan = progress
	userID, post := m.selected.user.ID, m.post

	done := make(chan runComplete, 1)
	go func() {
		run, err := m.generator.Generate(m.ctx, userID, pipeline.Options{Post: post, Progress: progress})
		done <- runComplete{run, err}
		close(progress)
	}()

	m.waitDone = done
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.waitDone
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		update, ok := <-progress
		if !ok {
			result := <-done
			return runCompleteMsg(result.run, result.err)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit, ctrl+r to reload", m.err))
	}

	switch m.view {
	case UserListView:
		return m.renderUserList()
	case ConfirmView:
		return m.renderConfirm()
	case GenerateView:
		return m.renderGenerate()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderUserList() string {
	if !m.listReady {
		return styles.help.Render("Loading users...")
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.refresh, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.userList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Generate a short for %s?", m.selected.user.Username))

	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", m.prompt.Topic)
	if m.prompt.Scope != "" {
		fmt.Fprintf(&b, "Scope: %s\n", m.prompt.Scope)
	}
	fmt.Fprintf(&b, "Pace: %d wpm (cap %d words)\n", m.prompt.WPM, models.WordCap(m.prompt.WPM))
	fmt.Fprintf(&b, "Covered: %d topics\n", len(m.prompt.CoveredTopics))
	fmt.Fprintf(&b, "Schedule: %s\n", m.selected.Description())

	posting := styles.warn.Render("off")
	if m.post {
		posting = styles.ok.Render("on")
	}
	fmt.Fprintf(&b, "Posting: %s\n", posting)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.post, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderGenerate() string {
	title := styles.title.Render(fmt.Sprintf("Generating for %s", m.selected.user.Username))

	var stage string
	switch m.progress.State {
	case pipeline.ScriptPending:
		stage = "Writing script..."
	case pipeline.AudioPending:
		stage = "Synthesizing narration..."
	case pipeline.ImagesPending:
		stage = fmt.Sprintf("Generating images (%d/%d)", m.progress.Step, m.progress.Total)
	case pipeline.AssemblyPending:
		stage = "Assembling video..."
	default:
		stage = "Working..."
	}

	lines := m.log
	if len(lines) > 8 {
		lines = lines[len(lines)-8:]
	}
	return fmt.Sprintf("%s\n%s %s\n\n%s", title, m.spinner.View(), stage, styles.help.Render(strings.Join(lines, "\n")))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.run == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	var b strings.Builder
	b.WriteString(styles.ok.Render("✓ Video ready"))
	if m.run.Script != nil {
		fmt.Fprintf(&b, "\n\nTitle: %s (%d scenes, %.0fs)", m.run.Script.Title, len(m.run.Script.Scenes), m.run.Script.TotalDuration())
	}
	fmt.Fprintf(&b, "\nVideo: %s\nTook: %s", m.run.Artifact.VideoPath, m.run.Duration().Round(time.Second))

	for _, post := range m.run.Posts {
		switch post.Status {
		case services.StatusPosted:
			fmt.Fprintf(&b, "\n%s", styles.ok.Render(fmt.Sprintf("  • %s: %s", post.Platform, post.URL)))
		case services.StatusSkipped:
			fmt.Fprintf(&b, "\n%s", styles.help.Render(fmt.Sprintf("  • %s: skipped (%s)", post.Platform, post.Reason)))
		default:
			fmt.Fprintf(&b, "\n%s", styles.warn.Render(fmt.Sprintf("  • %s: %s", post.Platform, post.Reason)))
		}
	}

	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}
