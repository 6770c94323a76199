package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/repositories"
	"github.com/desertthunder/autoshorts/internal/services"
	"github.com/desertthunder/autoshorts/internal/shared"
	tu "github.com/desertthunder/autoshorts/internal/testing"
)

// 25 words
const scalpelNarration = "Surgeons have relied on sharp blades for thousands of years, and the modern scalpel traces its design back to bronze tools used in ancient Egypt."

var sceneLabels = []string{"Intro", "Bronze Age", "Steel", "Disposable Blades", "Outro", "Extra"}

func scriptReply(title string, scenes int, narration string) string {
	s := models.Script{Title: title}
	for i := range scenes {
		s.Scenes = append(s.Scenes, models.Scene{
			Label:       sceneLabels[i],
			Narration:   narration,
			ImagePrompt: fmt.Sprintf("vertical illustration of %s, part %d", title, i+1),
			Duration:    99,
		})
	}
	data, _ := json.MarshalIndent(s, "", "  ")
	return "Here is your script:\n```json\n" + string(data) + "\n```\n"
}

type fakeRenderer struct {
	mu   sync.Mutex
	jobs []RenderJob
	err  error
}

func (f *fakeRenderer) Render(ctx context.Context, job RenderJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(job.Output, []byte("mp4"), 0644)
}

type fakePublisher struct {
	videos []services.Video
	result []services.PostResult
}

func (f *fakePublisher) Publish(ctx context.Context, userID int64, video services.Video) []services.PostResult {
	f.videos = append(f.videos, video)
	return f.result
}

type harness struct {
	store     *repositories.Store
	user      *models.User
	prompt    *models.PromptConfig
	text      *tu.MockText
	speech    *tu.MockSpeech
	images    *tu.MockImages
	renderer  *fakeRenderer
	publisher *fakePublisher
	root      string
	pipeline  *Pipeline
}

func newHarness(t *testing.T, wpm int, reply string) *harness {
	t.Helper()

	store, err := repositories.OpenStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	user := models.NewUser("surgeon", "voice-1")
	require.NoError(t, store.Users.Create(user))
	prompt := &models.PromptConfig{UserID: user.ID, Topic: "surgical instruments", Scope: "history", WPM: wpm}
	require.NoError(t, store.Prompts.Create(prompt))

	h := &harness{
		store:     store,
		user:      user,
		prompt:    prompt,
		text:      &tu.MockText{Replies: []string{reply}},
		speech:    &tu.MockSpeech{},
		images:    &tu.MockImages{},
		renderer:  &fakeRenderer{},
		publisher: &fakePublisher{},
		root:      t.TempDir(),
	}
	h.pipeline = h.build(t, Config{})
	return h
}

func (h *harness) build(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	cfg.OutputRoot = h.root
	p, err := New(cfg, Deps{
		Text:      h.text,
		Speech:    h.speech,
		Images:    h.images,
		Renderer:  h.renderer,
		Users:     h.store.Users,
		Prompts:   h.store.Prompts,
		Publisher: h.publisher,
	})
	require.NoError(t, err)
	return p
}

func TestPipelineScalpelsRun(t *testing.T) {
	h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
	progress := make(chan ProgressUpdate, 64)

	run, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{Progress: progress})
	require.NoError(t, err)

	assert.Equal(t, Done, run.State)
	assert.Equal(t, []State{ScriptPending, AudioPending, ImagesPending, AssemblyPending, Done}, run.History)

	t.Run("durations are recomputed from the word count", func(t *testing.T) {
		require.Len(t, run.Script.Scenes, 5)
		for _, scene := range run.Script.Scenes {
			assert.Equal(t, 12.0, scene.Duration)
		}
		assert.InDelta(t, 60.0, run.Script.TotalDuration(), 0.001)
		assert.Equal(t, 125, run.Script.Words())
	})

	t.Run("prompt carries the constraints", func(t *testing.T) {
		require.Len(t, h.text.Prompts, 1)
		p := h.text.Prompts[0]
		assert.Contains(t, p, "must not exceed 125 words")
		assert.Contains(t, p, "5 to 6 scenes")
		assert.Contains(t, p, "not one of: none")
	})

	t.Run("artifacts are laid out in the run directory", func(t *testing.T) {
		runDir := filepath.Join(h.root, fmt.Sprintf("prompt_%d", h.prompt.ID), "scalpels")
		assert.Equal(t, runDir, run.Artifact.RunDir)
		tu.AssertDirExists(t, filepath.Join(runDir, ImagesDir))
		tu.AssertFileExists(t, filepath.Join(runDir, ScriptFile))
		tu.AssertFileExists(t, filepath.Join(runDir, AudioFile))
		tu.AssertFileExists(t, filepath.Join(runDir, VideoFile))
		tu.AssertFileExists(t, filepath.Join(runDir, ImagesDir, "scene_1_intro.jpg"))
		tu.AssertFileExists(t, filepath.Join(runDir, ImagesDir, "scene_4_disposable_blades.jpg"))
		assert.Len(t, run.Artifact.ImagePaths, 5)

		var saved models.Script
		require.NoError(t, json.Unmarshal([]byte(tu.MustReadFile(t, run.Artifact.ScriptPath)), &saved))
		assert.Equal(t, "Scalpels", saved.Title)
		assert.Equal(t, 12.0, saved.Scenes[0].Duration)
	})

	t.Run("audio reads every narration with the user's voice", func(t *testing.T) {
		require.Len(t, h.speech.Texts, 1)
		assert.Equal(t, run.Script.Narration(), h.speech.Texts[0])
		assert.Equal(t, "voice-1", h.speech.Voices[0])
	})

	t.Run("render job", func(t *testing.T) {
		require.Len(t, h.renderer.jobs, 1)
		job := h.renderer.jobs[0]
		assert.Len(t, job.Clips, 5)
		assert.Equal(t, 12.0, job.Clips[2].Duration)
		assert.Equal(t, run.Artifact.AudioPath, job.Audio)
		assert.Equal(t, VideoWidth, job.Width)
		assert.Equal(t, VideoHeight, job.Height)
	})

	t.Run("covered topics record the title", func(t *testing.T) {
		cfg, err := h.store.Prompts.GetByUser(h.user.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Scalpels"}, cfg.CoveredTopics)
	})

	t.Run("progress is reported per stage", func(t *testing.T) {
		close(progress)
		var states []State
		var images int
		for u := range progress {
			assert.Equal(t, run.ID, u.RunID)
			states = append(states, u.State)
			if u.State == ImagesPending && u.Step > 0 && u.Total == 5 {
				images++
			}
		}
		require.NotEmpty(t, states)
		assert.Equal(t, ScriptPending, states[0])
		assert.Equal(t, 5, images)
	})

	t.Run("not posted unless requested", func(t *testing.T) {
		assert.Empty(t, h.publisher.videos)
		assert.Empty(t, run.Posts)
	})
}

func TestPipelineRepeatTitleIsRecordedOnce(t *testing.T) {
	h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))

	for range 2 {
		_, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{})
		require.NoError(t, err)
	}

	cfg, err := h.store.Prompts.GetByUser(h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Scalpels"}, cfg.CoveredTopics)
}

func TestPipelineImageFailure(t *testing.T) {
	h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
	h.images.FailOn = 3

	run, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{Post: true})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageImages, se.Stage)
	assert.Equal(t, 3, se.Scene)
	assert.ErrorIs(t, err, shared.ErrCollaborator)
	assert.Contains(t, err.Error(), "scene 3")

	assert.Equal(t, Failed, run.State)
	assert.Equal(t, []State{ScriptPending, AudioPending, ImagesPending, Failed}, run.History)
	assert.Equal(t, se, run.Err)

	tu.AssertFileExists(t, run.Artifact.ScriptPath)
	tu.AssertFileExists(t, run.Artifact.AudioPath)
	tu.AssertFileExists(t, filepath.Join(run.Artifact.RunDir, ImagesDir, "scene_2_bronze_age.jpg"))
	tu.AssertFileMissing(t, filepath.Join(run.Artifact.RunDir, ImagesDir, "scene_3_steel.jpg"))
	tu.AssertFileMissing(t, filepath.Join(run.Artifact.RunDir, VideoFile))
	assert.Len(t, run.Artifact.ImagePaths, 2)
	assert.Equal(t, 3, h.images.Calls(), "no retries and no requests after the failure")

	assert.Empty(t, h.renderer.jobs)
	assert.Empty(t, h.publisher.videos, "failed runs are never posted")
}

func TestPipelineDownloadFailures(t *testing.T) {
	runDir := func(h *harness) string {
		return filepath.Join(h.root, fmt.Sprintf("prompt_%d", h.prompt.ID), "scalpels")
	}

	t.Run("audio file cannot be created", func(t *testing.T) {
		h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
		require.NoError(t, os.MkdirAll(filepath.Join(runDir(h), AudioFile), 0o755))

		run, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{})
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageAudio, se.Stage)
		assert.ErrorIs(t, err, shared.ErrDataIntegrity)
		assert.NotErrorIs(t, err, shared.ErrCollaborator)
		assert.Equal(t, Failed, run.State)
	})

	t.Run("image file cannot be created keeps the scene index", func(t *testing.T) {
		h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
		require.NoError(t, os.MkdirAll(filepath.Join(runDir(h), ImagesDir, "scene_2_bronze_age.jpg"), 0o755))

		_, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{})
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageImages, se.Stage)
		assert.Equal(t, 2, se.Scene)
		assert.ErrorIs(t, err, shared.ErrDataIntegrity)
		assert.NotErrorIs(t, err, shared.ErrCollaborator)
	})

	t.Run("broken response body is a collaborator failure", func(t *testing.T) {
		h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
		h.speech.Body = &tu.FCloser{}

		_, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{})
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageAudio, se.Stage)
		assert.ErrorIs(t, err, shared.ErrCollaborator)
		tu.AssertFileMissing(t, filepath.Join(runDir(h), AudioFile))
	})
}

func TestPipelineScriptFailures(t *testing.T) {
	tt := []struct {
		name  string
		reply string
	}{
		{name: "too few scenes", reply: scriptReply("Scalpels", 4, "Short line.")},
		{name: "too many scenes", reply: `{"title":"Scalpels","scenes":[{},{},{},{},{},{},{}]}`},
		{name: "word cap exceeded", reply: scriptReply("Scalpels", 6, scalpelNarration)},
		{name: "unknown field", reply: `{"title":"Scalpels","scenes":[],"mood":"grim"}`},
		{name: "not json", reply: "I cannot help with that."},
		{name: "empty title", reply: scriptReply(" ", 5, "Short line.")},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 125, tc.reply)

			run, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{})
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, StageScript, se.Stage)
			assert.ErrorIs(t, err, shared.ErrCollaborator)
			assert.Equal(t, []State{ScriptPending, Failed}, run.History)

			assert.Empty(t, h.speech.Texts)
			cfg, err := h.store.Prompts.GetByUser(h.user.ID)
			require.NoError(t, err)
			assert.Empty(t, cfg.CoveredTopics)
		})
	}
}

func TestPipelineAudioFailure(t *testing.T) {
	h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
	h.speech.Err = fmt.Errorf("%w: elevenlabs returned 401", shared.ErrAPIRequest)

	run, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageAudio, se.Stage)
	assert.Equal(t, 0, h.images.Calls())
	tu.AssertFileExists(t, run.Artifact.ScriptPath)
}

func TestPipelineStageTimeout(t *testing.T) {
	h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
	h.images.Block = true
	p := h.build(t, Config{StageTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := p.Generate(context.Background(), h.user.ID, Options{})

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageImages, se.Stage)
	assert.Equal(t, 1, se.Scene)
	assert.ErrorIs(t, err, shared.ErrTimeout)
	assert.ErrorIs(t, err, shared.ErrCollaborator)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPipelineAssemblyFailure(t *testing.T) {
	h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
	h.renderer.err = errors.New("ffmpeg failed: exit status 1")

	run, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageAssembly, se.Stage)
	assert.Len(t, run.Artifact.ImagePaths, 5)
	assert.Empty(t, run.Artifact.VideoPath)
}

func TestPipelinePublishing(t *testing.T) {
	h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))
	h.publisher.result = []services.PostResult{
		{Platform: models.YouTube, Status: services.StatusFailed, Reason: "quota"},
		{Platform: models.Instagram, Status: services.StatusPosted, ID: "m1"},
		{Platform: models.TikTok, Status: services.StatusSkipped},
	}

	run, err := h.pipeline.Generate(context.Background(), h.user.ID, Options{Post: true})
	require.NoError(t, err, "publish failures never fail a run")
	assert.Equal(t, Done, run.State)

	require.Len(t, h.publisher.videos, 1)
	video := h.publisher.videos[0]
	assert.Equal(t, run.Artifact.VideoPath, video.Path)
	assert.Equal(t, "Scalpels", video.Title)
	assert.Equal(t, scalpelNarration, video.Caption)
	assert.Len(t, run.Posts, 3)
	assert.Equal(t, 1, countPosted(run))
}

func TestPipelineInputs(t *testing.T) {
	h := newHarness(t, 125, scriptReply("Scalpels", 5, scalpelNarration))

	t.Run("unknown user", func(t *testing.T) {
		_, err := h.pipeline.Generate(context.Background(), 999, Options{})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("user without prompt config", func(t *testing.T) {
		other := models.NewUser("no-prompt", "v")
		require.NoError(t, h.store.Users.Create(other))
		_, err := h.pipeline.Generate(context.Background(), other.ID, Options{})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := New(Config{}, Deps{Text: h.text})
		assert.ErrorIs(t, err, shared.ErrConfig)
	})
}

func TestRunTransitions(t *testing.T) {
	t.Run("advances one step at a time", func(t *testing.T) {
		run := newRun(1, 1)
		for _, s := range []State{AudioPending, ImagesPending, AssemblyPending, Done} {
			require.NoError(t, run.advance(s))
		}
		assert.Equal(t, Done, run.State)
		assert.False(t, run.FinishedAt.IsZero())
	})

	t.Run("skipping is rejected", func(t *testing.T) {
		run := newRun(1, 1)
		err := run.advance(ImagesPending)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, ScriptPending, run.State)
	})

	t.Run("re-entry is rejected", func(t *testing.T) {
		run := newRun(1, 1)
		require.NoError(t, run.advance(AudioPending))
		assert.ErrorIs(t, run.advance(AudioPending), ErrInvalidTransition)
		assert.ErrorIs(t, run.advance(ScriptPending), ErrInvalidTransition)
	})

	t.Run("terminal states do not move", func(t *testing.T) {
		run := newRun(1, 1)
		require.NoError(t, run.fail(errors.New("boom")))
		assert.ErrorIs(t, run.fail(errors.New("again")), ErrInvalidTransition)
		assert.ErrorIs(t, run.advance(AudioPending), ErrInvalidTransition)
		assert.Equal(t, []State{ScriptPending, Failed}, run.History)
	})

	t.Run("stage names", func(t *testing.T) {
		assert.Equal(t, StageScript, ScriptPending.Stage())
		assert.Equal(t, StageAssembly, AssemblyPending.Stage())
		assert.Empty(t, Done.Stage())
		assert.Equal(t, "images_pending", ImagesPending.String())
	})
}

func TestParseScript(t *testing.T) {
	t.Run("fenced block", func(t *testing.T) {
		s, err := ParseScript(scriptReply("Scalpels", 5, "One line."))
		require.NoError(t, err)
		assert.Equal(t, "Scalpels", s.Title)
		assert.Len(t, s.Scenes, 5)
		assert.Equal(t, "Intro", s.Scenes[0].Label)
	})

	t.Run("bare object", func(t *testing.T) {
		s, err := ParseScript(`  {"title": " Espresso ", "scenes": []}  `)
		require.NoError(t, err)
		assert.Equal(t, "Espresso", s.Title)
	})

	t.Run("fence without language", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, ExtractJSON("```\n{\"a\":1}\n```"))
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, err := ParseScript(`{"title":"x","scenes":[{"scene_id":"a","mood":"dark"}]}`)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("trailing data is rejected", func(t *testing.T) {
		for _, reply := range []string{
			`{"title":"x","scenes":[]} {"title":"y"}`,
			`{"title":"x","scenes":[]}]`,
			`{"title":"x","scenes":[]}}`,
			`{"title":"x","scenes":[]} garbage`,
		} {
			_, err := ParseScript(reply)
			assert.ErrorIs(t, err, shared.ErrValidation, reply)
		}
	})

	t.Run("empty reply", func(t *testing.T) {
		_, err := ParseScript("```json\n```")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(&models.PromptConfig{Topic: "coffee", Scope: "chemistry", WPM: 150, CoveredTopics: []string{"Espresso", "Crema"}})

	assert.Contains(t, p, "chemistry of coffee")
	assert.Contains(t, p, "not one of: Espresso, Crema")
	assert.Contains(t, p, "must not exceed 150 words")
	assert.Contains(t, p, "one word every 0.40 seconds")
	assert.True(t, strings.Contains(p, "title") && strings.Contains(p, "scenes"))
}

func TestImageName(t *testing.T) {
	assert.Equal(t, "scene_1_intro.jpg", ImageName(1, "Intro"))
	assert.Equal(t, "scene_6_a_b.jpg", ImageName(6, " A / B "))
}
