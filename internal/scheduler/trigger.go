package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// Trigger keeps one OS-level timer per slot. Every firing runs the coordinator's tick.
//
// Implementations are idempotent: ensuring a present trigger and removing an absent one are no-ops.
type Trigger interface {
	Ensure(ctx context.Context, slot models.Slot) error
	Remove(ctx context.Context, slot models.Slot) error
	Exists(ctx context.Context, slot models.Slot) (bool, error)
	List(ctx context.Context) ([]models.Slot, error)
}

const (
	KindAuto      = "auto"
	KindCrontab   = "crontab"
	KindSchTasks  = "schtasks"
	KindInProcess = "inprocess"
	KindMemory    = "memory"
)

// CommandRunner runs name with args, feeding stdin when non-empty, and returns combined output.
type CommandRunner func(ctx context.Context, stdin, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with [exec.CommandContext].
func ExecRunner(ctx context.Context, stdin, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// NewTrigger builds the trigger named by kind. auto picks schtasks on Windows and crontab elsewhere.
//
// exe and workDir form the command a fired OS trigger runs. inprocess yields a
// [Deferred] trigger: the daemon builds its own [InProcess] with [NewInProcess].
func NewTrigger(kind, exe, workDir string) (Trigger, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || kind == KindAuto {
		kind = KindCrontab
		if runtime.GOOS == "windows" {
			kind = KindSchTasks
		}
	}

	switch kind {
	case KindCrontab:
		return NewCronTab(CronCommand(exe, workDir), ExecRunner), nil
	case KindSchTasks:
		return NewSchTasks(SchTasksCommand(exe, workDir), ExecRunner), nil
	case KindInProcess:
		return Deferred{}, nil
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown trigger %q (want auto, crontab, schtasks or inprocess)", shared.ErrConfig, kind)
	}
}

// Executable returns the absolute path of the running binary and the working directory.
func Executable() (exe, workDir string, err error) {
	exe, err = os.Executable()
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	workDir, err = os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return exe, workDir, nil
}

// CronCommand is the shell command a crontab line runs.
func CronCommand(exe, workDir string) string {
	return fmt.Sprintf("cd %s && %s --cron", shellQuote(workDir), shellQuote(exe))
}

// SchTasksCommand is the /TR value of a scheduled task.
func SchTasksCommand(exe, workDir string) string {
	return fmt.Sprintf(`cmd.exe /c "cd /d "%s" && "%s" --cron"`, workDir, exe)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func sortSlots(slots []models.Slot) []models.Slot {
	slices.SortFunc(slots, func(a, b models.Slot) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return slices.Compact(slots)
}
