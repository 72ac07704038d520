package verify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/logging"
)

// Reporter renders script progress to the user.
type Reporter interface {
	StageStart(name string)
	StageStop(ok bool)
	Error(msg string)
	Output(line string)
}

// Runner executes a type's verify or prepare script in a bash child and
// aggregates the protocol messages it sends on descriptor 3.
type Runner struct {
	Bash     string   // Path to bash; defaults to /bin/bash
	LogDir   string   // Directory for <name>.<op>.log files
	Env      []string // Base environment for the child
	Reporter Reporter // Progress sink; nil discards
	Logger   *zap.Logger

	delimOnce sync.Once
	delim     string
}

// LogPath returns the log file a run of op for name writes to.
func (r *Runner) LogPath(name, op string) string {
	return filepath.Join(r.LogDir, name+"."+op+".log")
}

// Run executes script with the type name as its single argument. A script
// that exits non-zero yields an unsuccessful Outcome, not an error; errors
// are reserved for a missing script, spawn failures and interruption.
func (r *Runner) Run(ctx context.Context, script, name, op string) (Outcome, error) {
	logger := logging.OrNop(r.Logger).With(zap.String("type", name), zap.String("op", op))
	rep := r.Reporter
	if rep == nil {
		rep = NopReporter{}
	}

	if _, err := os.Stat(script); err != nil {
		return Outcome{}, apperr.New(apperr.IncompleteType, "no %s script provided for type: %s", op, name)
	}

	if err := os.MkdirAll(r.LogDir, 0755); err != nil {
		return Outcome{}, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.Create(r.LogPath(name, op))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	rd, wr, err := os.Pipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create comms pipe: %w", err)
	}
	defer rd.Close()

	bash := r.bash()
	cmd := exec.CommandContext(ctx, bash, "-x", script, name)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.ExtraFiles = []*os.File{wr}
	cmd.Env = append(append([]string{}, r.Env...), FunctionEnv(r.delimiter(ctx, bash))...)

	// Keep the CLI alive on Ctrl-C; the child still receives the signal
	// with its default disposition.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		for range sigs {
		}
	}()
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()

	logger.Debug("running script", zap.String("script", script), zap.String("log", logFile.Name()))
	if err := cmd.Start(); err != nil {
		_ = wr.Close()
		return Outcome{}, fmt.Errorf("failed to start %s script: %w", op, err)
	}
	_ = wr.Close()

	outcome, inStage := r.consume(rd, rep)

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		if inStage {
			rep.StageStop(false)
		}
		return outcome, apperr.Wrap(apperr.Interrupted, ctx.Err(), "%s of %s interrupted", op, name)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		outcome.Succeeded = true
	case errors.As(waitErr, &exitErr):
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() && ws.Signal() == syscall.SIGINT {
			if inStage {
				rep.StageStop(false)
			}
			return outcome, apperr.New(apperr.Interrupted, "%s of %s interrupted", op, name)
		}
		logger.Debug("script failed", zap.Int("exit", exitErr.ExitCode()))
	default:
		return outcome, fmt.Errorf("failed to wait for %s script: %w", op, waitErr)
	}

	if inStage {
		rep.StageStop(outcome.Succeeded)
	}
	return outcome, nil
}

// consume reads protocol lines until the child closes its end of the pipe.
// It reports whether a stage is still open.
func (r *Runner) consume(rd io.Reader, rep Reporter) (Outcome, bool) {
	var outcome Outcome
	inStage := false

	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		ev := ParseLine(scanner.Text())
		switch ev.Kind {
		case EventStage:
			if inStage {
				rep.StageStop(true)
			}
			rep.StageStart(ev.Text)
			inStage = true
		case EventError:
			rep.Error(ev.Text)
		case EventMissing:
			outcome.Missing = append(outcome.Missing, ev.Text)
			if inStage {
				rep.StageStop(false)
				inStage = false
			}
		default:
			rep.Output(ev.Text)
		}
	}
	return outcome, inStage
}

func (r *Runner) bash() string {
	if r.Bash != "" {
		return r.Bash
	}
	return "/bin/bash"
}

func (r *Runner) delimiter(ctx context.Context, bash string) string {
	r.delimOnce.Do(func() {
		r.delim = FunctionDelimiter(ctx, bash)
	})
	return r.delim
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) StageStart(string) {}
func (NopReporter) StageStop(bool)    {}
func (NopReporter) Error(string)      {}
func (NopReporter) Output(string)     {}

// TextReporter writes progress as plain lines.
type TextReporter struct {
	W     io.Writer
	stage string
}

func (t *TextReporter) StageStart(name string) {
	t.stage = name
}

func (t *TextReporter) StageStop(ok bool) {
	mark := "OK"
	if !ok {
		mark = "FAILED"
	}
	_, _ = fmt.Fprintf(t.W, "   > %s [%s]\n", t.stage, mark)
	t.stage = ""
}

func (t *TextReporter) Error(msg string) {
	_, _ = fmt.Fprintf(t.W, "== ERROR: %s\n", msg)
}

func (t *TextReporter) Output(line string) {
	_, _ = fmt.Fprintf(t.W, " > %s\n", line)
}
