package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"tether/internal/services"
	"tether/internal/template"
	"tether/pkg/logging"
)

// stopGrace is how long a daemon gets to exit after SIGTERM.
const stopGrace = 5 * time.Second

// ExecActivator starts and stops a unit by running the commands from its
// manifest.
type ExecActivator struct {
	unit string
	dir  string
	spec ActivatorSpec

	mu     sync.Mutex
	daemon *exec.Cmd
	exited chan error
}

// NewExecActivator returns the activator for unit. Relative working
// directories resolve against base.
func NewExecActivator(unit, base string, spec ActivatorSpec) *ExecActivator {
	dir := base
	if spec.Dir != "" {
		dir = spec.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
	}
	return &ExecActivator{unit: unit, dir: dir, spec: spec}
}

// Start runs the start command. A daemon is left running and the start
// succeeds once the process launched.
func (a *ExecActivator) Start(ctx context.Context, _ *services.StartContext) error {
	if len(a.spec.Start) == 0 {
		return nil
	}
	if !a.spec.Daemon {
		return a.run(ctx, "start", a.spec.Start)
	}

	cmd := a.command(context.WithoutCancel(ctx), a.spec.Start)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("unit %s: failed to launch %s: %w", a.unit, a.spec.Start[0], err)
	}
	exited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil {
			logging.Warn("Activator", "Daemon of %s exited: %v", a.unit, err)
		}
		exited <- err
	}()

	a.mu.Lock()
	a.daemon = cmd
	a.exited = exited
	a.mu.Unlock()
	logging.Info("Activator", "Started %s (pid %d)", a.unit, cmd.Process.Pid)
	return nil
}

// Stop terminates a running daemon, then runs the stop command.
func (a *ExecActivator) Stop(ctx context.Context) error {
	a.mu.Lock()
	cmd, exited := a.daemon, a.exited
	a.daemon, a.exited = nil, nil
	a.mu.Unlock()

	var errs []error
	if cmd != nil {
		errs = append(errs, terminate(cmd, exited))
	}
	if len(a.spec.Stop) > 0 {
		errs = append(errs, a.run(ctx, "stop", a.spec.Stop))
	}
	return errors.Join(errs...)
}

// Value is nil; the unit service produces the unit itself.
func (a *ExecActivator) Value() any {
	return nil
}

// Running reports whether a daemon process is attached.
func (a *ExecActivator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.daemon != nil
}

func (a *ExecActivator) run(ctx context.Context, what string, argv []string) error {
	cmd := a.command(ctx, argv)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if len(out) > 0 {
		logging.Debug("Activator", "%s %s: %s", a.unit, what, strings.TrimSpace(string(out)))
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("unit %s: %s command failed: %w: %s", a.unit, what, err, msg)
		}
		return fmt.Errorf("unit %s: %s command failed: %w", a.unit, what, err)
	}
	return nil
}

func (a *ExecActivator) command(ctx context.Context, argv []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = a.dir
	extra := template.MergeEnv(a.spec.Env, map[string]string{"TETHER_UNIT": a.unit})
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	cmd.Env = env
	return cmd
}

func terminate(cmd *exec.Cmd, exited <-chan error) error {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to signal pid %d: %w", cmd.Process.Pid, err)
	}
	select {
	case <-exited:
		return nil
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		<-exited
		return fmt.Errorf("pid %d ignored SIGTERM and was killed", cmd.Process.Pid)
	}
}
