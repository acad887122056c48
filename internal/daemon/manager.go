package daemon

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/text2llm/text2llm/internal/paths"
)

// State values reported when the service manager's answer cannot be
// interpreted.
const (
	StateUnknown = "unknown"
	StateRunning = "running"
)

// ErrUnsupportedPlatform is returned by [ForPlatform] for hosts without
// a supported service manager.
var ErrUnsupportedPlatform = errors.New("no supported service manager on this platform")

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. On failure the error carries a bounded
// excerpt of stderr.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errOutput := strings.TrimSpace(stderr.String())
		if len(errOutput) > 500 {
			errOutput = errOutput[:500]
		}
		if errOutput == "" {
			return stdout.Bytes(), err
		}
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, errOutput)
	}
	return stdout.Bytes(), nil
}

// Report describes the gateway service as seen by the platform's
// service manager. Unit and Path are always filled so a misconfigured
// profile is diagnosable from the report alone.
type Report struct {
	Platform string `json:"platform"`
	Unit     string `json:"unit"`
	Path     string `json:"path"`
	State    string `json:"state"`

	// Status is set for systemd when the report parsed.
	Status *ServiceStatus `json:"status,omitempty"`

	// PID and LastExitCode are set for launchd when reported.
	PID          int  `json:"pid,omitempty"`
	LastExitCode *int `json:"last_exit_code,omitempty"`
}

// Manager controls the gateway service.
type Manager interface {
	Status(ctx context.Context) (Report, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
}

// ForPlatform returns the Manager for goos. uid is only used on darwin.
func ForPlatform(goos string, env paths.Env, uid int, runner Runner) (Manager, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	switch goos {
	case "linux":
		return &Systemd{Env: env, Runner: runner}, nil
	case "darwin":
		return &Launchd{Env: env, UID: uid, Label: LaunchdGatewayLabel, Runner: runner}, nil
	default:
		return nil, fmt.Errorf("%s: %w", goos, ErrUnsupportedPlatform)
	}
}

// Systemd manages the per-user gateway unit via systemctl --user.
type Systemd struct {
	Env    paths.Env
	Runner Runner
}

func (s *Systemd) unit() (name, path string, err error) {
	name = SystemdUnitName(s.Env)
	path, err = ResolveSystemdUnitPath(s.Env)
	return name, path, err
}

// Status queries systemctl show. A report that does not parse yields
// State "unknown" together with the *ParseError.
func (s *Systemd) Status(ctx context.Context) (Report, error) {
	name, path, err := s.unit()
	rep := Report{Platform: "systemd", Unit: name, Path: path, State: StateUnknown}
	if err != nil {
		return rep, err
	}

	out, err := s.Runner.Run(ctx, "systemctl", "--user", "show", name,
		"--property="+strings.Join(ShowProperties, ","), "--no-pager")
	if err != nil {
		return rep, fmt.Errorf("systemd unit %s (%s): status: %w", name, path, err)
	}

	st, err := ParseSystemdShow(string(out))
	if err != nil {
		return rep, fmt.Errorf("systemd unit %s (%s): %w", name, path, err)
	}
	rep.Status = &st
	if st.Running() {
		rep.State = StateRunning
	} else {
		rep.State = st.ActiveState
	}
	return rep, nil
}

// Start runs systemctl --user start.
func (s *Systemd) Start(ctx context.Context) error { return s.verb(ctx, "start") }

// Stop runs systemctl --user stop.
func (s *Systemd) Stop(ctx context.Context) error { return s.verb(ctx, "stop") }

// Restart runs systemctl --user restart.
func (s *Systemd) Restart(ctx context.Context) error { return s.verb(ctx, "restart") }

func (s *Systemd) verb(ctx context.Context, verb string) error {
	name, path, err := s.unit()
	if err != nil {
		return err
	}
	if _, err := s.Runner.Run(ctx, "systemctl", "--user", verb, name); err != nil {
		return fmt.Errorf("systemd unit %s (%s): %s: %w", name, path, verb, err)
	}
	return nil
}

// Launchd manages a launch agent in the user's GUI domain.
type Launchd struct {
	Env    paths.Env
	UID    int
	Label  string
	Runner Runner
}

func (l *Launchd) target() string { return LaunchdTarget(l.UID, l.Label) }

// Status parses launchctl print for the job state, pid and last exit
// code.
func (l *Launchd) Status(ctx context.Context) (Report, error) {
	rep := Report{Platform: "launchd", Unit: l.target(), State: StateUnknown}
	path, err := ResolveLaunchAgentPath(l.Env, l.Label)
	if err != nil {
		return rep, err
	}
	rep.Path = path

	out, err := l.Runner.Run(ctx, "launchctl", "print", l.target())
	if err != nil {
		return rep, fmt.Errorf("launchd job %s (%s): status: %w", rep.Unit, path, err)
	}
	if err := parseLaunchctlPrint(string(out), &rep); err != nil {
		return rep, fmt.Errorf("launchd job %s (%s): %w", rep.Unit, path, err)
	}
	return rep, nil
}

// Start runs launchctl kickstart -k, which also restarts a running job.
func (l *Launchd) Start(ctx context.Context) error {
	return l.run(ctx, "start", "kickstart", "-k", l.target())
}

// Stop runs launchctl stop.
func (l *Launchd) Stop(ctx context.Context) error {
	return l.run(ctx, "stop", "stop", l.target())
}

// Restart is kickstart -k.
func (l *Launchd) Restart(ctx context.Context) error {
	return l.run(ctx, "restart", "kickstart", "-k", l.target())
}

func (l *Launchd) run(ctx context.Context, verb string, args ...string) error {
	path, err := ResolveLaunchAgentPath(l.Env, l.Label)
	if err != nil {
		return err
	}
	if _, err := l.Runner.Run(ctx, "launchctl", args...); err != nil {
		return fmt.Errorf("launchd job %s (%s): %s: %w", l.target(), path, verb, err)
	}
	return nil
}

// parseLaunchctlPrint extracts the top-level "state", "pid" and
// "last exit code" fields. Nested blocks repeat some keys, so only the
// first occurrence of each is used.
func parseLaunchctlPrint(out string, rep *Report) error {
	var sawState bool
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), " = ")
		if !ok {
			continue
		}
		switch key {
		case "state":
			if !sawState {
				rep.State = value
				sawState = true
			}
		case "pid":
			if rep.PID == 0 {
				pid, err := strconv.Atoi(value)
				if err != nil {
					rep.State = StateUnknown
					return &ParseError{Key: key, Reason: fmt.Sprintf("not an integer: %q", value)}
				}
				rep.PID = pid
			}
		case "last exit code":
			if rep.LastExitCode == nil {
				// launchd prints "(never exited)" for jobs that have not.
				if code, err := strconv.Atoi(value); err == nil {
					rep.LastExitCode = &code
				}
			}
		}
	}
	if !sawState {
		rep.State = StateUnknown
		return &ParseError{Key: "state", Reason: "missing"}
	}
	return nil
}
