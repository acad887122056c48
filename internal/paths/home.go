package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// windowsAbs matches drive-letter and UNC absolute paths. They are
// recognized on every host so that a state directory configured for a
// Windows machine is never rewritten relative to a POSIX cwd.
var windowsAbs = regexp.MustCompile(`^(?:[A-Za-z]:[\\/]|\\\\)`)

// OSHomeDir returns the operating system's notion of the user's home:
// HOME, then USERPROFILE, made absolute. TEXT2LLM_HOME is not consulted.
func OSHomeDir(env Env) (string, error) {
	if h, ok := env.Lookup(VarHome); ok {
		return absHome(h)
	}
	if h, ok := env.Lookup(VarUserProfile); ok {
		return absHome(h)
	}
	return "", &ConfigError{
		What:    "home directory",
		Missing: []string{VarHome, VarUserProfile},
	}
}

// ResolveHomeDir returns the effective home directory: TEXT2LLM_HOME
// (with a leading ~ expanded against the OS home), then HOME, then
// USERPROFILE. The result is always absolute.
func ResolveHomeDir(env Env) (string, error) {
	if h, ok := env.Lookup(VarAppHome); ok {
		if !hasTildePrefix(h) {
			return absHome(h)
		}
		osHome, err := OSHomeDir(env)
		if err != nil {
			return "", &ConfigError{What: "home directory", Err: err}
		}
		return joinTilde(osHome, h), nil
	}
	h, err := OSHomeDir(env)
	if err != nil {
		return "", &ConfigError{
			What:    "home directory",
			Missing: []string{VarAppHome, VarHome, VarUserProfile},
		}
	}
	return h, nil
}

// ExpandHome replaces a leading "~", "~/" or "~\" in p with the
// effective home directory. Paths without a tilde prefix are returned
// unchanged and never fail.
func ExpandHome(p string, env Env) (string, error) {
	if !hasTildePrefix(p) {
		return p, nil
	}
	home, err := ResolveHomeDir(env)
	if err != nil {
		return "", err
	}
	return joinTilde(home, p), nil
}

// absHome resolves a relative home against the working directory.
// Absolute paths of any platform come back unchanged.
func absHome(h string) (string, error) {
	if IsAbs(h) {
		return h, nil
	}
	abs, err := filepath.Abs(h)
	if err != nil {
		return "", &ConfigError{What: fmt.Sprintf("home directory %q", h), Err: err}
	}
	return abs, nil
}

// IsAbs reports whether p is absolute on any supported platform.
func IsAbs(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(p, "/") || windowsAbs.MatchString(p)
}

func hasTildePrefix(p string) bool {
	return p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`)
}

func joinTilde(home, p string) string {
	rest := strings.TrimLeft(p[1:], `/\`)
	if rest == "" {
		return home
	}
	return filepath.Join(home, rest)
}
