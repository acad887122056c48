// Package daemon locates and controls the background gateway service
// on systemd (Linux) and launchd (macOS) hosts.
package daemon

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/text2llm/text2llm/internal/paths"
	"github.com/text2llm/text2llm/internal/profile"
)

const (
	// GatewayUnitBase is the systemd unit name for the default profile.
	GatewayUnitBase = "text2llm-gateway"
	unitSuffix      = ".service"
)

// LaunchdGatewayLabel is the gateway's launch agent label. launchd
// addresses jobs by a pre-registered label, so there is exactly one per
// install and no per-profile variant.
const LaunchdGatewayLabel = "ai.text2llm.gateway"

// SystemdUnitName returns the unit file name for this instance. An
// explicit TEXT2LLM_SYSTEMD_UNIT overrides profile naming entirely;
// ".service" is appended unless already present.
func SystemdUnitName(env paths.Env) string {
	if name, ok := env.Lookup(paths.VarSystemdUnit); ok {
		if strings.HasSuffix(name, unitSuffix) {
			return name
		}
		return name + unitSuffix
	}
	return profile.Normalize(env.Profile()).Suffix(GatewayUnitBase) + unitSuffix
}

// ResolveSystemdUnitPath returns the absolute path of the per-user unit
// file: <home>/.config/systemd/user/<unit>. Home here is the OS home
// (HOME, then USERPROFILE), since that is where systemd looks.
func ResolveSystemdUnitPath(env paths.Env) (string, error) {
	home, err := paths.OSHomeDir(env)
	if err != nil {
		return "", fmt.Errorf("resolve systemd unit %s: %w", SystemdUnitName(env), err)
	}
	return filepath.Join(home, ".config", "systemd", "user", SystemdUnitName(env)), nil
}

// ResolveLaunchAgentPath returns <home>/Library/LaunchAgents/<label>.plist.
func ResolveLaunchAgentPath(env paths.Env, label string) (string, error) {
	home, err := paths.OSHomeDir(env)
	if err != nil {
		return "", fmt.Errorf("resolve launch agent %s: %w", label, err)
	}
	return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), nil
}

// LaunchdTarget returns the launchctl service target for a GUI-domain
// agent, e.g. "gui/501/ai.text2llm.gateway".
func LaunchdTarget(uid int, label string) string {
	return fmt.Sprintf("gui/%d/%s", uid, label)
}
