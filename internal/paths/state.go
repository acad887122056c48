package paths

import (
	"fmt"
	"path/filepath"

	"github.com/text2llm/text2llm/internal/profile"
)

const (
	// StateDirName is the per-user state directory for the default
	// profile. Named profiles append "-<token>".
	StateDirName = ".text2llm"

	// ConfigFileName is the config file inside the state directory.
	ConfigFileName = "text2llm.json"

	// DevGatewayPort is the gateway port filled in for the dev profile.
	DevGatewayPort = "19001"
)

// ResolveStateDir returns the absolute root for this instance's
// persisted state. An explicit TEXT2LLM_STATE_DIR wins regardless of
// profile; otherwise the directory is ~/.text2llm for the default
// profile and ~/.text2llm-<token> for a named one. With neither an
// override nor a home directory it returns a *ConfigError.
func ResolveStateDir(env Env) (string, error) {
	if override, ok := env.Lookup(VarStateDir); ok {
		return resolveOverride(override, env)
	}
	home, err := ResolveHomeDir(env)
	if err != nil {
		return "", &ConfigError{
			What:    "state directory",
			Missing: []string{VarStateDir, VarAppHome, VarHome, VarUserProfile},
		}
	}
	return profileStateDir(home, env.Profile()), nil
}

func profileStateDir(home, rawProfile string) string {
	return filepath.Join(home, profile.Normalize(rawProfile).Suffix(StateDirName))
}

// resolveOverride expands a leading ~ and makes p absolute. Paths that
// are already absolute on any platform come back unchanged.
func resolveOverride(p string, env Env) (string, error) {
	expanded, err := ExpandHome(p, env)
	if err != nil {
		return "", err
	}
	if IsAbs(expanded) {
		return expanded, nil
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", &ConfigError{What: fmt.Sprintf("path %q", p), Err: err}
	}
	return abs, nil
}

// ResolveConfigPath returns TEXT2LLM_CONFIG_PATH when set, otherwise
// text2llm.json inside the state directory.
func ResolveConfigPath(env Env) (string, error) {
	return resolveUnderState(env, VarConfigPath, ConfigFileName)
}

// ResolveOAuthDir returns TEXT2LLM_OAUTH_DIR when set, otherwise the
// credentials directory inside the state directory.
func ResolveOAuthDir(env Env) (string, error) {
	return resolveUnderState(env, VarOAuthDir, "credentials")
}

// ResolveAgentDir returns TEXT2LLM_AGENT_DIR when set, otherwise
// agents/main/agent inside the state directory.
func ResolveAgentDir(env Env) (string, error) {
	return resolveUnderState(env, VarAgentDir, filepath.Join("agents", "main", "agent"))
}

func resolveUnderState(env Env, overrideVar, rel string) (string, error) {
	if override, ok := env.Lookup(overrideVar); ok {
		return resolveOverride(override, env)
	}
	stateDir, err := ResolveStateDir(env)
	if err != nil {
		return "", err
	}
	return filepath.Join(stateDir, rel), nil
}

// IsNixMode reports whether the instance runs under a Nix-managed
// install, where config is read-only and self-updates are disabled.
func IsNixMode(env Env) bool {
	return env.Get(VarNixMode) == "1"
}

// ApplyProfile returns a copy of env with the variables implied by the
// named profile filled in. Variables that are already set are never
// overridden. The dev profile also gets the dev gateway port.
func ApplyProfile(env Env, name string) (Env, error) {
	p := profile.Normalize(name)
	out := env.With(VarProfile, p.String())

	stateDir, ok := out.Lookup(VarStateDir)
	if !ok {
		home, err := ResolveHomeDir(out)
		if err != nil {
			return nil, err
		}
		stateDir = profileStateDir(home, p.Token)
		out[VarStateDir] = stateDir
	}
	if _, ok := out.Lookup(VarConfigPath); !ok {
		out[VarConfigPath] = filepath.Join(stateDir, ConfigFileName)
	}
	if p.Token == profile.DevName {
		if _, ok := out.Lookup(VarGatewayPort); !ok {
			out[VarGatewayPort] = DevGatewayPort
		}
	}
	return out, nil
}

// Resolved collects every derived path for diagnostics.
type Resolved struct {
	Profile    string `json:"profile"`
	Home       string `json:"home"`
	StateDir   string `json:"state_dir"`
	ConfigPath string `json:"config_path"`
	OAuthDir   string `json:"oauth_dir"`
	AgentDir   string `json:"agent_dir"`
	NixMode    bool   `json:"nix_mode"`
}

// Resolve computes all paths at once. The first resolution failure is
// returned.
func Resolve(env Env) (Resolved, error) {
	r := Resolved{
		Profile: profile.Normalize(env.Profile()).String(),
		NixMode: IsNixMode(env),
	}
	var err error
	// Home is informational; an explicit state dir can stand in for it.
	r.Home, _ = ResolveHomeDir(env)
	if r.StateDir, err = ResolveStateDir(env); err != nil {
		return r, err
	}
	if r.ConfigPath, err = ResolveConfigPath(env); err != nil {
		return r, err
	}
	if r.OAuthDir, err = ResolveOAuthDir(env); err != nil {
		return r, err
	}
	if r.AgentDir, err = ResolveAgentDir(env); err != nil {
		return r, err
	}
	return r, nil
}
