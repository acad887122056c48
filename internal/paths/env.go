// Package paths resolves where a text2llm instance keeps its state. All
// resolution works on an explicit [Env] snapshot taken once at startup,
// so the same inputs always produce the same paths and tests never need
// to touch the process environment.
package paths

import "strings"

// Environment variables consulted by the resolvers.
const (
	VarHome        = "HOME"
	VarUserProfile = "USERPROFILE"
	VarAppHome     = "TEXT2LLM_HOME"
	VarStateDir    = "TEXT2LLM_STATE_DIR"
	VarProfile     = "TEXT2LLM_PROFILE"
	VarSystemdUnit = "TEXT2LLM_SYSTEMD_UNIT"
	VarConfigPath  = "TEXT2LLM_CONFIG_PATH"
	VarOAuthDir    = "TEXT2LLM_OAUTH_DIR"
	VarAgentDir    = "TEXT2LLM_AGENT_DIR"
	VarGatewayPort = "TEXT2LLM_GATEWAY_PORT"
	VarNixMode     = "TEXT2LLM_NIX_MODE"
)

// Env is an immutable-by-convention snapshot of environment variables.
// A nil Env behaves as an empty environment.
type Env map[string]string

// FromEnviron builds an Env from KEY=VALUE pairs as returned by
// os.Environ. Entries without '=' are ignored.
func FromEnviron(environ []string) Env {
	env := make(Env, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Get returns the whitespace-trimmed value of key, or "" when unset.
func (e Env) Get(key string) string {
	return strings.TrimSpace(e[key])
}

// Lookup returns the trimmed value of key and whether it is set to a
// non-blank value.
func (e Env) Lookup(key string) (string, bool) {
	v := e.Get(key)
	return v, v != ""
}

// With returns a copy of e with key set to value. The receiver is not
// modified.
func (e Env) With(key, value string) Env {
	out := make(Env, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	out[key] = value
	return out
}

// Profile returns the raw profile name from the snapshot.
func (e Env) Profile() string {
	return e.Get(VarProfile)
}
