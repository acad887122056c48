// Package channels resolves a chat channel's effective per-account
// configuration: which accounts exist, which one is the default, how the
// channel-level and account-level settings layer, and where each
// account's credential comes from.
//
// Everything here is a pure function of a config snapshot and an
// environment snapshot, so results are safe to compute concurrently and
// are never cached.
package channels

// ChannelConfig is one channel's subtree of the config file. Known keys
// are typed; anything else lands in Settings and is checked against the
// channel's [Spec] by [Validate].
//
// The fields shared with [AccountConfig] are repeated rather than
// embedded because yaml.v3 only collects inline maps declared directly
// on the decoded struct.
type ChannelConfig struct {
	Enabled        *bool                    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Name           string                   `yaml:"name,omitempty" json:"name,omitempty"`
	Token          string                   `yaml:"token,omitempty" json:"token,omitempty"`
	TokenEnv       string                   `yaml:"tokenEnv,omitempty" json:"tokenEnv,omitempty"`
	DefaultAccount string                   `yaml:"defaultAccount,omitempty" json:"defaultAccount,omitempty"`
	Accounts       map[string]AccountConfig `yaml:"accounts,omitempty" json:"accounts,omitempty"`
	Settings       map[string]any           `yaml:",inline" json:"settings,omitempty"`
}

// AccountConfig overrides channel-level settings for one account. It has
// the same shape as ChannelConfig without accounts or defaultAccount.
type AccountConfig struct {
	Enabled  *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Name     string         `yaml:"name,omitempty" json:"name,omitempty"`
	Token    string         `yaml:"token,omitempty" json:"token,omitempty"`
	TokenEnv string         `yaml:"tokenEnv,omitempty" json:"tokenEnv,omitempty"`
	Settings map[string]any `yaml:",inline" json:"settings,omitempty"`
}

// Base returns the channel-level settings as an AccountConfig, i.e.
// with accounts and defaultAccount removed. Settings is copied.
func (c ChannelConfig) Base() AccountConfig {
	return AccountConfig{
		Enabled:  c.Enabled,
		Name:     c.Name,
		Token:    c.Token,
		TokenEnv: c.TokenEnv,
		Settings: cloneSettings(c.Settings),
	}
}

// Overlay returns a copy of base with every field set in over applied
// on top. Settings merge key by key; keys absent from over keep the base
// value.
func Overlay(base, over AccountConfig) AccountConfig {
	out := base
	out.Settings = cloneSettings(base.Settings)
	if over.Enabled != nil {
		out.Enabled = over.Enabled
	}
	if over.Name != "" {
		out.Name = over.Name
	}
	if over.Token != "" {
		out.Token = over.Token
	}
	if over.TokenEnv != "" {
		out.TokenEnv = over.TokenEnv
	}
	for k, v := range over.Settings {
		if out.Settings == nil {
			out.Settings = make(map[string]any, len(over.Settings))
		}
		out.Settings[k] = v
	}
	return out
}

func cloneSettings(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Bool returns a pointer to b, for building configs in code.
func Bool(b bool) *bool { return &b }

func enabled(p *bool) bool { return p == nil || *p }
