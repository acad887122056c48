package channels

import (
	"strings"

	"github.com/text2llm/text2llm/internal/paths"
)

// TokenSource names the layer that supplied an account's credential.
type TokenSource string

const (
	// SourceConfig is an explicit token on the account entry.
	SourceConfig TokenSource = "config"
	// SourceEnv is an environment variable, either the account's
	// tokenEnv binding or the channel's well-known variable.
	SourceEnv TokenSource = "env"
	// SourceShared is the channel-level token shared by all accounts.
	SourceShared TokenSource = "shared"
	// SourceNone means no layer produced a token.
	SourceNone TokenSource = "none"
)

// ResolvedAccount is the effective configuration of one account at one
// point in time. Token is empty exactly when TokenSource is SourceNone.
type ResolvedAccount struct {
	AccountID   string        `json:"account_id"`
	Name        string        `json:"name,omitempty"`
	Enabled     bool          `json:"enabled"`
	Token       string        `json:"-"`
	TokenSource TokenSource   `json:"token_source"`
	Config      AccountConfig `json:"-"`
}

// HasToken reports whether a credential was found.
func (a ResolvedAccount) HasToken() bool { return a.TokenSource != SourceNone }

// Resolver resolves accounts for one channel against an environment
// snapshot.
type Resolver struct {
	Spec Spec
	Env  paths.Env
}

// ResolveAccount computes the effective settings for accountID (blank
// selects DefaultAccountID). The account entry overlays the channel
// base; the account is enabled only if neither level disables it.
func (r Resolver) ResolveAccount(cfg ChannelConfig, accountID string) ResolvedAccount {
	id := NormalizeAccountID(accountID)
	account, hasAccount := cfg.Accounts[id]

	merged := cfg.Base()
	if hasAccount {
		merged = Overlay(merged, account)
	}

	token, source := r.resolveToken(cfg, id, account, hasAccount)
	return ResolvedAccount{
		AccountID:   id,
		Name:        strings.TrimSpace(merged.Name),
		Enabled:     enabled(cfg.Enabled) && (!hasAccount || enabled(account.Enabled)),
		Token:       token,
		TokenSource: source,
		Config:      merged,
	}
}

// resolveToken walks the credential chain: account token, account
// tokenEnv, the channel's well-known env var (default account only),
// then the channel-level token.
func (r Resolver) resolveToken(cfg ChannelConfig, id string, account AccountConfig, hasAccount bool) (string, TokenSource) {
	if hasAccount {
		if t := strings.TrimSpace(account.Token); t != "" {
			return t, SourceConfig
		}
		if name := strings.TrimSpace(account.TokenEnv); name != "" {
			if t := r.Env.Get(name); t != "" {
				return t, SourceEnv
			}
		}
	}
	if id == DefaultAccountID {
		if name := strings.TrimSpace(cfg.TokenEnv); name != "" {
			if t := r.Env.Get(name); t != "" {
				return t, SourceEnv
			}
		}
		if r.Spec.TokenEnvVar != "" {
			if t := r.Env.Get(r.Spec.TokenEnvVar); t != "" {
				return t, SourceEnv
			}
		}
	}
	if t := strings.TrimSpace(cfg.Token); t != "" {
		return t, SourceShared
	}
	return "", SourceNone
}

// ListEnabledAccounts resolves every id from ListAccountIDs, in that
// order, and keeps the enabled ones.
func (r Resolver) ListEnabledAccounts(cfg ChannelConfig) []ResolvedAccount {
	var out []ResolvedAccount
	for _, id := range ListAccountIDs(cfg) {
		if acct := r.ResolveAccount(cfg, id); acct.Enabled {
			out = append(out, acct)
		}
	}
	return out
}
