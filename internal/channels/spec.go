package channels

import (
	"fmt"
	"sort"
	"strings"
)

// SettingKind is the expected type of a free-form channel setting.
type SettingKind int

const (
	KindAny SettingKind = iota
	KindString
	KindBool
	KindInt
	KindStringList
)

func (k SettingKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "integer"
	case KindStringList:
		return "list of strings"
	default:
		return "any"
	}
}

// Spec describes one chat channel: its id, display label, the
// well-known environment variable holding the default account's
// token, and the settings it accepts beyond the typed fields.
type Spec struct {
	ID          string
	Label       string
	TokenEnvVar string

	// Settings maps each accepted setting key to its kind. A nil map
	// accepts any key.
	Settings map[string]SettingKind
}

// commonSettings are accepted by every built-in channel.
var commonSettings = map[string]SettingKind{
	"allowFrom":      KindStringList,
	"dmPolicy":       KindString,
	"groupPolicy":    KindString,
	"groupAllowFrom": KindStringList,
	"mediaMaxMb":     KindInt,
	"textChunkLimit": KindInt,
	"blockStreaming": KindBool,
}

func withCommon(extra map[string]SettingKind) map[string]SettingKind {
	out := make(map[string]SettingKind, len(commonSettings)+len(extra))
	for k, v := range commonSettings {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// builtinSpecs lists the channels shipped with text2llm, in the order
// they are offered to users.
var builtinSpecs = []Spec{
	{ID: "telegram", Label: "Telegram", TokenEnvVar: "TELEGRAM_BOT_TOKEN", Settings: withCommon(map[string]SettingKind{
		"webhookUrl":    KindString,
		"webhookSecret": KindString,
		"proxy":         KindString,
	})},
	{ID: "whatsapp", Label: "WhatsApp", Settings: withCommon(map[string]SettingKind{
		"selfChatMode":     KindBool,
		"sendReadReceipts": KindBool,
	})},
	{ID: "discord", Label: "Discord", TokenEnvVar: "DISCORD_BOT_TOKEN", Settings: withCommon(map[string]SettingKind{
		"guilds": KindAny,
		"dm":     KindAny,
	})},
	{ID: "irc", Label: "IRC", Settings: withCommon(map[string]SettingKind{
		"host":     KindString,
		"port":     KindInt,
		"tls":      KindBool,
		"nick":     KindString,
		"channels": KindStringList,
	})},
	{ID: "slack", Label: "Slack", TokenEnvVar: "SLACK_BOT_TOKEN", Settings: withCommon(map[string]SettingKind{
		"appToken": KindString,
		"mode":     KindString,
		"channels": KindAny,
	})},
	{ID: "signal", Label: "Signal", Settings: withCommon(map[string]SettingKind{
		"account": KindString,
		"cliPath": KindString,
		"httpUrl": KindString,
	})},
	{ID: "imessage", Label: "iMessage", Settings: withCommon(map[string]SettingKind{
		"cliPath": KindString,
		"dbPath":  KindString,
		"service": KindString,
	})},
	{ID: "matrix", Label: "Matrix", TokenEnvVar: "MATRIX_ACCESS_TOKEN", Settings: withCommon(map[string]SettingKind{
		"homeserver": KindString,
		"userId":     KindString,
		"rooms":      KindAny,
	})},
	{ID: "msteams", Label: "Microsoft Teams", Settings: withCommon(map[string]SettingKind{
		"appId":    KindString,
		"tenantId": KindString,
	})},
	{ID: "mattermost", Label: "Mattermost", TokenEnvVar: "MATTERMOST_BOT_TOKEN", Settings: withCommon(map[string]SettingKind{
		"baseUrl":  KindString,
		"chatmode": KindString,
	})},
	{ID: "nextcloud-talk", Label: "Nextcloud Talk", Settings: withCommon(map[string]SettingKind{
		"baseUrl":   KindString,
		"botSecret": KindString,
	})},
	{ID: "tlon", Label: "Tlon", Settings: withCommon(map[string]SettingKind{
		"ship":   KindString,
		"url":    KindString,
		"groups": KindStringList,
	})},
	{ID: "zalo", Label: "Zalo", TokenEnvVar: "ZALO_BOT_TOKEN", Settings: withCommon(map[string]SettingKind{
		"webhookUrl":    KindString,
		"webhookSecret": KindString,
		"webhookPath":   KindString,
		"proxy":         KindString,
	})},
}

// Builtin returns the built-in channel specs in display order.
func Builtin() []Spec {
	out := make([]Spec, len(builtinSpecs))
	copy(out, builtinSpecs)
	return out
}

// LookupSpec returns the built-in spec for id (case-insensitive).
func LookupSpec(id string) (Spec, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, s := range builtinSpecs {
		if s.ID == id {
			return s, true
		}
	}
	return Spec{}, false
}

// SpecFor returns the built-in spec for id, or a permissive spec that
// accepts any setting for channels contributed by other plugins.
func SpecFor(id string) Spec {
	if s, ok := LookupSpec(id); ok {
		return s
	}
	return Spec{ID: id, Label: id}
}

// Validate checks cfg once at load time. Account ids must be non-blank,
// carry no surrounding whitespace, and be unique ignoring case. Every
// setting must be known to the spec and of the declared kind.
func (s Spec) Validate(cfg ChannelConfig) error {
	if err := s.validateSettings("", cfg.Settings); err != nil {
		return err
	}

	ids := make([]string, 0, len(cfg.Accounts))
	for id := range cfg.Accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seen := make(map[string]string, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return &SchemaError{Channel: s.ID, Path: "accounts", Reason: "account id is blank"}
		}
		if strings.TrimSpace(id) != id {
			return &SchemaError{Channel: s.ID, Path: "accounts." + id, Reason: "account id has surrounding whitespace"}
		}
		folded := strings.ToLower(id)
		if prev, dup := seen[folded]; dup {
			return &DuplicateIDError{Channel: s.ID, ID: id, Existing: prev}
		}
		seen[folded] = id

		acct := cfg.Accounts[id]
		for _, reserved := range []string{"accounts", "defaultAccount"} {
			if _, ok := acct.Settings[reserved]; ok {
				return &SchemaError{Channel: s.ID, Path: "accounts." + id + "." + reserved, Reason: "not allowed at account level"}
			}
		}
		if err := s.validateSettings("accounts."+id+".", acct.Settings); err != nil {
			return err
		}
	}
	return nil
}

func (s Spec) validateSettings(prefix string, settings map[string]any) error {
	if s.Settings == nil {
		return nil
	}
	for key, value := range settings {
		kind, ok := s.Settings[key]
		if !ok {
			return &SchemaError{Channel: s.ID, Path: prefix + key, Reason: "unknown setting"}
		}
		if !kindMatches(kind, value) {
			return &SchemaError{Channel: s.ID, Path: prefix + key, Reason: fmt.Sprintf("expected %s, got %T", kind, value)}
		}
	}
	return nil
}

func kindMatches(kind SettingKind, v any) bool {
	switch kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindInt:
		switch n := v.(type) {
		case int, int64, uint64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case KindStringList:
		list, ok := v.([]any)
		if !ok {
			_, ok := v.([]string)
			return ok
		}
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return true
	}
}
