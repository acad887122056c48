package channels

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultAccountID is the account used when a channel has no explicit
// multi-account configuration.
const DefaultAccountID = "default"

// NormalizeAccountID trims id and maps a blank id to DefaultAccountID.
func NormalizeAccountID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultAccountID
	}
	return id
}

// ListAccountIDs returns the configured account ids in locale-aware
// order, or just DefaultAccountID when accounts is absent or empty.
// Ties under collation are broken bytewise so the order is total.
func ListAccountIDs(cfg ChannelConfig) []string {
	ids := make([]string, 0, len(cfg.Accounts))
	for id := range cfg.Accounts {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []string{DefaultAccountID}
	}

	// Collators carry scratch buffers; one per call keeps this safe for
	// concurrent callers.
	c := collate.New(language.Und)
	slices.SortFunc(ids, func(a, b string) int {
		if n := c.CompareString(a, b); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
	return ids
}

// ResolveDefaultAccountID picks the account used when none is named. An
// explicit defaultAccount wins even if no such account is configured;
// otherwise DefaultAccountID if listed, else the first listed id.
func ResolveDefaultAccountID(cfg ChannelConfig) string {
	if id := strings.TrimSpace(cfg.DefaultAccount); id != "" {
		return id
	}
	ids := ListAccountIDs(cfg)
	if slices.Contains(ids, DefaultAccountID) {
		return DefaultAccountID
	}
	if len(ids) > 0 {
		return ids[0]
	}
	return DefaultAccountID
}
