// Package discovery finds text2llm gateways on the local network and
// gives each one a stable identity that survives repeated broadcasts.
package discovery

import (
	"encoding/hex"
	"net"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/text2llm/text2llm/internal/bonjour"
)

// Kind distinguishes a named service advertisement from a bare address.
type Kind int

const (
	// KindService is a DNS-SD advertisement with name, type and domain.
	KindService Kind = iota
	// KindHostPort is a direct host:port address.
	KindHostPort
)

// String returns "service" or "hostport".
func (k Kind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindHostPort:
		return "hostport"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Endpoint is a discovered rendezvous point. Host and Port are filled
// for KindHostPort and, once resolved, for KindService.
type Endpoint struct {
	Kind        Kind     `json:"kind"`
	Name        string   `json:"name,omitempty"`
	ServiceType string   `json:"service_type,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	Host        string   `json:"host,omitempty"`
	Port        int      `json:"port,omitempty"`
	Text        []string `json:"txt,omitempty"`
}

// String returns the endpoint's default description: the raw
// "name.type.domain" for services, host:port otherwise.
func (e Endpoint) String() string {
	if e.Kind == KindService {
		return e.Name + "." + e.ServiceType + "." + e.Domain
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// StableID returns a key for de-duplicating an endpoint across
// discovery broadcasts. For services it is "type|domain|name" with the
// name's DNS-SD escapes decoded, so byte-level escaping differences
// collapse to one ID.
//
// For other endpoints it is the default description, which is not
// guaranteed to stay stable if the address representation changes.
// Callers that need a normalized address key can use
// [AddressFingerprint].
func StableID(e Endpoint) string {
	if e.Kind == KindService {
		return e.ServiceType + "|" + e.Domain + "|" + bonjour.Decode(e.Name)
	}
	return e.String()
}

// PrettyLabel returns a display name. It is lossy and must never be used
// as a lookup key.
func PrettyLabel(e Endpoint) string {
	if e.Kind == KindService {
		return bonjour.Decode(e.Name)
	}
	return StableID(e)
}

// AddressFingerprint hashes the normalized host:port of e with BLAKE3
// and returns the first 16 bytes as hex. Hosts are lowercased with any
// trailing dot removed, and IP literals are canonicalized, so hosts
// "::1" and "0:0::1" agree. Returns "" when e has no host.
func AddressFingerprint(e Endpoint) string {
	host := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(e.Host)), ".")
	if host == "" {
		return ""
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		host = ip.String()
	}
	sum := blake3.Sum256([]byte(net.JoinHostPort(host, strconv.Itoa(e.Port))))
	return hex.EncodeToString(sum[:16])
}
