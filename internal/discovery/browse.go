package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/grandcat/zeroconf"
)

// Defaults for the gateway's DNS-SD advertisement.
const (
	DefaultServiceType = "_text2llm-gw._tcp"
	DefaultDomain      = "local."
)

// browseFunc matches (*zeroconf.Resolver).Browse so tests can feed
// entries without a network.
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Browser looks for gateways via mDNS.
type Browser struct {
	ServiceType string
	Domain      string
	Logger      *slog.Logger

	browse browseFunc
}

// NewBrowser returns a Browser for serviceType in domain. Empty values
// select the defaults.
func NewBrowser(serviceType, domain string, logger *slog.Logger) *Browser {
	if serviceType == "" {
		serviceType = DefaultServiceType
	}
	if domain == "" {
		domain = DefaultDomain
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{ServiceType: serviceType, Domain: domain, Logger: logger}
}

// Browse reports every distinct gateway to found exactly once, keyed by
// [StableID], until ctx is done. Re-broadcasts of an already reported
// endpoint are dropped.
func (b *Browser) Browse(ctx context.Context, found func(Endpoint)) error {
	browse := b.browse
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return fmt.Errorf("create mdns resolver: %w", err)
		}
		browse = resolver.Browse
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := browse(ctx, b.ServiceType, b.Domain, entries); err != nil {
		return fmt.Errorf("browse %s in %s: %w", b.ServiceType, b.Domain, err)
	}

	seen := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			if entry == nil {
				continue
			}
			e := FromServiceEntry(entry)
			id := StableID(e)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			b.Logger.Debug("gateway discovered", "id", id, "host", e.Host, "port", e.Port)
			found(e)
		}
	}
}

// Discover browses until ctx is done and returns the endpoints sorted by
// StableID.
func (b *Browser) Discover(ctx context.Context) ([]Endpoint, error) {
	var out []Endpoint
	if err := b.Browse(ctx, func(e Endpoint) { out = append(out, e) }); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return StableID(out[i]) < StableID(out[j]) })
	return out, nil
}

// FromServiceEntry converts a zeroconf browse result. The host prefers
// the advertised host name and falls back to the first address.
func FromServiceEntry(entry *zeroconf.ServiceEntry) Endpoint {
	e := Endpoint{
		Kind:        KindService,
		Name:        entry.Instance,
		ServiceType: entry.Service,
		Domain:      entry.Domain,
		Port:        entry.Port,
		Text:        entry.Text,
	}
	switch {
	case entry.HostName != "":
		e.Host = strings.TrimSuffix(entry.HostName, ".")
	case len(entry.AddrIPv4) > 0:
		e.Host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		e.Host = entry.AddrIPv6[0].String()
	}
	return e
}

// Advertisement describes the local gateway to publish.
type Advertisement struct {
	Name        string
	ServiceType string
	Domain      string
	Port        int
	Text        []string
}

// Advertise registers the gateway with mDNS. The returned function
// withdraws the advertisement.
func Advertise(ad Advertisement, logger *slog.Logger) (func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ad.ServiceType == "" {
		ad.ServiceType = DefaultServiceType
	}
	if ad.Domain == "" {
		ad.Domain = DefaultDomain
	}
	if ad.Port <= 0 {
		return nil, fmt.Errorf("advertise %s: invalid port %d", ad.Name, ad.Port)
	}

	server, err := zeroconf.Register(ad.Name, ad.ServiceType, ad.Domain, ad.Port, ad.Text, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register %s: %w", ad.Name, err)
	}
	logger.Info("gateway advertised",
		"name", ad.Name,
		"service", ad.ServiceType,
		"domain", ad.Domain,
		"port", ad.Port,
	)
	return server.Shutdown, nil
}
