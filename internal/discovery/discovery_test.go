package discovery

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestStableID(t *testing.T) {
	tests := []struct {
		name string
		e    Endpoint
		want string
	}{
		{
			name: "service with escapes",
			e:    Endpoint{Kind: KindService, Name: `Studio\032Mac`, ServiceType: "_text2llm-gw._tcp", Domain: "local."},
			want: "_text2llm-gw._tcp|local.|Studio Mac",
		},
		{
			name: "escapes only decoded",
			e:    Endpoint{Kind: KindService, Name: "text2llm\\032Gateway   \\032  Node\n", ServiceType: "_svc._tcp", Domain: "local."},
			want: "_svc._tcp|local.|text2llm Gateway      Node\n",
		},
		{
			name: "host port",
			e:    Endpoint{Kind: KindHostPort, Host: "192.168.1.20", Port: 18789},
			want: "192.168.1.20:18789",
		},
		{
			name: "ipv6 host port",
			e:    Endpoint{Kind: KindHostPort, Host: "fe80::1", Port: 18789},
			want: "[fe80::1]:18789",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StableID(tt.e); got != tt.want {
				t.Errorf("StableID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStableID_EscapingCollapses(t *testing.T) {
	a := Endpoint{Kind: KindService, Name: `Office\032Node`, ServiceType: "_text2llm-gw._tcp", Domain: "local."}
	b := Endpoint{Kind: KindService, Name: "Office Node", ServiceType: "_text2llm-gw._tcp", Domain: "local."}
	if StableID(a) != StableID(b) {
		t.Errorf("StableID(%q) != StableID(%q)", a.Name, b.Name)
	}
	// Resolution details must not change the identity of a service.
	a.Host, a.Port = "office.local", 18789
	if StableID(a) != StableID(b) {
		t.Error("host/port changed a service StableID")
	}
}

func TestPrettyLabel(t *testing.T) {
	svc := Endpoint{Kind: KindService, Name: `Peter\226\128\153s Mac`, ServiceType: "_x._tcp", Domain: "local."}
	if got := PrettyLabel(svc); strings.Contains(got, `\`) {
		t.Errorf("PrettyLabel() = %q, escapes left", got)
	}
	hp := Endpoint{Kind: KindHostPort, Host: "10.0.0.2", Port: 80}
	if PrettyLabel(hp) != StableID(hp) {
		t.Errorf("PrettyLabel(%v) = %q, want StableID", hp, PrettyLabel(hp))
	}
}

func TestAddressFingerprint(t *testing.T) {
	a := AddressFingerprint(Endpoint{Kind: KindHostPort, Host: "Gateway.Local.", Port: 18789})
	b := AddressFingerprint(Endpoint{Kind: KindService, Name: "x", Host: "gateway.local", Port: 18789})
	if a == "" || a != b {
		t.Errorf("fingerprints differ: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("len = %d, want 32 hex chars", len(a))
	}
	c := AddressFingerprint(Endpoint{Kind: KindHostPort, Host: "::1", Port: 80})
	d := AddressFingerprint(Endpoint{Kind: KindHostPort, Host: "0:0::1", Port: 80})
	if c != d {
		t.Errorf("ipv6 forms not canonicalized: %q vs %q", c, d)
	}
	if AddressFingerprint(Endpoint{Kind: KindHostPort, Host: "gateway.local", Port: 1}) == a {
		t.Error("port not part of fingerprint")
	}
	if AddressFingerprint(Endpoint{Kind: KindService, Name: "unresolved"}) != "" {
		t.Error("unresolved endpoint should have no fingerprint")
	}
}

func entry(instance, host string, port int) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, DefaultServiceType, DefaultDomain)
	e.HostName = host
	e.Port = port
	return e
}

func TestBrowser_DeduplicatesByStableID(t *testing.T) {
	b := NewBrowser("", "", nil)
	b.browse = func(_ context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
		if service != DefaultServiceType || domain != DefaultDomain {
			t.Errorf("browse(%q, %q)", service, domain)
		}
		go func() {
			entries <- entry(`Studio\032Mac`, "studio.local.", 18789)
			entries <- entry("Studio Mac", "studio.local.", 18789)
			entries <- nil
			entries <- entry("Kitchen", "", 18789)
			close(entries)
		}()
		return nil
	}

	got, err := b.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Discover() returned %d endpoints, want 2: %+v", len(got), got)
	}
	if PrettyLabel(got[1]) != "Studio Mac" || got[1].Host != "studio.local" {
		t.Errorf("second endpoint = %+v", got[1])
	}
}

func TestBrowser_StopsOnContext(t *testing.T) {
	b := NewBrowser("", "", nil)
	b.browse = func(context.Context, string, string, chan<- *zeroconf.ServiceEntry) error { return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	got, err := b.Discover(ctx)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Discover() = %v, want none", got)
	}
}

func TestFromServiceEntry_AddressFallback(t *testing.T) {
	e := zeroconf.NewServiceEntry("Node", DefaultServiceType, DefaultDomain)
	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.9")}
	e.Port = 9
	got := FromServiceEntry(e)
	if got.Host != "192.168.1.9" || got.Kind != KindService {
		t.Errorf("FromServiceEntry() = %+v", got)
	}
}

func testKnownStore(t *testing.T) *KnownStore {
	t.Helper()
	s, err := NewKnownStore(KnownStorePath(t.TempDir()))
	if err != nil {
		t.Fatalf("NewKnownStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKnownStore_UpsertKeepsFirstSeen(t *testing.T) {
	s := testKnownStore(t)
	e := Endpoint{Kind: KindService, Name: `Studio\032Mac`, ServiceType: DefaultServiceType, Domain: DefaultDomain, Host: "studio.local", Port: 18789}

	t1 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	if err := s.Upsert(e, t1); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	e.Port = 18790
	if err := s.Upsert(e, t2); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := s.Get(StableID(e))
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if !got.FirstSeen.Equal(t1) || !got.LastSeen.Equal(t2) {
		t.Errorf("seen = %v..%v, want %v..%v", got.FirstSeen, got.LastSeen, t1, t2)
	}
	if got.Endpoint.Port != 18790 || got.Label != "Studio Mac" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Fingerprint != AddressFingerprint(e) {
		t.Errorf("fingerprint = %q", got.Fingerprint)
	}
}

func TestKnownStore_ListAndForget(t *testing.T) {
	s := testKnownStore(t)
	now := time.Now()
	older := Endpoint{Kind: KindHostPort, Host: "10.0.0.1", Port: 1}
	newer := Endpoint{Kind: KindHostPort, Host: "10.0.0.2", Port: 2}
	if err := s.Upsert(older, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(newer, now); err != nil {
		t.Fatal(err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "10.0.0.2:2" {
		t.Fatalf("List() = %+v", list)
	}

	removed, err := s.Forget("10.0.0.1:1")
	if err != nil || !removed {
		t.Fatalf("Forget() = %v, %v", removed, err)
	}
	removed, err = s.Forget("10.0.0.1:1")
	if err != nil || removed {
		t.Errorf("second Forget() = %v, %v", removed, err)
	}
	if _, ok, _ := s.Get("10.0.0.1:1"); ok {
		t.Error("forgotten gateway still present")
	}
}

func TestKnownStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), KnownDBName)
	s, err := NewKnownStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(Endpoint{Kind: KindHostPort, Host: "h", Port: 1}, time.Now()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := NewKnownStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if _, ok, err := s2.Get("h:1"); err != nil || !ok {
		t.Errorf("Get after reopen = %v, %v", ok, err)
	}
}

func TestPairing(t *testing.T) {
	e := Endpoint{Kind: KindService, Name: `Studio\032Mac`, ServiceType: DefaultServiceType, Domain: DefaultDomain, Host: "studio.local", Port: 18789}
	p := NewPairingPayload(e)

	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var back PairingPayload
	if err := json.Unmarshal([]byte(raw), &back); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if back.Label != "Studio Mac" || back.Fingerprint == "" {
		t.Errorf("payload = %+v", back)
	}

	qr, err := RenderPairingQR(p)
	if err != nil {
		t.Fatalf("RenderPairingQR: %v", err)
	}
	if strings.Count(qr, "\n") < 10 {
		t.Errorf("QR output too small:\n%s", qr)
	}

	if _, err := RenderPairingQR(NewPairingPayload(Endpoint{Kind: KindService, Name: "unresolved"})); err == nil {
		t.Error("expected error for unresolved endpoint")
	}
}
