package gobgp

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	api "github.com/osrg/gobgp/v3/api"
)

func validNeighbor() NeighborConfig {
	return NeighborConfig{
		LocalAddress:    "10.0.255.2",
		NeighborAddress: "10.0.255.3",
		LocalAS:         64512,
		PeerAS:          65001,
	}
}

func TestNeighborConfig_Defaults(t *testing.T) {
	cfg := validNeighbor()
	cfg.ApplyDefaults()

	if cfg.TransportAddress != "10.0.255.2" {
		t.Errorf("expected transport_address to default to local_address, got %q", cfg.TransportAddress)
	}
	if cfg.RouterID != "10.0.255.2" {
		t.Errorf("expected router_id to default to local_address, got %q", cfg.RouterID)
	}
	if !cfg.EbgpMultihop || cfg.EbgpMultihopTTL != 255 {
		t.Errorf("expected ebgp_multihop on with TTL 255, got %v/%d", cfg.EbgpMultihop, cfg.EbgpMultihopTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaulted config should validate, got %v", err)
	}
}

func TestNeighborConfig_DefaultsKeepExplicitValues(t *testing.T) {
	cfg := validNeighbor()
	cfg.TransportAddress = "10.0.255.9"
	cfg.RouterID = "192.0.2.1"
	cfg.EbgpMultihopTTL = 2
	cfg.EbgpMultihop = true
	cfg.ApplyDefaults()

	if cfg.TransportAddress != "10.0.255.9" || cfg.RouterID != "192.0.2.1" || cfg.EbgpMultihopTTL != 2 {
		t.Errorf("explicit values must survive defaulting: %+v", cfg)
	}
}

func TestNeighborConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NeighborConfig)
		wantErr string
	}{
		{"missing local address", func(c *NeighborConfig) { c.LocalAddress = "" }, "local_address"},
		{"ipv6 neighbor", func(c *NeighborConfig) { c.NeighborAddress = "fd00::1" }, "neighbor_address"},
		{"zero local as", func(c *NeighborConfig) { c.LocalAS = 0 }, "local_as"},
		{"zero peer as", func(c *NeighborConfig) { c.PeerAS = 0 }, "peer_as"},
		{"bad transport", func(c *NeighborConfig) { c.TransportAddress = "not-an-ip" }, "transport_address"},
		{"bad router id", func(c *NeighborConfig) { c.RouterID = "999.1.1.1" }, "router_id"},
		{"ttl out of range", func(c *NeighborConfig) {
			c.EbgpMultihop = true
			c.EbgpMultihopTTL = 300
		}, "ebgp_multihop_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validNeighbor()
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNeighborConfig_APIPeer(t *testing.T) {
	cfg := validNeighbor()
	cfg.AuthPassword = "s3cret"
	cfg.Description = "upstream"
	cfg.ApplyDefaults()

	peer := cfg.apiPeer()

	if peer.Conf.NeighborAddress != "10.0.255.3" || peer.Conf.PeerAsn != 65001 || peer.Conf.LocalAsn != 64512 {
		t.Errorf("unexpected peer conf: %+v", peer.Conf)
	}
	if peer.Conf.AuthPassword != "s3cret" || peer.Conf.Description != "upstream" {
		t.Errorf("optional conf fields not mapped: %+v", peer.Conf)
	}
	if peer.Transport.LocalAddress != "10.0.255.2" {
		t.Errorf("expected transport local address 10.0.255.2, got %q", peer.Transport.LocalAddress)
	}
	if !peer.EbgpMultihop.Enabled || peer.EbgpMultihop.MultihopTtl != 255 {
		t.Errorf("unexpected multihop config: %+v", peer.EbgpMultihop)
	}
	if len(peer.AfiSafis) != 1 {
		t.Fatalf("expected exactly one afi-safi, got %d", len(peer.AfiSafis))
	}
	fam := peer.AfiSafis[0].Config.Family
	if fam.Afi != api.Family_AFI_IP || fam.Safi != api.Family_SAFI_UNICAST {
		t.Errorf("expected ipv4 unicast family, got %v", fam)
	}
}

func TestSummaryFromPeer(t *testing.T) {
	peer := &api.Peer{
		Conf: &api.PeerConf{
			NeighborAddress: "10.0.255.3",
			PeerAsn:         65001,
			LocalAsn:        64512,
			Description:     "upstream",
		},
		State: &api.PeerState{
			SessionState: api.PeerState_ESTABLISHED,
			RouterId:     "10.0.255.3",
		},
	}

	s := summaryFromPeer(peer)
	if s.NeighborAddress != "10.0.255.3" || s.PeerAS != 65001 || s.LocalAS != 64512 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.SessionState != "ESTABLISHED" {
		t.Errorf("expected session state ESTABLISHED, got %q", s.SessionState)
	}
	if s.RouterID != "10.0.255.3" {
		t.Errorf("expected router id from peer state, got %q", s.RouterID)
	}
}

func TestSummaryFromPeer_Nil(t *testing.T) {
	s := summaryFromPeer(nil)
	if s.NeighborAddress != "" || s.SessionState != "" {
		t.Errorf("expected zero summary for nil peer, got %+v", s)
	}
}

func TestErrPeerNotFoundWrapping(t *testing.T) {
	err := fmt.Errorf("%w: %s", ErrPeerNotFound, "10.9.9.9")
	if !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("expected ErrPeerNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "10.9.9.9") {
		t.Errorf("expected address in error, got %v", err)
	}
}
