package gobgp

import (
	"fmt"
	"net"
	"time"

	api "github.com/osrg/gobgp/v3/api"
)

// NeighborConfig enumerates every peer setting this tool knows how to
// apply. Optional fields are defaulted explicitly by ApplyDefaults; there
// is deliberately no pass-through of arbitrary key/value settings.
type NeighborConfig struct {
	LocalAddress    string `koanf:"local_address"`
	NeighborAddress string `koanf:"neighbor_address"`
	LocalAS         uint32 `koanf:"local_as"`
	PeerAS          uint32 `koanf:"peer_as"`

	// TransportAddress is the source address for outgoing BGP messages.
	// Defaults to LocalAddress.
	TransportAddress string `koanf:"transport_address"`

	// EbgpMultihop is enabled by default with a TTL of 255, matching the
	// daemon deployments this tool manages rather than router defaults.
	EbgpMultihop    bool   `koanf:"ebgp_multihop"`
	EbgpMultihopTTL uint32 `koanf:"ebgp_multihop_ttl"`

	// RouterID defaults to LocalAddress. GoBGP's v3 API has no per-peer
	// router-id setting, so the value is validated but never sent; it is
	// kept so stored configs round-trip without loss.
	RouterID string `koanf:"router_id"`

	AuthPassword string `koanf:"auth_password"`
	Description  string `koanf:"description"`
}

// ApplyDefaults fills the optional fields the way the daemon expects
// them. Call before Validate.
func (c *NeighborConfig) ApplyDefaults() {
	if c.TransportAddress == "" {
		c.TransportAddress = c.LocalAddress
	}
	if c.RouterID == "" {
		c.RouterID = c.LocalAddress
	}
	if c.EbgpMultihopTTL == 0 {
		c.EbgpMultihop = true
		c.EbgpMultihopTTL = 255
	}
}

func (c *NeighborConfig) Validate() error {
	if ip := net.ParseIP(c.LocalAddress); ip == nil || ip.To4() == nil {
		return fmt.Errorf("neighbor config: local_address %q is not an IPv4 address", c.LocalAddress)
	}
	if ip := net.ParseIP(c.NeighborAddress); ip == nil || ip.To4() == nil {
		return fmt.Errorf("neighbor config: neighbor_address %q is not an IPv4 address", c.NeighborAddress)
	}
	if c.LocalAS == 0 {
		return fmt.Errorf("neighbor config: local_as is required")
	}
	if c.PeerAS == 0 {
		return fmt.Errorf("neighbor config: peer_as is required")
	}
	if c.TransportAddress != "" {
		if ip := net.ParseIP(c.TransportAddress); ip == nil || ip.To4() == nil {
			return fmt.Errorf("neighbor config: transport_address %q is not an IPv4 address", c.TransportAddress)
		}
	}
	if c.RouterID != "" {
		if ip := net.ParseIP(c.RouterID); ip == nil || ip.To4() == nil {
			return fmt.Errorf("neighbor config: router_id %q is not an IPv4 address", c.RouterID)
		}
	}
	if c.EbgpMultihop && (c.EbgpMultihopTTL == 0 || c.EbgpMultihopTTL > 255) {
		return fmt.Errorf("neighbor config: ebgp_multihop_ttl must be 1-255 (got %d)", c.EbgpMultihopTTL)
	}
	return nil
}

// apiPeer builds the daemon's peer message. IPv4 unicast only.
func (c *NeighborConfig) apiPeer() *api.Peer {
	return &api.Peer{
		Conf: &api.PeerConf{
			LocalAsn:        c.LocalAS,
			NeighborAddress: c.NeighborAddress,
			PeerAsn:         c.PeerAS,
			AuthPassword:    c.AuthPassword,
			Description:     c.Description,
		},
		Transport: &api.Transport{
			LocalAddress: c.TransportAddress,
		},
		EbgpMultihop: &api.EbgpMultihop{
			Enabled:     c.EbgpMultihop,
			MultihopTtl: c.EbgpMultihopTTL,
		},
		AfiSafis: []*api.AfiSafi{
			{
				Config: &api.AfiSafiConfig{
					Family:  ipv4Unicast,
					Enabled: true,
				},
			},
		},
	}
}

// NeighborSummary is the flattened view of one peer session returned by
// the listing operations.
type NeighborSummary struct {
	NeighborAddress string        `json:"neighbor_address"`
	PeerAS          uint32        `json:"peer_as"`
	LocalAS         uint32        `json:"local_as"`
	RouterID        string        `json:"router_id,omitempty"`
	SessionState    string        `json:"session_state"`
	Description     string        `json:"description,omitempty"`
	Uptime          time.Duration `json:"uptime_ns,omitempty"`
}

func summaryFromPeer(peer *api.Peer) NeighborSummary {
	var s NeighborSummary
	if peer == nil {
		return s
	}

	if conf := peer.GetConf(); conf != nil {
		s.NeighborAddress = conf.GetNeighborAddress()
		s.PeerAS = conf.GetPeerAsn()
		s.LocalAS = conf.GetLocalAsn()
		s.Description = conf.GetDescription()
	}

	if state := peer.GetState(); state != nil {
		s.SessionState = state.GetSessionState().String()
		s.RouterID = state.GetRouterId()

		if state.GetSessionState() == api.PeerState_ESTABLISHED {
			if timers := peer.GetTimers(); timers != nil && timers.GetState() != nil {
				if up := timers.GetState().GetUptime(); up != nil {
					s.Uptime = time.Since(up.AsTime()).Round(time.Second)
				}
			}
		}
	}

	return s
}
