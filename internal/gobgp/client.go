// Package gobgp is the gRPC client facade for a GoBGP daemon's
// administrative API: RIB fetches and peer lifecycle operations. It does
// no attribute decoding itself; RIB responses are handed over as raw
// snapshots for the rib package to extract.
package gobgp

import (
	"context"
	"errors"
	"fmt"
	"io"

	api "github.com/osrg/gobgp/v3/api"
	"github.com/route-beacon/rib-gateway/internal/metrics"
	"github.com/route-beacon/rib-gateway/internal/rib"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrPeerNotFound is returned when a neighbor address is not configured
// on the daemon.
var ErrPeerNotFound = errors.New("gobgp: peer not found")

// ipv4Unicast is the only address family this tool speaks; it matches
// the classic family code 65537 of the v1-era API.
var ipv4Unicast = &api.Family{
	Afi:  api.Family_AFI_IP,
	Safi: api.Family_SAFI_UNICAST,
}

type Client struct {
	conn   *grpc.ClientConn
	api    api.GobgpApiClient
	logger *zap.Logger
}

// NewClient opens a channel to the daemon's administrative endpoint.
// The admin API is assumed to be loopback or management-network only,
// hence plaintext credentials, same as the gobgp CLI.
func NewClient(target string, logger *zap.Logger) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing gobgpd at %s: %w", target, err)
	}

	return &Client{
		conn:   conn,
		api:    api.NewGobgpApiClient(conn),
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// GetRib fetches the global IPv4 unicast table. Binary mode is requested
// so each path carries its attributes in raw wire encoding; decoding is
// the rib package's job.
func (c *Client) GetRib(ctx context.Context) (*rib.Snapshot, error) {
	stream, err := c.api.ListPath(ctx, &api.ListPathRequest{
		TableType:        api.TableType_GLOBAL,
		Family:           ipv4Unicast,
		EnableOnlyBinary: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing global rib: %w", err)
	}

	var dests []*api.Destination
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("receiving rib destination: %w", err)
		}
		if resp.GetDestination() != nil {
			dests = append(dests, resp.GetDestination())
		}
	}

	snap := snapshotFromDestinations(dests)
	c.logger.Debug("fetched rib", zap.Int("destinations", len(snap.Destinations)))
	return snap, nil
}

// snapshotFromDestinations converts the streamed API destinations into
// the decoder's input shape, preserving stream order.
func snapshotFromDestinations(dests []*api.Destination) *rib.Snapshot {
	snap := &rib.Snapshot{
		Destinations: make([]rib.Destination, 0, len(dests)),
	}
	for _, d := range dests {
		dest := rib.Destination{
			Prefix: d.GetPrefix(),
			Paths:  make([]rib.Path, 0, len(d.GetPaths())),
		}
		for _, p := range d.GetPaths() {
			dest.Paths = append(dest.Paths, rib.Path{Attrs: p.GetPattrsBinary()})
		}
		snap.Destinations = append(snap.Destinations, dest)
	}
	return snap
}

// ListNeighbors returns a summary of every configured peer.
func (c *Client) ListNeighbors(ctx context.Context) ([]NeighborSummary, error) {
	peers, err := c.listPeers(ctx, "")
	if err != nil {
		metrics.NeighborOpsTotal.WithLabelValues("list", "error").Inc()
		return nil, err
	}

	summaries := make([]NeighborSummary, 0, len(peers))
	for _, p := range peers {
		summaries = append(summaries, summaryFromPeer(p))
	}
	metrics.NeighborOpsTotal.WithLabelValues("list", "ok").Inc()
	return summaries, nil
}

// GetNeighbor returns the summary for one peer, or ErrPeerNotFound.
func (c *Client) GetNeighbor(ctx context.Context, address string) (NeighborSummary, error) {
	peers, err := c.listPeers(ctx, address)
	if err != nil {
		metrics.NeighborOpsTotal.WithLabelValues("get", "error").Inc()
		return NeighborSummary{}, err
	}

	for _, p := range peers {
		if p.GetConf().GetNeighborAddress() == address {
			metrics.NeighborOpsTotal.WithLabelValues("get", "ok").Inc()
			return summaryFromPeer(p), nil
		}
	}

	metrics.NeighborOpsTotal.WithLabelValues("get", "not_found").Inc()
	return NeighborSummary{}, fmt.Errorf("%w: %s", ErrPeerNotFound, address)
}

func (c *Client) listPeers(ctx context.Context, address string) ([]*api.Peer, error) {
	stream, err := c.api.ListPeer(ctx, &api.ListPeerRequest{Address: address})
	if err != nil {
		return nil, fmt.Errorf("listing peers: %w", err)
	}

	var peers []*api.Peer
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("receiving peer: %w", err)
		}
		if resp.GetPeer() != nil {
			peers = append(peers, resp.GetPeer())
		}
	}
	return peers, nil
}

// AddNeighbor configures a new peer session from an explicit config.
func (c *Client) AddNeighbor(ctx context.Context, cfg NeighborConfig) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	_, err := c.api.AddPeer(ctx, &api.AddPeerRequest{Peer: cfg.apiPeer()})
	if err != nil {
		metrics.NeighborOpsTotal.WithLabelValues("add", "error").Inc()
		return fmt.Errorf("adding peer %s: %w", cfg.NeighborAddress, err)
	}

	metrics.NeighborOpsTotal.WithLabelValues("add", "ok").Inc()
	c.logger.Info("peer added",
		zap.String("neighbor_address", cfg.NeighborAddress),
		zap.Uint32("peer_as", cfg.PeerAS),
	)
	return nil
}

// DeleteNeighbor removes a peer session by address. Deleting an address
// the daemon does not know is reported as ErrPeerNotFound.
func (c *Client) DeleteNeighbor(ctx context.Context, address string) error {
	if _, err := c.GetNeighbor(ctx, address); err != nil {
		return err
	}

	_, err := c.api.DeletePeer(ctx, &api.DeletePeerRequest{Address: address})
	if err != nil {
		metrics.NeighborOpsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("deleting peer %s: %w", address, err)
	}

	metrics.NeighborOpsTotal.WithLabelValues("delete", "ok").Inc()
	c.logger.Info("peer deleted", zap.String("neighbor_address", address))
	return nil
}
