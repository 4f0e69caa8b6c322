package rib

import (
	"errors"
	"fmt"

	"github.com/route-beacon/rib-gateway/internal/bgp"
	"github.com/route-beacon/rib-gateway/internal/metrics"
	"go.uber.org/zap"
)

// ErrNoPaths marks a destination carrying zero candidate paths. This is a
// structural defect in the daemon's response, not a missing optional
// attribute, and is reported as an error rather than an empty Route.
var ErrNoPaths = errors.New("rib: destination has no paths")

type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract decodes one destination into a Route.
//
// Only Paths[0] is consulted. No best-path selection happens here: GoBGP
// lists the best path first in its RIB output, and this tool relies on
// that ordering instead of comparing candidates. A malformed attribute is
// downgraded to an absent one (counted and logged) so a single bad
// attribute never loses the rest of the route.
func (e *Extractor) Extract(d Destination) (*Route, error) {
	if len(d.Paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPaths, d.Prefix)
	}

	attrs := d.Paths[0].Attrs
	route := &Route{Prefix: d.Prefix}

	asPath, err := bgp.DecodeASPath(attrs)
	if err != nil {
		e.noteDecodeError(d.Prefix, "as_path", err)
	} else {
		route.ASPath = asPath
	}

	nextHop, err := bgp.DecodeNextHop(attrs)
	if err != nil {
		e.noteDecodeError(d.Prefix, "next_hop", err)
	} else {
		route.NextHop = nextHop
	}

	community, err := bgp.DecodeCommunity(attrs)
	if err != nil {
		e.noteDecodeError(d.Prefix, "community", err)
	} else {
		route.Community = community
	}

	med, err := bgp.DecodeMED(attrs)
	if err != nil {
		e.noteDecodeError(d.Prefix, "med", err)
	} else {
		route.MED = med
	}

	return route, nil
}

// ExtractAll maps a snapshot to routes, preserving the snapshot's
// destination order. Destinations without paths are skipped and counted;
// one broken entry must not fail the whole table.
func (e *Extractor) ExtractAll(snap *Snapshot) []*Route {
	routes := make([]*Route, 0, len(snap.Destinations))
	for _, d := range snap.Destinations {
		route, err := e.Extract(d)
		if err != nil {
			metrics.EmptyDestinationsTotal.Inc()
			e.logger.Warn("skipping destination without paths",
				zap.String("prefix", d.Prefix),
				zap.Error(err),
			)
			continue
		}
		routes = append(routes, route)
	}
	return routes
}

func (e *Extractor) noteDecodeError(prefix, attribute string, err error) {
	metrics.DecodeErrorsTotal.WithLabelValues(attribute).Inc()
	e.logger.Warn("malformed path attribute treated as absent",
		zap.String("prefix", prefix),
		zap.String("attribute", attribute),
		zap.Error(err),
	)
}
