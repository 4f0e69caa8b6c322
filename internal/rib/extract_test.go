package rib

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/route-beacon/rib-gateway/internal/bgp"
	"go.uber.org/zap"
)

func attr(flags, typeCode byte, value []byte) []byte {
	raw := make([]byte, 3+len(value))
	raw[0] = flags
	raw[1] = typeCode
	raw[2] = byte(len(value))
	copy(raw[3:], value)
	return raw
}

func asPathAttr(asns ...uint32) []byte {
	val := make([]byte, 2+4*len(asns))
	val[0] = bgp.ASPathSegmentSequence
	val[1] = byte(len(asns))
	for i, asn := range asns {
		binary.BigEndian.PutUint32(val[2+i*4:], asn)
	}
	return attr(bgp.FlagTransitive, bgp.AttrTypeASPath, val)
}

// fullPath carries all four attributes the decoder understands, with the
// values from the reference scenario.
func fullPath() Path {
	return Path{Attrs: [][]byte{
		asPathAttr(52428, 170),
		attr(bgp.FlagTransitive, bgp.AttrTypeNextHop, []byte{0x3C, 0x01, 0x02, 0x03}),
		attr(bgp.FlagOptional, bgp.AttrTypeMED, []byte{0x00, 0x00, 0xBB, 0xBB}),
		attr(bgp.FlagOptional|bgp.FlagTransitive, bgp.AttrTypeCommunity,
			[]byte{0xFA, 0xFA, 0xFF, 0xFF, 0xEE, 0xEE, 0xDD, 0xDD}),
	}}
}

func TestExtract_AllAttributes(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	route, err := e.Extract(Destination{
		Prefix: "50.30.20.0/20",
		Paths:  []Path{fullPath()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if route.Prefix != "50.30.20.0/20" {
		t.Errorf("expected prefix 50.30.20.0/20, got %q", route.Prefix)
	}
	if !reflect.DeepEqual(route.ASPath, []uint32{52428, 170}) {
		t.Errorf("expected AS path [52428 170], got %v", route.ASPath)
	}
	if route.NextHop != "60.1.2.3" {
		t.Errorf("expected next hop 60.1.2.3, got %q", route.NextHop)
	}
	if !reflect.DeepEqual(route.Community, []string{"64250:65535", "61166:56797"}) {
		t.Errorf("expected communities [64250:65535 61166:56797], got %v", route.Community)
	}
	if route.MED == nil || *route.MED != 48059 {
		t.Errorf("expected MED 48059, got %v", route.MED)
	}
}

func TestExtract_NoAttributes(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	route, err := e.Extract(Destination{
		Prefix: "10.0.0.0/8",
		Paths:  []Path{{}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if route.ASPath != nil {
		t.Errorf("expected absent AS path, got %v", route.ASPath)
	}
	if route.NextHop != "" {
		t.Errorf("expected absent next hop, got %q", route.NextHop)
	}
	if route.Community != nil {
		t.Errorf("expected absent communities, got %v", route.Community)
	}
	if route.MED != nil {
		t.Errorf("expected absent MED, got %d", *route.MED)
	}
}

func TestExtract_EmptyPathList(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	_, err := e.Extract(Destination{Prefix: "10.0.0.0/8"})
	if !errors.Is(err, ErrNoPaths) {
		t.Fatalf("expected ErrNoPaths, got %v", err)
	}
	// The structural error must stay distinct from attribute absence.
	if errors.Is(err, bgp.ErrMalformedAttribute) {
		t.Error("ErrNoPaths must not be a malformed-attribute error")
	}
}

func TestExtract_OnlyFirstPathConsulted(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	second := Path{Attrs: [][]byte{
		attr(bgp.FlagTransitive, bgp.AttrTypeNextHop, []byte{192, 0, 2, 1}),
	}}

	route, err := e.Extract(Destination{
		Prefix: "10.0.0.0/8",
		Paths:  []Path{{}, second},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.NextHop != "" {
		t.Errorf("expected attributes of paths[1] to be ignored, got next hop %q", route.NextHop)
	}
}

func TestExtract_MalformedAttributeDegradesToAbsent(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	// NEXT_HOP declares 10 value bytes but carries 4: malformed. The
	// route is still produced and the remaining attributes survive.
	brokenNextHop := []byte{bgp.FlagTransitive, bgp.AttrTypeNextHop, 10, 60, 1, 2, 3}

	route, err := e.Extract(Destination{
		Prefix: "10.0.0.0/8",
		Paths: []Path{{Attrs: [][]byte{
			brokenNextHop,
			attr(bgp.FlagOptional, bgp.AttrTypeMED, []byte{0, 0, 0, 7}),
		}}},
	})
	if err != nil {
		t.Fatalf("expected graceful degradation, got error: %v", err)
	}
	if route.NextHop != "" {
		t.Errorf("expected malformed next hop to decode as absent, got %q", route.NextHop)
	}
	if route.MED == nil || *route.MED != 7 {
		t.Errorf("expected MED 7 to survive, got %v", route.MED)
	}
}

func TestExtractAll_OrderAndCardinality(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	snap := &Snapshot{}
	for i := 0; i < 5; i++ {
		snap.Destinations = append(snap.Destinations, Destination{
			Prefix: fmt.Sprintf("10.%d.0.0/16", i),
			Paths:  []Path{fullPath()},
		})
	}

	routes := e.ExtractAll(snap)
	if len(routes) != 5 {
		t.Fatalf("expected 5 routes, got %d", len(routes))
	}
	for i, r := range routes {
		want := fmt.Sprintf("10.%d.0.0/16", i)
		if r.Prefix != want {
			t.Errorf("route %d: expected prefix %s, got %s", i, want, r.Prefix)
		}
	}
}

func TestExtractAll_SkipsPathlessDestinations(t *testing.T) {
	e := NewExtractor(zap.NewNop())

	snap := &Snapshot{Destinations: []Destination{
		{Prefix: "10.0.0.0/16", Paths: []Path{fullPath()}},
		{Prefix: "10.1.0.0/16"}, // no paths
		{Prefix: "10.2.0.0/16", Paths: []Path{fullPath()}},
	}}

	routes := e.ExtractAll(snap)
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Prefix != "10.0.0.0/16" || routes[1].Prefix != "10.2.0.0/16" {
		t.Errorf("unexpected prefixes: %s, %s", routes[0].Prefix, routes[1].Prefix)
	}
}
