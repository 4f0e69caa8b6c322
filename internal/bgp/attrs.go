// Package bgp decodes raw BGP path attributes as returned by GoBGP's
// administrative API: each attribute is a standalone byte string in wire
// encoding (flags, type code, 1- or 2-byte length, value).
//
// Only AS_PATH, NEXT_HOP, MULTI_EXIT_DISC and standard COMMUNITY are
// decoded. All decoders scan an attribute list for the first matching
// entry; later duplicates are ignored. A missing attribute is reported as
// an absent value (nil slice, empty string, nil pointer), never as an
// error and never as a zero that could shadow a real zero value.
package bgp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// ErrMalformedAttribute is returned when a matching attribute declares
// more bytes than it carries. Attributes too short to even hold a header
// are skipped as if absent.
var ErrMalformedAttribute = errors.New("bgp: malformed path attribute")

// attrValue extracts the value bytes of a single raw attribute if its
// type code equals typeCode and its flags contain all bits in flagMask.
// The second return reports whether the attribute matched at all;
// a non-nil error means it matched but its declared length overruns the
// available bytes.
func attrValue(raw []byte, typeCode uint8, flagMask uint8) ([]byte, bool, error) {
	if len(raw) < 3 {
		return nil, false, nil
	}

	flags := raw[0]
	if raw[1] != typeCode || flags&flagMask != flagMask {
		return nil, false, nil
	}

	var length, hdrLen int
	if flags&FlagExtLength != 0 {
		if len(raw) < 4 {
			return nil, false, nil
		}
		length = int(binary.BigEndian.Uint16(raw[2:4]))
		hdrLen = 4
	} else {
		length = int(raw[2])
		hdrLen = 3
	}

	if hdrLen+length > len(raw) {
		return nil, true, fmt.Errorf("%w: type %d declares %d value bytes, %d available",
			ErrMalformedAttribute, typeCode, length, len(raw)-hdrLen)
	}

	return raw[hdrLen : hdrLen+length], true, nil
}

// findAttribute returns the value bytes of the first attribute in attrs
// matching typeCode and flagMask.
func findAttribute(attrs [][]byte, typeCode uint8, flagMask uint8) ([]byte, bool, error) {
	for _, raw := range attrs {
		val, ok, err := attrValue(raw, typeCode, flagMask)
		if err != nil {
			return nil, true, err
		}
		if ok {
			return val, true, nil
		}
	}
	return nil, false, nil
}

// DecodeASPath returns the AS numbers of the first AS_PATH attribute in
// attrs, or nil if none is present. The value is assumed to hold a single
// path segment of 4-byte AS numbers (segment type, count, then count
// big-endian uint32s); legacy 2-byte ASNs and multi-segment paths are not
// handled.
func DecodeASPath(attrs [][]byte) ([]uint32, error) {
	val, ok, err := findAttribute(attrs, AttrTypeASPath, 0)
	if err != nil || !ok {
		return nil, err
	}

	if len(val) < 2 {
		return nil, fmt.Errorf("%w: as_path segment header truncated (%d bytes)",
			ErrMalformedAttribute, len(val))
	}

	count := int(val[1])
	if 2+count*4 > len(val) {
		return nil, fmt.Errorf("%w: as_path declares %d ASNs, %d value bytes left",
			ErrMalformedAttribute, count, len(val)-2)
	}

	asns := make([]uint32, count)
	for i := 0; i < count; i++ {
		asns[i] = binary.BigEndian.Uint32(val[2+i*4 : 6+i*4])
	}
	return asns, nil
}

// DecodeNextHop returns the dotted-decimal IPv4 next hop from the first
// NEXT_HOP attribute in attrs, or "" if none is present.
func DecodeNextHop(attrs [][]byte) (string, error) {
	val, ok, err := findAttribute(attrs, AttrTypeNextHop, 0)
	if err != nil || !ok {
		return "", err
	}

	if len(val) != 4 {
		return "", fmt.Errorf("%w: next_hop value is %d bytes, want 4",
			ErrMalformedAttribute, len(val))
	}
	return net.IP(val).String(), nil
}

// DecodeMED returns the metric from the first MULTI_EXIT_DISC attribute
// in attrs, or nil if none is present. A pointer keeps an explicit MED of
// 0 distinguishable from an absent attribute.
func DecodeMED(attrs [][]byte) (*uint32, error) {
	val, ok, err := findAttribute(attrs, AttrTypeMED, 0)
	if err != nil || !ok {
		return nil, err
	}

	if len(val) != 4 {
		return nil, fmt.Errorf("%w: med value is %d bytes, want 4",
			ErrMalformedAttribute, len(val))
	}
	med := binary.BigEndian.Uint32(val)
	return &med, nil
}

// DecodeCommunity returns the standard communities of the first COMMUNITY
// attribute in attrs as "<asn>:<value>" strings, or nil if none is
// present. Only the optional-transitive encoding is recognized. The value
// is consumed in 4-byte steps; an odd trailing 16-bit field is dropped,
// matching the long-standing behavior of the tooling this replaces.
func DecodeCommunity(attrs [][]byte) ([]string, error) {
	val, ok, err := findAttribute(attrs, AttrTypeCommunity, FlagOptional|FlagTransitive)
	if err != nil || !ok {
		return nil, err
	}

	communities := make([]string, 0, len(val)/4)
	for i := 0; i+4 <= len(val); i += 4 {
		hi := binary.BigEndian.Uint16(val[i : i+2])
		lo := binary.BigEndian.Uint16(val[i+2 : i+4])
		communities = append(communities, fmt.Sprintf("%d:%d", hi, lo))
	}
	return communities, nil
}
