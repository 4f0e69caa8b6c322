package bgp

// BGP path attribute type codes.
const (
	AttrTypeASPath    uint8 = 2
	AttrTypeNextHop   uint8 = 3
	AttrTypeMED       uint8 = 4
	AttrTypeCommunity uint8 = 8
)

// Path attribute flag bits (first octet of the attribute header).
const (
	FlagOptional   uint8 = 0x80
	FlagTransitive uint8 = 0x40
	FlagExtLength  uint8 = 0x10
)

// AS_PATH segment types.
const (
	ASPathSegmentSet      uint8 = 1
	ASPathSegmentSequence uint8 = 2
)
