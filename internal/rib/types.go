package rib

// Path is one candidate path for a destination, carrying its raw
// wire-format BGP path attributes.
type Path struct {
	Attrs [][]byte
}

// Destination is one RIB entry: a prefix and its candidate paths.
type Destination struct {
	Prefix string
	Paths  []Path
}

// Snapshot is a full RIB table as fetched from the daemon, in the
// daemon's iteration order.
type Snapshot struct {
	Destinations []Destination
}

// Route is the decoded form of one destination. Absent attributes stay
// nil/empty; MED is a pointer so an explicit 0 survives the trip.
type Route struct {
	Prefix    string   `json:"prefix"`
	ASPath    []uint32 `json:"as_path,omitempty"`
	NextHop   string   `json:"next_hop,omitempty"`
	Community []string `json:"community,omitempty"`
	MED       *uint32  `json:"med,omitempty"`
}
