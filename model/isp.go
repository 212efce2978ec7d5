package model

import "time"

// PolicyKind identifies one of the closed set of routing policy
// variants. The runtime policy objects live in internal/routing; the
// scenario layer only names which variant each ISP uses.
type PolicyKind string

const (
	PolicyFirstFit                    PolicyKind = "first_fit"
	PolicyBestFit                     PolicyKind = "best_fit"
	PolicySubnet                      PolicyKind = "subnet"
	PolicyDisasterAware               PolicyKind = "disaster_aware"
	PolicyWeightedSubnetDisasterAware PolicyKind = "weighted_subnet_disaster_aware"
)

// Valid reports whether k names a known policy variant.
func (k PolicyKind) Valid() bool {
	switch k {
	case PolicyFirstFit, PolicyBestFit, PolicySubnet,
		PolicyDisasterAware, PolicyWeightedSubnetDisasterAware:
		return true
	}
	return false
}

// ISP is one provider partition of the network. Members are node IDs;
// edges are implied by the subgraph induced on the member nodes plus
// any explicitly listed inter-member links.
type ISP struct {
	ID    int
	Nodes []string

	// PrimaryPolicy routes ordinary traffic; DisasterPolicy takes over
	// once the ISP's migration controller reacts to the announced
	// disaster. The currently active policy is runtime state owned by
	// the simulation driver, not part of the scenario description.
	PrimaryPolicy  PolicyKind
	DisasterPolicy PolicyKind

	// Datacenter is nil for ISPs that run no pre-disaster migration.
	// Every consumer must handle the absent case.
	Datacenter *Datacenter
}

// HasNode reports whether nodeID belongs to this ISP's subnet.
func (i *ISP) HasNode(nodeID string) bool {
	for _, n := range i.Nodes {
		if n == nodeID {
			return true
		}
	}
	return false
}

// NodeSet returns the member nodes as a set.
func (i *ISP) NodeSet() map[string]bool {
	set := make(map[string]bool, len(i.Nodes))
	for _, n := range i.Nodes {
		set[n] = true
	}
	return set
}

// Datacenter describes the migration workload an ISP wants to evacuate
// before the disaster hits.
type Datacenter struct {
	// Source is the node hosting the data; Destination is where it is
	// migrated to. Both belong to the owning ISP.
	Source      string
	Destination string

	// ReactionTime is how long after the disaster announcement the ISP
	// takes to switch to its disaster policy and start migrating.
	ReactionTime time.Duration

	// TargetBandwidth is the cumulative bandwidth (Gb/s summed over
	// accepted migration requests) considered a complete migration.
	// This deliberately counts bandwidth, not bandwidth x time.
	TargetBandwidth float64

	// Throughput is the sustained migration rate in Gb/s used to derive
	// the mean inter-arrival time of migration requests.
	Throughput float64
}
