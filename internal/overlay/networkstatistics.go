package overlay

import (
	"math/big"
	"sync"
)

// NetworkStatistics maintains a running estimate of the "group distance"
// radius used for in-group predicates (spec §4.4). XOR distances span the
// full 512-bit range, so the running average is kept with arbitrary
// precision arithmetic.
type NetworkStatistics struct {
	mu sync.Mutex

	kNodeID   NodeID
	nodeGroup int

	sum   *big.Int // 累计距离，用于计算平均值
	count int64

	distance *big.Int // XOR distance to the NodeGroupSize-th closest unique node.
}

// NewNetworkStatistics constructs an empty statistics tracker for owner
// nodeID.
func NewNetworkStatistics(nodeID NodeID, cfg Config) *NetworkStatistics {
	return &NetworkStatistics{
		kNodeID:   nodeID,
		nodeGroup: cfg.NodeGroupSize,
		sum:       new(big.Int),
		distance:  new(big.Int),
	}
}

func idToInt(id NodeID) *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// UpdateLocalAverageDistance folds the XOR distance from kNodeID to
// reportedNodeID into the running average.
func (s *NetworkStatistics) UpdateLocalAverageDistance(reportedNodeID NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist := idToInt(reportedNodeID.XOR(s.kNodeID))
	s.sum.Add(s.sum, dist)
	s.count++
}

// AverageDistance returns the mean XOR distance observed so far, or nil if
// no observations have been recorded yet.
func (s *NetworkStatistics) AverageDistance() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return nil
	}
	avg := new(big.Int).Div(s.sum, big.NewInt(s.count))
	return avg
}

// UpdateNetworkDistance recomputes the "group radius" from the current
// unique-node set: the XOR distance from kNodeID to the NodeGroupSize-th
// closest unique node.
func (s *NetworkStatistics) UpdateNetworkDistance(uniqueNodes []NodeInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(uniqueNodes) < s.nodeGroup {
		s.distance.SetInt64(0)
		return
	}
	ordered := append([]NodeInfo(nil), uniqueNodes...)
	partialSortFromTarget(s.kNodeID, s.nodeGroup, ordered)
	s.distance = idToInt(ordered[s.nodeGroup-1].NodeID.XOR(s.kNodeID))
}

// Distance returns the current group radius.
func (s *NetworkStatistics) Distance() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.distance)
}

// EstimateInGroup reports whether (nodeID ^ target) <= the current group
// radius.
func (s *NetworkStatistics) EstimateInGroup(nodeID, target NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist := idToInt(nodeID.XOR(target))
	return dist.Cmp(s.distance) <= 0
}
