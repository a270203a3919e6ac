package overlay

import (
	"sort"
	"sync"

	"github.com/dep2p/overlay-routing/internal/overlay/log"
)

var routingLog = log.Logger("overlay/routingtable")

// AddOutcome classifies the result of a RoutingTable.Add call.
type AddOutcome int

const (
	// Added means the node was admitted into a free slot.
	Added AddOutcome = iota
	// Rejected means the node was not admitted; see the returned error.
	Rejected
	// Replaced means the node was admitted by evicting an incumbent,
	// which is returned alongside the outcome.
	Replaced
)

// AddResult is the outcome of an admission attempt.
type AddResult struct {
	Outcome AddOutcome
	Old     NodeInfo // valid iff Outcome == Replaced
}

// RoutingTable is a vault's own neighbourhood of directly connected peers,
// organised by XOR distance to the owner's identity, with k-bucket style
// admission (spec §4.1).
type RoutingTable struct {
	mu sync.Mutex

	kNodeID    NodeID // 本节点 ID
	clientMode bool
	cfg        Config

	entries []NodeInfo // 已接纳的对等节点
	matrix  *GroupMatrix
	stats   *NetworkStatistics
}

// NewRoutingTable constructs an empty table for the owner identified by
// nodeID.
func NewRoutingTable(nodeID NodeID, clientMode bool, opts ...Option) *RoutingTable {
	cfg := newConfig(DefaultConfig(), opts...)
	return &RoutingTable{
		kNodeID:    nodeID,
		clientMode: clientMode,
		cfg:        cfg,
		matrix:     NewGroupMatrix(nodeID, clientMode, cfg),
		stats:      NewNetworkStatistics(nodeID, cfg),
	}
}

// syncNetworkDistanceLocked recomputes the group radius from the matrix's
// current unique-node set. Callers must hold rt.mu; the matrix is expected
// to already reflect any pruning from the mutation that preceded this call.
func (rt *RoutingTable) syncNetworkDistanceLocked() {
	rt.stats.UpdateNetworkDistance(rt.matrix.UniqueNodes())
}

func (rt *RoutingTable) capacity() int {
	if rt.clientMode {
		return rt.cfg.MaxRoutingTableSizeForClient
	}
	return rt.cfg.MaxRoutingTableSize
}

func (rt *RoutingTable) findByNodeID(id NodeID) int {
	for i, e := range rt.entries {
		if e.NodeID == id {
			return i
		}
	}
	return -1
}

func (rt *RoutingTable) findByConnectionID(id ConnectionID) int {
	for i, e := range rt.entries {
		if e.ConnectionID == id {
			return i
		}
	}
	return -1
}

// mostExpendable returns the index of the entry in the fullest bucket that
// is furthest from kNodeID within that bucket — the incumbent R5(iii)/§4.1
// evicts first.
//
// mostExpendable 返回“最拥挤桶中离本节点最远”的条目下标，即最先被淘汰的
// 候选者；桶拥挤度相同时按桶号从小到大决出胜负，避免依赖 map 遍历顺序。
func (rt *RoutingTable) mostExpendable() (int, bool) {
	if len(rt.entries) == 0 {
		return -1, false
	}
	counts := make(map[int]int)
	for _, e := range rt.entries {
		counts[e.Bucket]++
	}
	// Iterating a map has unspecified order, so a tie on fullestCount must
	// be broken by an explicit rule rather than by whichever bucket the
	// runtime visits first: lowest bucket index wins.
	fullestBucket, fullestCount := -1, -1
	for b, n := range counts {
		if n > fullestCount || (n == fullestCount && b < fullestBucket) {
			fullestBucket, fullestCount = b, n
		}
	}
	idx := -1
	for i, e := range rt.entries {
		if e.Bucket != fullestBucket {
			continue
		}
		if idx == -1 || CloserToTarget(rt.entries[idx].NodeID, e.NodeID, rt.kNodeID) {
			idx = i
		}
	}
	return idx, idx >= 0
}

// checkPublicKeyIsUnique enforces the (optional) "no duplicate public key
// under a different node id" rule (§9 open question).
func (rt *RoutingTable) checkPublicKeyIsUnique(node NodeInfo) bool {
	if !rt.cfg.RejectDuplicatePublicKey || node.PublicKey == nil {
		return true
	}
	for _, e := range rt.entries {
		if e.NodeID != node.NodeID && samePublicKey(e.PublicKey, node.PublicKey) {
			return false
		}
	}
	return true
}

// Add attempts to admit node into the table (spec §4.1 admission
// pipeline). Every rejection reports Outcome Rejected together with a
// non-nil error: ErrInvalidParameter for a malformed call (zero or own id,
// duplicate node id or connection id, or a duplicate public key when
// RejectDuplicatePublicKey is set), and ErrCapacityExceeded when the table
// is full and the node does not displace an incumbent.
func (rt *RoutingTable) Add(node NodeInfo) (AddResult, error) {
	rt.mu.Lock()

	closeGroupBefore := rt.closeGroupIDsLocked()

	if node.NodeID.IsZero() || node.NodeID == rt.kNodeID {
		rt.mu.Unlock()
		return AddResult{Outcome: Rejected}, ErrInvalidParameter
	}
	if rt.findByNodeID(node.NodeID) >= 0 {
		rt.mu.Unlock()
		return AddResult{Outcome: Rejected}, ErrInvalidParameter
	}
	if idx := rt.findByConnectionID(node.ConnectionID); idx >= 0 {
		rt.mu.Unlock()
		return AddResult{Outcome: Rejected}, ErrInvalidParameter
	}

	node.Bucket = BucketFor(rt.kNodeID, node.NodeID)

	if !rt.checkPublicKeyIsUnique(node) {
		rt.mu.Unlock()
		return AddResult{Outcome: Rejected}, ErrInvalidParameter
	}

	hasTableRoom := len(rt.entries) < rt.capacity()

	// With a free slot the node is admitted outright. With a full table it
	// replaces the most expendable incumbent only if it is closer to kNodeID
	// than that incumbent (R5(iii)). Bucket occupancy (BucketTargetSize) and
	// the closest-nodes window are not consulted in either case.
	expendableIdx, hasExpendable := rt.mostExpendable()
	improvesExpendable := !hasTableRoom && hasExpendable &&
		CloserToTarget(node.NodeID, rt.entries[expendableIdx].NodeID, rt.kNodeID)

	var result AddResult
	switch {
	case hasTableRoom:
		rt.entries = append(rt.entries, node)
		result = AddResult{Outcome: Added}

	case improvesExpendable:
		old := rt.entries[expendableIdx]
		rt.matrix.RemoveConnectedPeer(old)
		rt.entries[expendableIdx] = node
		result = AddResult{Outcome: Replaced, Old: old}

	default:
		rt.mu.Unlock()
		routingLog.Debug("admission rejected", "node_id", node.NodeID.String(), "bucket", node.Bucket)
		return AddResult{Outcome: Rejected}, ErrCapacityExceeded
	}

	rt.matrix.AddConnectedPeer(node)
	rt.stats.UpdateLocalAverageDistance(node.NodeID)
	rt.syncNetworkDistanceLocked()
	healthPct := healthPercent(len(rt.entries), rt.capacity())
	closeGroupAfter := rt.closeGroupIDsLocked()
	rt.mu.Unlock()

	rt.notify(healthPct, closeGroupBefore, closeGroupAfter)
	return result, nil
}

// Drop removes a single entry by id and returns it, if present.
func (rt *RoutingTable) Drop(nodeID NodeID) (NodeInfo, bool) {
	rt.mu.Lock()

	closeGroupBefore := rt.closeGroupIDsLocked()
	idx := rt.findByNodeID(nodeID)
	if idx < 0 {
		rt.mu.Unlock()
		return NodeInfo{}, false
	}
	old := rt.entries[idx]
	rt.entries = append(rt.entries[:idx], rt.entries[idx+1:]...)
	rt.matrix.RemoveConnectedPeer(old)
	rt.syncNetworkDistanceLocked()
	healthPct := healthPercent(len(rt.entries), rt.capacity())
	closeGroupAfter := rt.closeGroupIDsLocked()
	rt.mu.Unlock()

	rt.notify(healthPct, closeGroupBefore, closeGroupAfter)
	return old, true
}

// closeGroupIDsLocked snapshots the current close-neighbourhood entries.
// Callers must hold rt.mu.
func (rt *RoutingTable) closeGroupIDsLocked() []NodeInfo {
	entries := append([]NodeInfo(nil), rt.entries...)
	sort.Slice(entries, func(i, j int) bool {
		return CloserToTarget(entries[i].NodeID, entries[j].NodeID, rt.kNodeID)
	})
	n := rt.cfg.ClosestNodesSize
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n]
}

// ClosestNodes returns the k entries with smallest id^target, ties broken
// by raw id ordering. k is clamped to the table size.
func (rt *RoutingTable) ClosestNodes(target NodeID, k int) []NodeID {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	entries := append([]NodeInfo(nil), rt.entries...)
	sort.Slice(entries, func(i, j int) bool {
		return CloserToTarget(entries[i].NodeID, entries[j].NodeID, target)
	})
	if k > len(entries) {
		k = len(entries)
	}
	ids := make([]NodeID, k)
	for i := 0; i < k; i++ {
		ids[i] = entries[i].NodeID
	}
	return ids
}

// IsThisNodeInRange reports whether kNodeID is among the first `rng`
// entries when the table plus kNodeID is sorted by proximity to nodeID.
func (rt *RoutingTable) IsThisNodeInRange(nodeID NodeID, rng int) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ids := make([]NodeID, 0, len(rt.entries)+1)
	ids = append(ids, rt.kNodeID)
	for _, e := range rt.entries {
		ids = append(ids, e.NodeID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return CloserToTarget(ids[i], ids[j], nodeID)
	})
	if rng > len(ids) {
		rng = len(ids)
	}
	for i := 0; i < rng; i++ {
		if ids[i] == rt.kNodeID {
			return true
		}
	}
	return false
}

// IsConnected reports whether nodeID is a currently admitted entry.
func (rt *RoutingTable) IsConnected(nodeID NodeID) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.findByNodeID(nodeID) >= 0
}

// HasNode is an alias for IsConnected kept for readability at call sites
// that are not about transport connectivity per se.
func (rt *RoutingTable) HasNode(nodeID NodeID) bool {
	return rt.IsConnected(nodeID)
}

// Size returns the number of admitted entries.
func (rt *RoutingTable) Size() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.entries)
}

// OurCloseGroup returns the closest NodeGroupSize-1 entries; kNodeID
// itself is the implicit remaining member.
func (rt *RoutingTable) OurCloseGroup() []NodeInfo {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	entries := append([]NodeInfo(nil), rt.entries...)
	sort.Slice(entries, func(i, j int) bool {
		return CloserToTarget(entries[i].NodeID, entries[j].NodeID, rt.kNodeID)
	})
	n := rt.cfg.NodeGroupSize - 1
	if n > len(entries) {
		n = len(entries)
	}
	if n < 0 {
		n = 0
	}
	return entries[:n]
}

// Matrix exposes the owned GroupMatrix. Since the matrix has no lock of
// its own (§5), callers other than RoutingTable itself must not use it
// concurrently with table writes; MatrixConnectedPeers, MatrixUniqueNodeIDs,
// and MatrixSnapshot below take rt's mutex and are safe to call from any
// goroutine. Prefer MatrixSnapshot when both values must reflect the same
// instant.
func (rt *RoutingTable) Matrix() *GroupMatrix {
	return rt.matrix
}

// MatrixConnectedPeers returns a lock-protected snapshot of the matrix's
// connected peers.
func (rt *RoutingTable) MatrixConnectedPeers() []NodeInfo {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.matrix.ConnectedPeers()
}

// MatrixUniqueNodeIDs returns a lock-protected snapshot of the matrix's
// unique node ids.
func (rt *RoutingTable) MatrixUniqueNodeIDs() []NodeID {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.matrix.UniqueNodeIDs()
}

// MatrixSnapshot returns the matrix's connected peers and unique node ids
// as observed under a single mutex acquisition. Unlike calling
// MatrixConnectedPeers and MatrixUniqueNodeIDs back to back, the two
// returned slices are guaranteed to reflect the same instant: no
// intervening Add/Drop can be observed by one call but not the other.
func (rt *RoutingTable) MatrixSnapshot() (peers []NodeInfo, unique []NodeID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.matrix.ConnectedPeers(), rt.matrix.UniqueNodeIDs()
}

// Statistics exposes the owned NetworkStatistics tracker. It carries its
// own mutex, so callers may read it concurrently with table writes.
func (rt *RoutingTable) Statistics() *NetworkStatistics {
	return rt.stats
}

// UpdateFromConnectedPeer relays a peer's reported close group into the
// owned matrix. Must be called with the table unlocked; it takes the lock
// itself since matrix writes are sub-object writes of this table (§5).
func (rt *RoutingTable) UpdateFromConnectedPeer(peer NodeID, theirCloseGroup []NodeInfo) MatrixChange {
	rt.mu.Lock()
	change := MatrixChange{OldUniqueIDs: rt.matrix.UniqueNodeIDs()}
	rt.matrix.UpdateFromConnectedPeer(peer, theirCloseGroup)
	rt.syncNetworkDistanceLocked()
	change.NewUniqueIDs = rt.matrix.UniqueNodeIDs()
	healthPct := healthPercent(len(rt.entries), rt.capacity())
	rt.mu.Unlock()

	if rt.cfg.OnNetworkStatus != nil {
		rt.cfg.OnNetworkStatus(healthPct)
	}
	if rt.cfg.OnMatrixChanged != nil {
		rt.cfg.OnMatrixChanged(change)
	}
	return change
}

// notify fires the configured observers with the mutex already released,
// per §5/§9 ("no lock held across a callback into external code").
func (rt *RoutingTable) notify(healthPct int, before, after []NodeInfo) {
	if rt.cfg.OnNetworkStatus != nil {
		rt.cfg.OnNetworkStatus(healthPct)
	}
	if rt.cfg.OnCloseGroupChanged == nil {
		return
	}
	beforeSet := make(map[NodeID]struct{}, len(before))
	for _, n := range before {
		beforeSet[n.NodeID] = struct{}{}
	}
	afterSet := make(map[NodeID]struct{}, len(after))
	for _, n := range after {
		afterSet[n.NodeID] = struct{}{}
	}
	var added, removed []NodeInfo
	for _, n := range after {
		if _, ok := beforeSet[n.NodeID]; !ok {
			added = append(added, n)
		}
	}
	for _, n := range before {
		if _, ok := afterSet[n.NodeID]; !ok {
			removed = append(removed, n)
		}
	}
	if len(added) > 0 || len(removed) > 0 {
		rt.cfg.OnCloseGroupChanged(added, removed)
	}
}
