package overlay

import (
	"sort"

	"github.com/dep2p/overlay-routing/internal/overlay/log"
)

var matrixLog = log.Logger("overlay/groupmatrix")

// GroupMatrix is the second-order view of the overlay: one row per
// directly connected peer, the row's tail being that peer's reported
// close group. It has no mutex of its own — spec §5 requires it be
// mutated only while the owning RoutingTable's mutex is held.
type GroupMatrix struct {
	kNodeID     NodeID // 矩阵所属节点的 ID
	clientMode  bool
	closestSize int
	nodeGroup   int

	rows        [][]NodeInfo // rows[i][0] is the keying peer.
	uniqueNodes []NodeInfo   // sorted ascending by distance to kNodeID.
}

// NewGroupMatrix constructs an empty matrix for the given owner.
func NewGroupMatrix(nodeID NodeID, clientMode bool, cfg Config) *GroupMatrix {
	m := &GroupMatrix{
		kNodeID:     nodeID,
		clientMode:  clientMode,
		closestSize: cfg.ClosestNodesSize,
		nodeGroup:   cfg.NodeGroupSize,
	}
	m.updateUniqueNodes()
	return m
}

// AddConnectedPeer inserts a new row [peer] if no row keyed by peer's id
// already exists. Idempotent.
func (m *GroupMatrix) AddConnectedPeer(peer NodeInfo) {
	if m.rowIndex(peer.NodeID) >= 0 {
		matrixLog.Debug("peer already has a row", "node_id", peer.NodeID.String())
		return
	}
	m.rows = append(m.rows, []NodeInfo{peer})
	m.updateUniqueNodes()
}

// RemoveConnectedPeer removes the row keyed by peer, prunes, and returns
// the MatrixChange snapshotted across the mutation.
func (m *GroupMatrix) RemoveConnectedPeer(peer NodeInfo) MatrixChange {
	change := MatrixChange{OldUniqueIDs: m.UniqueNodeIDs()}
	if idx := m.rowIndex(peer.NodeID); idx >= 0 {
		m.rows = append(m.rows[:idx], m.rows[idx+1:]...)
	}
	m.Prune()
	m.updateUniqueNodes()
	change.NewUniqueIDs = m.UniqueNodeIDs()
	return change
}

// UpdateFromConnectedPeer replaces the row keyed by peer with
// [peer] ++ theirCloseGroup. If no row is keyed by peer, the call is
// dropped with a warning: a non-direct peer has no authoritative row.
func (m *GroupMatrix) UpdateFromConnectedPeer(peer NodeID, theirCloseGroup []NodeInfo) {
	idx := m.rowIndex(peer)
	if idx < 0 {
		matrixLog.Warn("peer not in closest group, dropping update", "peer", peer.String())
		return
	}
	row := m.rows[idx][:1]
	row = append(row, theirCloseGroup...)
	m.rows[idx] = row
	m.Prune()
	m.updateUniqueNodes()
}

// ConnectedPeers returns the first column, excluding kNodeID.
func (m *GroupMatrix) ConnectedPeers() []NodeInfo {
	var out []NodeInfo
	for _, row := range m.rows {
		if row[0].NodeID != m.kNodeID {
			out = append(out, row[0])
		}
	}
	return out
}

// ConnectedPeerFor returns the keying peer of the first row that contains
// target anywhere.
func (m *GroupMatrix) ConnectedPeerFor(target NodeID) (NodeInfo, bool) {
	for _, row := range m.rows {
		for _, cell := range row {
			if cell.NodeID == target {
				return row[0], true
			}
		}
	}
	return NodeInfo{}, false
}

// ConnectedPeersFor returns the keying peer of every row that contains
// target anywhere (supplements GetConnectedPeerFor's first-match with the
// original's GetAllConnectedPeersFor behaviour).
func (m *GroupMatrix) ConnectedPeersFor(target NodeID) []NodeInfo {
	var out []NodeInfo
	for _, row := range m.rows {
		for _, cell := range row {
			if cell.NodeID == target {
				out = append(out, row[0])
				break
			}
		}
	}
	return out
}

// BetterNodeForSending scans every cell and returns the first-column peer
// of the row containing the cell closest to target, starting from
// closest. Cells equal to kNodeID, ids in exclude, and (if
// ignoreExactMatch) cells/rows exactly equal to target are skipped.
func (m *GroupMatrix) BetterNodeForSending(target NodeID, exclude []NodeID, ignoreExactMatch bool, closest NodeInfo) NodeInfo {
	excluded := make(map[NodeID]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}
	closestID := closest.NodeID
	best := closest
	for _, row := range m.rows {
		if ignoreExactMatch && row[0].NodeID == target {
			continue
		}
		if _, skip := excluded[row[0].NodeID]; skip {
			continue
		}
		for _, cell := range row {
			if cell.NodeID == m.kNodeID {
				continue
			}
			if ignoreExactMatch && cell.NodeID == target {
				continue
			}
			if _, skip := excluded[cell.NodeID]; skip {
				continue
			}
			if CloserToTarget(cell.NodeID, closestID, target) {
				closestID = cell.NodeID
				best = row[0]
			}
		}
	}
	return best
}

// IsThisNodeGroupLeader reports whether kNodeID is the closest unique node
// to target. When it is not, the second return value carries a forwarding
// hint produced by BetterNodeForSending.
func (m *GroupMatrix) IsThisNodeGroupLeader(target NodeID) (bool, *NodeID) {
	if m.clientMode {
		return false, nil
	}
	if len(m.uniqueNodes) == 0 {
		return true, nil
	}
	isLeader := true
	for _, node := range m.uniqueNodes {
		if node.NodeID == target {
			continue
		}
		if CloserToTarget(node.NodeID, m.kNodeID, target) {
			isLeader = false
			break
		}
	}
	if isLeader {
		return true, nil
	}
	hint := m.BetterNodeForSending(target, nil, true, NodeInfo{NodeID: m.kNodeID})
	return false, &hint.NodeID
}

// ClosestToId reports whether kNodeID precedes every unique-nodes element
// in the order induced by target, with a tie-break for target itself
// appearing among the unique nodes.
func (m *GroupMatrix) ClosestToId(target NodeID) bool {
	if len(m.uniqueNodes) == 0 {
		return true
	}
	ordered := append([]NodeInfo(nil), m.uniqueNodes...)
	partialSortFromTarget(target, 2, ordered)

	if ordered[0].NodeID == m.kNodeID {
		return true
	}
	if ordered[0].NodeID == target {
		if len(ordered) < 2 {
			return true
		}
		if ordered[1].NodeID == m.kNodeID {
			return true
		}
		return CloserToTarget(m.kNodeID, ordered[1].NodeID, target)
	}
	return CloserToTarget(m.kNodeID, ordered[0].NodeID, target)
}

// IsNodeIdInGroupRange reports whether fewer than NodeGroupSize unique
// nodes exist, or kNodeID is among the NodeGroupSize closest unique nodes
// to target.
func (m *GroupMatrix) IsNodeIdInGroupRange(target NodeID) bool {
	if len(m.uniqueNodes) < m.nodeGroup {
		return true
	}
	ordered := append([]NodeInfo(nil), m.uniqueNodes...)
	partialSortFromTarget(m.kNodeID, m.nodeGroup, ordered)
	furthestGroupNode := ordered[m.nodeGroup-1]
	return !CloserToTarget(furthestGroupNode.NodeID, target, m.kNodeID)
}

// RowFor returns the tail (excluding the keying peer) of the row keyed by
// peerID.
func (m *GroupMatrix) RowFor(peerID NodeID) ([]NodeInfo, bool) {
	idx := m.rowIndex(peerID)
	if idx < 0 {
		return nil, false
	}
	return append([]NodeInfo(nil), m.rows[idx][1:]...), true
}

// RowDepth returns the number of cells (including the keying peer) in the
// row keyed by peerID.
func (m *GroupMatrix) RowDepth(peerID NodeID) (int, bool) {
	idx := m.rowIndex(peerID)
	if idx < 0 {
		return 0, false
	}
	return len(m.rows[idx]), true
}

// UniqueNodes returns the deduplicated union of all cells plus (for
// vaults) kNodeID, sorted ascending by distance to kNodeID.
func (m *GroupMatrix) UniqueNodes() []NodeInfo {
	return append([]NodeInfo(nil), m.uniqueNodes...)
}

// UniqueNodeIDs returns the ids of UniqueNodes.
func (m *GroupMatrix) UniqueNodeIDs() []NodeID {
	ids := make([]NodeID, len(m.uniqueNodes))
	for i, n := range m.uniqueNodes {
		ids[i] = n.NodeID
	}
	return ids
}

// ClosestNodes returns the size closest unique nodes to kNodeID.
func (m *GroupMatrix) ClosestNodes(size int) []NodeInfo {
	n := size
	if n > len(m.uniqueNodes) {
		n = len(m.uniqueNodes)
	}
	ordered := append([]NodeInfo(nil), m.uniqueNodes...)
	partialSortFromTarget(m.kNodeID, n, ordered)
	return ordered[:n]
}

// Contains reports whether node_id appears in UniqueNodes.
func (m *GroupMatrix) Contains(nodeID NodeID) bool {
	for _, n := range m.uniqueNodes {
		if n.NodeID == nodeID {
			return true
		}
	}
	return false
}

// Prune enforces M4: at most ClosestNodesSize rows survive as kept; a row
// beyond that prefix is kept only if it is a vault row of sufficient depth
// whose own first peer is closer to itself than kNodeID is.
//
// Prune 裁剪超出 ClosestNodesSize 前缀的行，仅在该行足够深且其对应节点
// 认为自己比本节点更接近该目标时才保留（M4）。
func (m *GroupMatrix) Prune() {
	if len(m.rows) <= m.closestSize {
		return
	}
	defer m.updateUniqueNodes()
	sortRowsFromTarget(m.kNodeID, m.closestSize, m.rows)

	toRemove := make(map[NodeID]struct{})
	for _, row := range m.rows[m.closestSize:] {
		rowKey := row[0].NodeID
		if m.clientMode {
			toRemove[rowKey] = struct{}{}
			continue
		}
		if len(row) < m.closestSize+1 {
			toRemove[rowKey] = struct{}{}
			continue
		}
		tail := append([]NodeInfo(nil), row[1:]...)
		partialSortFromTarget(rowKey, m.closestSize, tail)
		if CloserToTarget(tail[m.closestSize-1].NodeID, m.kNodeID, rowKey) {
			toRemove[rowKey] = struct{}{}
		}
	}
	if len(toRemove) == 0 {
		return
	}
	kept := m.rows[:0:0]
	for _, row := range m.rows {
		if _, drop := toRemove[row[0].NodeID]; drop {
			matrixLog.Info("matrix pruning row", "peer", row[0].NodeID.String())
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
}

func (m *GroupMatrix) rowIndex(peerID NodeID) int {
	for i, row := range m.rows {
		if row[0].NodeID == peerID {
			return i
		}
	}
	return -1
}

func (m *GroupMatrix) updateUniqueNodes() {
	seen := make(map[NodeID]NodeInfo)
	if !m.clientMode {
		seen[m.kNodeID] = NodeInfo{NodeID: m.kNodeID}
	}
	for _, row := range m.rows {
		for _, cell := range row {
			seen[cell.NodeID] = cell
		}
	}
	nodes := make([]NodeInfo, 0, len(seen))
	for _, n := range seen {
		nodes = append(nodes, n)
	}
	owner := m.kNodeID
	sort.Slice(nodes, func(i, j int) bool {
		return CloserToTarget(nodes[i].NodeID, nodes[j].NodeID, owner)
	})
	m.uniqueNodes = nodes
}

// partialSortFromTarget sorts all of nodes by distance to target, which
// leaves the `count` closest (or all of them, if fewer) at the front.
func partialSortFromTarget(target NodeID, count int, nodes []NodeInfo) {
	if count > len(nodes) {
		count = len(nodes)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return CloserToTarget(nodes[i].NodeID, nodes[j].NodeID, target)
	})
	_ = count // sort.Slice already yields a total order; count bounds the caller's read window.
}

// sortRowsFromTarget orders rows by proximity of their keying peer to
// target; only the first `count` rows are guaranteed sorted relative to
// the rest, matching std::partial_sort semantics closely enough for our
// purposes (a full sort satisfies the same postcondition).
func sortRowsFromTarget(target NodeID, count int, rows [][]NodeInfo) {
	sort.Slice(rows, func(i, j int) bool {
		return CloserToTarget(rows[i][0].NodeID, rows[j][0].NodeID, target)
	})
	_ = count
}
