package overlay

import "sync"

// ClientRoutingTable is the vault-side index of attached clients that fall
// within the vault's close group (spec §4.2). Unlike RoutingTable it
// intentionally permits multiple entries with the same NodeID but distinct
// ConnectionID, supporting a user identity attached from several devices.
type ClientRoutingTable struct {
	mu sync.Mutex

	kNodeID NodeID
	cfg     Config
	nodes   []NodeInfo // 已接纳的客户端条目，允许同一 NodeID 出现多次
}

// NewClientRoutingTable constructs an empty client table for owner
// nodeID.
func NewClientRoutingTable(nodeID NodeID, opts ...Option) *ClientRoutingTable {
	return &ClientRoutingTable{
		kNodeID: nodeID,
		cfg:     newConfig(DefaultConfig(), opts...),
	}
}

// Add admits node iff invariants C1-C4 hold. A non-nil error explains the
// rejection reason: ErrInvalidParameter (own id, malformed bucket,
// duplicate connection id or public key), ErrCapacityExceeded (table
// full), or ErrOutOfRange (outside the vault's close-group radius, C3).
func (t *ClientRoutingTable) Add(node NodeInfo, furthestCloseNodeID NodeID) error {
	return t.addOrCheck(node, furthestCloseNodeID, true)
}

// Check reports the same predicate as Add without mutating the table.
func (t *ClientRoutingTable) Check(node NodeInfo, furthestCloseNodeID NodeID) error {
	return t.addOrCheck(node, furthestCloseNodeID, false)
}

func (t *ClientRoutingTable) addOrCheck(node NodeInfo, furthestCloseNodeID NodeID, add bool) error {
	if node.NodeID == t.kNodeID {
		return ErrInvalidParameter
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkRangeForNodeToBeAdded(node, furthestCloseNodeID); err != nil {
		return err
	}
	if add {
		t.nodes = append(t.nodes, node)
	}
	return nil
}

func (t *ClientRoutingTable) checkValidParameters(node NodeInfo) bool {
	if node.Bucket != InvalidBucket {
		return false
	}
	return t.checkParametersAreUnique(node)
}

func (t *ClientRoutingTable) checkParametersAreUnique(node NodeInfo) bool {
	for _, n := range t.nodes {
		if n.ConnectionID == node.ConnectionID {
			return false
		}
	}
	if !t.cfg.RejectDuplicatePublicKey || node.PublicKey == nil {
		return true
	}
	for _, n := range t.nodes {
		if n.NodeID != node.NodeID && samePublicKey(n.PublicKey, node.PublicKey) {
			return false
		}
	}
	return true
}

func (t *ClientRoutingTable) checkRangeForNodeToBeAdded(node NodeInfo, furthestCloseNodeID NodeID) error {
	if len(t.nodes) >= t.cfg.MaxClientRoutingTableSize {
		return ErrCapacityExceeded
	}
	if !t.checkValidParameters(node) {
		return ErrInvalidParameter
	}
	if !t.isThisNodeInRange(node.NodeID, furthestCloseNodeID) {
		return ErrOutOfRange
	}
	return nil
}

// isThisNodeInRange implements C3: (furthestCloseNodeID ^ kNodeID) >
// (nodeID ^ kNodeID), a strict XOR-distance inequality with no tie-break —
// equidistant candidates are rejected (spec scenario 4).
func (t *ClientRoutingTable) isThisNodeInRange(nodeID, furthestCloseNodeID NodeID) bool {
	if furthestCloseNodeID == nodeID {
		return false
	}
	clientDist := nodeID.XOR(t.kNodeID)
	furthestDist := furthestCloseNodeID.XOR(t.kNodeID)
	return clientDist.less(furthestDist)
}

// DropNodes removes and returns all entries with matching node id
// (supports the shared-id case, spec §9). Returns ErrNotFound if no entry
// carries nodeID, matching client_routing_table.cc's DropNodes "not found"
// path.
func (t *ClientRoutingTable) DropNodes(nodeID NodeID) ([]NodeInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var dropped []NodeInfo
	kept := t.nodes[:0:0]
	for _, n := range t.nodes {
		if n.NodeID == nodeID {
			dropped = append(dropped, n)
			continue
		}
		kept = append(kept, n)
	}
	t.nodes = kept
	if len(dropped) == 0 {
		return nil, ErrNotFound
	}
	return dropped, nil
}

// DropConnection removes a specific endpoint by connection id. Returns
// ErrNotFound if no entry carries connectionID, matching
// client_routing_table.cc's DropConnection "not found" path.
func (t *ClientRoutingTable) DropConnection(connectionID ConnectionID) (NodeInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, n := range t.nodes {
		if n.ConnectionID == connectionID {
			t.nodes = append(t.nodes[:i], t.nodes[i+1:]...)
			return n, nil
		}
	}
	return NodeInfo{}, ErrNotFound
}

// NodesInfo returns every entry sharing nodeID.
func (t *ClientRoutingTable) NodesInfo(nodeID NodeID) []NodeInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []NodeInfo
	for _, n := range t.nodes {
		if n.NodeID == nodeID {
			out = append(out, n)
		}
	}
	return out
}

// Contains reports whether any entry has the given node id.
func (t *ClientRoutingTable) Contains(nodeID NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, n := range t.nodes {
		if n.NodeID == nodeID {
			return true
		}
	}
	return false
}

// IsConnected is an alias for Contains kept for symmetry with
// RoutingTable's naming.
func (t *ClientRoutingTable) IsConnected(nodeID NodeID) bool {
	return t.Contains(nodeID)
}

// Size returns the number of admitted client entries.
func (t *ClientRoutingTable) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}
