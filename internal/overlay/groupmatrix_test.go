package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupMatrix_Scenario2_CloseGroupUpdate(t *testing.T) {
	owner := ZeroNodeID
	cfg := DefaultConfig()
	cfg.ClosestNodesSize = 8
	m := NewGroupMatrix(owner, false, cfg)

	peers := make([]NodeInfo, 9)
	for i := range peers {
		peers[i] = nodeWithID(idFromByte(byte(i + 1)))
	}
	for _, p := range peers[:8] {
		m.AddConnectedPeer(p)
	}
	require.Len(t, m.ConnectedPeers(), 8)
	// owner + 8 peers = 9 unique nodes.
	assert.Len(t, m.UniqueNodes(), 9)

	extra := []NodeInfo{
		nodeWithID(idFromByte(200)),
		nodeWithID(idFromByte(201)),
		nodeWithID(idFromByte(202)),
	}
	m.UpdateFromConnectedPeer(peers[0].NodeID, extra)

	depth, ok := m.RowDepth(peers[0].NodeID)
	require.True(t, ok)
	assert.Equal(t, 4, depth)

	// 9 (owner+8 peers) + 3 new unique nodes = 12.
	assert.Len(t, m.UniqueNodes(), 12)
}

func TestGroupMatrix_Scenario3_PrunesFarRowWithNoDepth(t *testing.T) {
	owner := ZeroNodeID
	cfg := DefaultConfig()
	cfg.ClosestNodesSize = 8
	m := NewGroupMatrix(owner, false, cfg)

	for i := 1; i <= 8; i++ {
		m.AddConnectedPeer(nodeWithID(idFromByte(byte(i))))
	}
	before := len(m.UniqueNodes())

	far := nodeWithID(idFromByte(250))
	m.AddConnectedPeer(far)
	m.Prune()

	_, hasFarRow := m.RowFor(far.NodeID)
	assert.False(t, hasFarRow)
	assert.Equal(t, before, len(m.UniqueNodes()))
}

func TestGroupMatrix_Scenario5_GroupLeader(t *testing.T) {
	owner := idFromByte(0x01)
	cfg := DefaultConfig()
	m := NewGroupMatrix(owner, false, cfg)

	target := idFromByte(0x02)
	m.AddConnectedPeer(nodeWithID(target))
	m.AddConnectedPeer(nodeWithID(idFromByte(0xF0)))

	isLeader, hint := m.IsThisNodeGroupLeader(target)
	assert.True(t, isLeader)
	assert.Nil(t, hint)
}

func TestGroupMatrix_NotLeaderReturnsHint(t *testing.T) {
	owner := idFromByte(0x7F)
	cfg := DefaultConfig()
	m := NewGroupMatrix(owner, false, cfg)

	target := idFromByte(0x01)
	closer := nodeWithID(idFromByte(0x02))
	m.AddConnectedPeer(closer)

	isLeader, hint := m.IsThisNodeGroupLeader(target)
	assert.False(t, isLeader)
	require.NotNil(t, hint)
}

func TestGroupMatrix_Scenario6_MatrixChangeDiff(t *testing.T) {
	owner := ZeroNodeID
	cfg := DefaultConfig()
	cfg.ClosestNodesSize = 8
	m := NewGroupMatrix(owner, false, cfg)

	a := nodeWithID(idFromByte(0x10))
	b := nodeWithID(idFromByte(0x20))
	c := nodeWithID(idFromByte(0x30))

	m.AddConnectedPeer(a)
	m.AddConnectedPeer(b)
	m.AddConnectedPeer(c)

	change := m.RemoveConnectedPeer(b)

	lost := change.LostNodes()
	require.Len(t, lost, 1)
	assert.Equal(t, b.NodeID, lost[0])
	assert.Empty(t, change.GainedNodes())
}

func TestGroupMatrix_AddConnectedPeerIsIdempotent(t *testing.T) {
	owner := ZeroNodeID
	m := NewGroupMatrix(owner, false, DefaultConfig())
	peer := nodeWithID(idFromByte(0x11))

	m.AddConnectedPeer(peer)
	m.AddConnectedPeer(peer)

	assert.Len(t, m.ConnectedPeers(), 1)
}

func TestGroupMatrix_UpdateFromConnectedPeer_UnknownPeerIsDropped(t *testing.T) {
	owner := ZeroNodeID
	m := NewGroupMatrix(owner, false, DefaultConfig())

	m.UpdateFromConnectedPeer(idFromByte(0x99), []NodeInfo{nodeWithID(idFromByte(0x01))})
	assert.Empty(t, m.UniqueNodes()[1:]) // only owner present
}

func TestGroupMatrix_UpdateFromConnectedPeer_IdempotentUnderRepeat(t *testing.T) {
	owner := ZeroNodeID
	m := NewGroupMatrix(owner, false, DefaultConfig())
	peer := nodeWithID(idFromByte(0x11))
	m.AddConnectedPeer(peer)

	group := []NodeInfo{nodeWithID(idFromByte(0x22)), nodeWithID(idFromByte(0x33))}
	m.UpdateFromConnectedPeer(peer.NodeID, group)
	first := m.UniqueNodeIDs()

	m.UpdateFromConnectedPeer(peer.NodeID, group)
	second := m.UniqueNodeIDs()

	assert.ElementsMatch(t, first, second)
}

func TestGroupMatrix_IsNodeIdInGroupRange_FewerThanGroupSize(t *testing.T) {
	owner := ZeroNodeID
	cfg := DefaultConfig()
	cfg.NodeGroupSize = 4
	m := NewGroupMatrix(owner, false, cfg)
	m.AddConnectedPeer(nodeWithID(idFromByte(0x01)))

	assert.True(t, m.IsNodeIdInGroupRange(idFromByte(0x50)))
}

func TestGroupMatrix_IsNodeIdInGroupRange_Property3(t *testing.T) {
	owner := ZeroNodeID
	cfg := DefaultConfig()
	cfg.NodeGroupSize = 4
	m := NewGroupMatrix(owner, false, cfg)
	for i := 1; i <= 5; i++ {
		m.AddConnectedPeer(nodeWithID(idFromByte(byte(i * 10))))
	}

	target := idFromByte(0x99)
	ordered := m.UniqueNodes()
	partialSortFromTarget(owner, cfg.NodeGroupSize, ordered)
	furthest := ordered[cfg.NodeGroupSize-1]
	expected := !CloserToTarget(furthest.NodeID, target, owner)

	assert.Equal(t, expected, m.IsNodeIdInGroupRange(target))
}

func TestGroupMatrix_ClosestToId_OwnerIsClosest(t *testing.T) {
	owner := ZeroNodeID
	m := NewGroupMatrix(owner, false, DefaultConfig())
	m.AddConnectedPeer(nodeWithID(idFromByte(0xFF)))

	assert.True(t, m.ClosestToId(idFromByte(0x01)))
}

func TestGroupMatrix_ContainsAndClosestNodes(t *testing.T) {
	owner := ZeroNodeID
	m := NewGroupMatrix(owner, false, DefaultConfig())
	peer := nodeWithID(idFromByte(0x40))
	m.AddConnectedPeer(peer)

	assert.True(t, m.Contains(peer.NodeID))
	assert.False(t, m.Contains(idFromByte(0x99)))

	closest := m.ClosestNodes(1)
	require.Len(t, closest, 1)
	assert.Equal(t, owner, closest[0].NodeID)
}
