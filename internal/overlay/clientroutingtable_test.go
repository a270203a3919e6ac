package overlay

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoutingTable_Scenario4_BoundaryRejectsEquidistant(t *testing.T) {
	owner := idFromByte(0x00)
	furthest := idFromByte(0x10)
	// candidate with (C ^ owner) == (furthest ^ owner)
	candidate := furthest

	ct := NewClientRoutingTable(owner)
	err := ct.Add(nodeWithID(candidate), furthest)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestClientRoutingTable_AdmitsStrictlyCloserClient(t *testing.T) {
	owner := idFromByte(0x00)
	furthest := idFromByte(0x10)
	closer := idFromByte(0x08)

	ct := NewClientRoutingTable(owner)
	err := ct.Add(nodeWithID(closer), furthest)
	assert.NoError(t, err)
	assert.Equal(t, 1, ct.Size())
}

func TestClientRoutingTable_CheckDoesNotMutate(t *testing.T) {
	owner := idFromByte(0x00)
	furthest := idFromByte(0x10)
	closer := idFromByte(0x08)

	ct := NewClientRoutingTable(owner)
	err := ct.Check(nodeWithID(closer), furthest)
	assert.NoError(t, err)
	assert.Equal(t, 0, ct.Size())
}

func TestClientRoutingTable_AllowsSharedNodeIDDistinctConnection(t *testing.T) {
	owner := idFromByte(0x00)
	furthest := idFromByte(0x10)
	sharedID := idFromByte(0x08)

	ct := NewClientRoutingTable(owner)
	n1 := NodeInfo{NodeID: sharedID, ConnectionID: uuid.New(), Bucket: InvalidBucket}
	n2 := NodeInfo{NodeID: sharedID, ConnectionID: uuid.New(), Bucket: InvalidBucket}

	require.NoError(t, ct.Add(n1, furthest))
	require.NoError(t, ct.Add(n2, furthest))
	assert.Equal(t, 2, ct.Size())

	dropped, err := ct.DropNodes(sharedID)
	require.NoError(t, err)
	assert.Len(t, dropped, 2)
	assert.Equal(t, 0, ct.Size())
}

func TestClientRoutingTable_DropNodesNotFound(t *testing.T) {
	owner := idFromByte(0x00)
	ct := NewClientRoutingTable(owner)

	dropped, err := ct.DropNodes(idFromByte(0x01))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, dropped)
}

func TestClientRoutingTable_RejectsDuplicateConnectionID(t *testing.T) {
	owner := idFromByte(0x00)
	furthest := idFromByte(0x10)

	ct := NewClientRoutingTable(owner)
	n1 := NodeInfo{NodeID: idFromByte(0x01), ConnectionID: uuid.New(), Bucket: InvalidBucket}
	n2 := NodeInfo{NodeID: idFromByte(0x02), ConnectionID: n1.ConnectionID, Bucket: InvalidBucket}

	require.NoError(t, ct.Add(n1, furthest))
	assert.ErrorIs(t, ct.Add(n2, furthest), ErrInvalidParameter)
}

func TestClientRoutingTable_RejectsInvalidBucket(t *testing.T) {
	owner := idFromByte(0x00)
	furthest := idFromByte(0x10)

	ct := NewClientRoutingTable(owner)
	n := NodeInfo{NodeID: idFromByte(0x01), ConnectionID: uuid.New(), Bucket: 3}
	assert.ErrorIs(t, ct.Add(n, furthest), ErrInvalidParameter)
}

func TestClientRoutingTable_RejectsWhenFull(t *testing.T) {
	owner := idFromByte(0x00)
	furthest := idFromByte(0xF0)

	ct := NewClientRoutingTable(owner, WithMaxClientRoutingTableSize(1))
	require.NoError(t, ct.Add(nodeWithID(idFromByte(0x01)), furthest))
	assert.ErrorIs(t, ct.Add(nodeWithID(idFromByte(0x02)), furthest), ErrCapacityExceeded)
}

func TestClientRoutingTable_DropConnectionRemovesSingleEndpoint(t *testing.T) {
	owner := idFromByte(0x00)
	furthest := idFromByte(0x10)
	sharedID := idFromByte(0x08)

	ct := NewClientRoutingTable(owner)
	n1 := NodeInfo{NodeID: sharedID, ConnectionID: uuid.New(), Bucket: InvalidBucket}
	n2 := NodeInfo{NodeID: sharedID, ConnectionID: uuid.New(), Bucket: InvalidBucket}
	require.NoError(t, ct.Add(n1, furthest))
	require.NoError(t, ct.Add(n2, furthest))

	dropped, err := ct.DropConnection(n1.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, n1.ConnectionID, dropped.ConnectionID)
	assert.Equal(t, 1, ct.Size())
	assert.Len(t, ct.NodesInfo(sharedID), 1)
}

func TestClientRoutingTable_DropConnectionNotFound(t *testing.T) {
	owner := idFromByte(0x00)
	ct := NewClientRoutingTable(owner)

	_, err := ct.DropConnection(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientRoutingTable_RejectsOwnID(t *testing.T) {
	owner := idFromByte(0x00)
	ct := NewClientRoutingTable(owner)
	assert.ErrorIs(t, ct.Add(nodeWithID(owner), idFromByte(0x10)), ErrInvalidParameter)
}
