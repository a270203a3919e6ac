package overlay

import (
	"testing"

	"github.com/google/uuid"
)

// newTestNode returns a NodeInfo with a fresh random id and connection id,
// suitable for admission tests that don't care about the exact identity.
func newTestNode(t *testing.T) NodeInfo {
	t.Helper()
	id, err := RandomNodeID()
	if err != nil {
		t.Fatalf("RandomNodeID: %v", err)
	}
	return NodeInfo{NodeID: id, ConnectionID: uuid.New(), Bucket: InvalidBucket}
}

// nodeWithID returns a NodeInfo carrying a specific id and a fresh
// connection id.
func nodeWithID(id NodeID) NodeInfo {
	return NodeInfo{NodeID: id, ConnectionID: uuid.New(), Bucket: InvalidBucket}
}
