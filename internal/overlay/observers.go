package overlay

// CloseNodeReplacedFunctor fires whenever the close-neighbourhood
// composition changes as a result of a table mutation.
type CloseNodeReplacedFunctor func(added, removed []NodeInfo)

// NetworkStatusFunctor fires with a health percentage
// (size * 100 / max_routing_table_size, clamped to [0, 100]) on every
// successful RoutingTable write: Add, Drop and UpdateFromConnectedPeer.
type NetworkStatusFunctor func(healthPercent int)

// MatrixChangedFunctor fires after RoutingTable.UpdateFromConnectedPeer
// with the resulting diff. The matrix changes made by RoutingTable.Add and
// Drop do not fire it.
type MatrixChangedFunctor func(change MatrixChange)

// MatrixChange is a pair of unique-node-id snapshots captured atomically
// across a GroupMatrix mutation. Consumers compute the symmetric
// difference to re-evaluate which responsibilities must be gained or
// surrendered.
type MatrixChange struct {
	OldUniqueIDs []NodeID
	NewUniqueIDs []NodeID
}

// LostNodes returns ids present before the mutation but absent after.
func (c MatrixChange) LostNodes() []NodeID {
	return diffIDs(c.OldUniqueIDs, c.NewUniqueIDs)
}

// GainedNodes returns ids present after the mutation but absent before.
func (c MatrixChange) GainedNodes() []NodeID {
	return diffIDs(c.NewUniqueIDs, c.OldUniqueIDs)
}

func diffIDs(from, minus []NodeID) []NodeID {
	present := make(map[NodeID]struct{}, len(minus))
	for _, id := range minus {
		present[id] = struct{}{}
	}
	var out []NodeID
	for _, id := range from {
		if _, ok := present[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func healthPercent(size, max int) int {
	if max <= 0 {
		return 0
	}
	pct := size * 100 / max
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
