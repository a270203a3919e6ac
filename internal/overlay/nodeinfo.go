package overlay

import (
	"bytes"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"
)

// ConnectionID is the opaque transport handle a NodeInfo carries. The core
// never dereferences it, only compares and copies it (see design notes on
// not owning the transport connection).
type ConnectionID = uuid.UUID

// NATType is routing metadata about a peer's NAT reachability, reported by
// the transport and carried through, but never interpreted, by the core.
type NATType int

const (
	NATUnknown        NATType = iota // 未知：尚未探测到 NAT 类型
	NATNone                          // 无 NAT，公网可直连
	NATFull                          // 完全锥形 NAT
	NATRestricted                    // 受限锥形 NAT
	NATPortRestricted                // 端口受限锥形 NAT
	NATSymmetric                     // 对称型 NAT，穿透难度最高
)

func (n NATType) String() string {
	switch n {
	case NATNone:
		return "none"
	case NATFull:
		return "full_cone"
	case NATRestricted:
		return "restricted"
	case NATPortRestricted:
		return "port_restricted"
	case NATSymmetric:
		return "symmetric"
	default:
		return "unknown"
	}
}

// InvalidBucket is the sentinel used when a NodeInfo's bucket has not yet
// been assigned. ClientRoutingTable entries must carry it. A zero-value
// NodeInfo has Bucket 0, not InvalidBucket; RoutingTable.Add overwrites the
// field either way.
const InvalidBucket = kInvalidBucket

// NodeInfo identifies a peer plus the connection-layer and topology
// metadata the core needs to place it.
type NodeInfo struct {
	NodeID       NodeID               // 节点 ID（XOR 度量空间中的坐标）
	ConnectionID ConnectionID         // 传输层连接句柄，核心不解释其内容
	PublicKey    *secp256k1.PublicKey // optional
	Bucket       int                  // 所属桶位，kInvalidBucket 表示尚未分配
	NATType      NATType
}

// SamePeer reports whether a and b refer to the same overlay identity,
// i.e. their node ids match (spec §3: "duplicate connection_id with
// differing node_id is an admission error").
func (n NodeInfo) SamePeer(other NodeInfo) bool {
	return n.NodeID == other.NodeID
}

// samePublicKey reports whether two optional public keys are the same
// key material.
func samePublicKey(a, b *secp256k1.PublicKey) bool {
	if a == nil || b == nil {
		return false
	}
	return bytes.Equal(a.SerializeCompressed(), b.SerializeCompressed())
}
