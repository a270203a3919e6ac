package overlay

import "errors"

// Config carries the capacity constants and behavioural switches for the
// overlay routing core. It replaces the source's global mutable
// "Parameters" module (spec §9 open question): it is an immutable value
// passed to each constructor, and tests construct it with overridden
// fields instead of mutating process-wide state.
type Config struct {
	// MaxRoutingTableSize is the vault peer cap (R3).
	MaxRoutingTableSize int

	// MaxRoutingTableSizeForClient is the peer cap when this node itself
	// runs in client mode (R3).
	MaxRoutingTableSizeForClient int

	// MaxClientRoutingTableSize is the attached-client cap (C4).
	MaxClientRoutingTableSize int

	// BucketTargetSize is the soft per-bucket k. RoutingTable.Add does not
	// consult it: admission depends only on a free slot or, in a full table,
	// on being closer to kNodeID than the most expendable incumbent.
	BucketTargetSize int

	// ClosestNodesSize is the close-neighbourhood size: GroupMatrix.Prune
	// (M4) uses it, and RoutingTable reports changes among its closest
	// ClosestNodesSize entries to OnCloseGroupChanged.
	ClosestNodesSize int

	// NodeGroupSize is the replication group size used by
	// IsNodeIdInGroupRange and NetworkStatistics.
	NodeGroupSize int

	// ProximityFactor is the group-range slack multiplier. Validate checks
	// that it is positive; no other code in this package reads it.
	ProximityFactor float64

	// RejectDuplicatePublicKey resolves the §9 open question about the
	// commented-out "same public key under a different node id" check.
	// Default false, matching the source's disabled check.
	RejectDuplicatePublicKey bool

	// Observers, invoked without holding the core's mutex (§5, §9).
	OnCloseGroupChanged CloseNodeReplacedFunctor
	OnNetworkStatus     NetworkStatusFunctor
	OnMatrixChanged     MatrixChangedFunctor
}

// ============================================================
//                        默认容量参数
// ============================================================

// DefaultConfig returns the indicative defaults from spec §6.
func DefaultConfig() Config {
	return Config{
		MaxRoutingTableSize:          64, // 路由表容量上限
		MaxRoutingTableSizeForClient: 8,
		MaxClientRoutingTableSize:    8,
		BucketTargetSize:             1,
		ClosestNodesSize:             8, // 最近邻窗口大小
		NodeGroupSize:                4,
		ProximityFactor:              1.0,
		RejectDuplicatePublicKey:     false,
	}
}

// Validate checks that the capacity constants are usable.
func (c Config) Validate() error {
	switch {
	case c.MaxRoutingTableSize <= 0:
		return errors.New("overlay: max routing table size must be positive")
	case c.MaxRoutingTableSizeForClient <= 0:
		return errors.New("overlay: max routing table size for client must be positive")
	case c.MaxClientRoutingTableSize <= 0:
		return errors.New("overlay: max client routing table size must be positive")
	case c.BucketTargetSize <= 0:
		return errors.New("overlay: bucket target size must be positive")
	case c.ClosestNodesSize <= 0:
		return errors.New("overlay: closest nodes size must be positive")
	case c.NodeGroupSize <= 0:
		return errors.New("overlay: node group size must be positive")
	case c.ProximityFactor <= 0:
		return errors.New("overlay: proximity factor must be positive")
	}
	return nil
}

// Option mutates a Config at construction time.
type Option func(*Config)

// WithMaxRoutingTableSize overrides the vault peer cap.
func WithMaxRoutingTableSize(n int) Option {
	return func(c *Config) { c.MaxRoutingTableSize = n }
}

// WithMaxClientRoutingTableSize overrides the attached-client cap.
func WithMaxClientRoutingTableSize(n int) Option {
	return func(c *Config) { c.MaxClientRoutingTableSize = n }
}

// WithBucketTargetSize overrides the soft per-bucket k.
func WithBucketTargetSize(n int) Option {
	return func(c *Config) { c.BucketTargetSize = n }
}

// WithClosestNodesSize overrides the close-neighbourhood size.
func WithClosestNodesSize(n int) Option {
	return func(c *Config) { c.ClosestNodesSize = n }
}

// WithNodeGroupSize overrides the replication group size.
func WithNodeGroupSize(n int) Option {
	return func(c *Config) { c.NodeGroupSize = n }
}

// WithRejectDuplicatePublicKey enables the "same public key under a
// different node id" admission rejection (disabled by default, per §9).
func WithRejectDuplicatePublicKey(reject bool) Option {
	return func(c *Config) { c.RejectDuplicatePublicKey = reject }
}

// WithCloseGroupObserver registers the close-neighbourhood change functor.
func WithCloseGroupObserver(fn CloseNodeReplacedFunctor) Option {
	return func(c *Config) { c.OnCloseGroupChanged = fn }
}

// WithNetworkStatusObserver registers the table-health functor.
func WithNetworkStatusObserver(fn NetworkStatusFunctor) Option {
	return func(c *Config) { c.OnNetworkStatus = fn }
}

// WithMatrixChangedObserver registers the matrix-diff functor.
func WithMatrixChangedObserver(fn MatrixChangedFunctor) Option {
	return func(c *Config) { c.OnMatrixChanged = fn }
}

func newConfig(base Config, opts ...Option) Config {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}
