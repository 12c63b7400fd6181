// Package coordinator exposes the master-election capability the reader
// loop consults before producing. It is a narrow interface over the
// teacher's single-node cluster topology model, kept separate so the loop
// depends on a capability, not a concrete cluster singleton (§9 Design
// Notes: "avoid singletons").
package coordinator

// MasterCoordinator is the capability the reader loop and the config/mode
// write paths consult to decide whether this node may produce to the
// schemas topic. isMaster is a pointer so "not yet known" (nil, during
// startup before the first leader-election round) is distinguishable from
// a definite false.
type MasterCoordinator interface {
	GetMasterInfo() (isMaster *bool, generation int64)
}

// ClusterMaster adapts internal/cluster's single-node-is-leader model to
// MasterCoordinator. Every node considers itself the leader until a real
// multi-node election algorithm replaces ClusterInfo (out of scope per the
// core's Non-goals: "it does not itself perform leader election").
type ClusterMaster struct {
	cluster    clusterInfo
	generation int64
}

// clusterInfo is the narrow slice of cluster.ClusterInfo this package needs,
// declared locally so internal/coordinator doesn't import internal/cluster
// just to depend on two methods.
type clusterInfo interface {
	IsLeader() bool
}

// NewClusterMaster wraps a cluster topology view as a MasterCoordinator.
// generation should increase every time this node re-acquires leadership
// (e.g. after a restart or a lost-then-regained election); callers that
// don't implement real elections may pass a fixed value.
func NewClusterMaster(cluster clusterInfo, generation int64) *ClusterMaster {
	return &ClusterMaster{cluster: cluster, generation: generation}
}

// GetMasterInfo implements MasterCoordinator.
func (c *ClusterMaster) GetMasterInfo() (*bool, int64) {
	isMaster := c.cluster.IsLeader()
	return &isMaster, c.generation
}
