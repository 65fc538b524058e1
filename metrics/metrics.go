// Package metrics tracks runtime counters for the partitioned-table core:
// per-partition replication progress and per-replica batch throughput.
// Adapted from zenodb's leader/follower stats package — same
// mutex-guarded-map-plus-sorted-snapshot shape, retargeted from cluster
// WAL-following stats onto LSM replication stats.
package metrics

import (
	"sort"
	"sync"
)

var (
	partitionStats map[string]*PartitionStats
	replicaStats   map[string]*ReplicaStats

	mx sync.RWMutex
)

func init() {
	reset()
}

func reset() {
	partitionStats = make(map[string]*PartitionStats)
	replicaStats = make(map[string]*ReplicaStats)
}

// Stats is the overall snapshot returned by GetStats.
type Stats struct {
	Partitions sortedPartitionStats
	Replicas   sortedReplicaStats
}

// PartitionStats tracks replication progress for a single local
// partition.
type PartitionStats struct {
	Partition string
	Ticks     int64
	Failures  int64
	LastOK    bool
}

// ReplicaStats tracks upload throughput to a single remote replica.
type ReplicaStats struct {
	Partition     string
	ReplicaID     string
	BatchesSent   int64
	RecordsSent   int64
	BytesSent     int64
	LastAckOffset uint64
}

type sortedPartitionStats []*PartitionStats

func (s sortedPartitionStats) Len() int      { return len(s) }
func (s sortedPartitionStats) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s sortedPartitionStats) Less(i, j int) bool {
	return s[i].Partition < s[j].Partition
}

type sortedReplicaStats []*ReplicaStats

func (s sortedReplicaStats) Len() int      { return len(s) }
func (s sortedReplicaStats) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s sortedReplicaStats) Less(i, j int) bool {
	if s[i].Partition != s[j].Partition {
		return s[i].Partition < s[j].Partition
	}
	return s[i].ReplicaID < s[j].ReplicaID
}

func getPartitionStats(partitionKey string) *PartitionStats {
	ps, found := partitionStats[partitionKey]
	if !found {
		ps = &PartitionStats{Partition: partitionKey}
		partitionStats[partitionKey] = ps
	}
	return ps
}

func getReplicaStats(partitionKey, replicaID string) *ReplicaStats {
	key := partitionKey + "|" + replicaID
	rs, found := replicaStats[key]
	if !found {
		rs = &ReplicaStats{Partition: partitionKey, ReplicaID: replicaID}
		replicaStats[key] = rs
	}
	return rs
}

// ReplicationTickCompleted records the outcome of one Replicate() call
// for a partition.
func ReplicationTickCompleted(partitionKey string, ok bool) {
	mx.Lock()
	defer mx.Unlock()
	ps := getPartitionStats(partitionKey)
	ps.Ticks++
	ps.LastOK = ok
	if !ok {
		ps.Failures++
	}
}

// BatchUploaded records a successful batch upload to one replica.
func BatchUploaded(partitionKey, replicaID string, records int, bytes int) {
	mx.Lock()
	defer mx.Unlock()
	rs := getReplicaStats(partitionKey, replicaID)
	rs.BatchesSent++
	rs.RecordsSent += int64(records)
	rs.BytesSent += int64(bytes)
}

// ReplicaOffsetAdvanced records that a replica's durably-acknowledged
// LSM sequence advanced to offset.
func ReplicaOffsetAdvanced(partitionKey, replicaID string, offset uint64) {
	mx.Lock()
	defer mx.Unlock()
	rs := getReplicaStats(partitionKey, replicaID)
	rs.LastAckOffset = offset
}

// GetStats returns a sorted, point-in-time snapshot of all tracked
// counters.
func GetStats() *Stats {
	mx.RLock()
	s := &Stats{
		Partitions: make(sortedPartitionStats, 0, len(partitionStats)),
		Replicas:   make(sortedReplicaStats, 0, len(replicaStats)),
	}
	for _, ps := range partitionStats {
		s.Partitions = append(s.Partitions, ps)
	}
	for _, rs := range replicaStats {
		s.Replicas = append(s.Replicas, rs)
	}
	mx.RUnlock()

	sort.Sort(s.Partitions)
	sort.Sort(s.Replicas)
	return s
}

// Reset clears all tracked counters. Exposed for tests.
func Reset() {
	mx.Lock()
	defer mx.Unlock()
	reset()
}
