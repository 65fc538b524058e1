// Package partitionmap exposes a loaded metadata file as an in-memory,
// many-readers/single-writer keyspace index: point lookup, range scan,
// local-ownership checks, and replica resolution for a key. Swapping in a
// newly published metadata file is atomic from a reader's perspective —
// a lookup never observes a mix of entries from the old and new file.
package partitionmap

import (
	"sync/atomic"

	"github.com/getlantern/zenodb/common"
	"github.com/getlantern/zenodb/metadata"
)

// Map is a thread-safe, swappable view over a *metadata.File.
type Map struct {
	current atomic.Value // holds *metadata.File
}

// New builds a Map backed by the given initial file. file may be nil, in
// which case the map starts out empty.
func New(file *metadata.File) *Map {
	m := &Map{}
	if file == nil {
		file = &metadata.File{}
	}
	m.current.Store(file)
	return m
}

// Swap replaces the loaded file. Concurrent readers in flight at the
// time of the swap continue to see a fully-formed file: either the one
// before the swap or the one after, never a mix. Swap does not itself
// enforce the "strictly increasing sequence" rule for TransactionSeq;
// the caller (the component consuming the config directory's published
// files) is expected to check TransactionSeq before calling Swap.
func (m *Map) Swap(file *metadata.File) {
	m.current.Store(file)
}

// Current returns the currently loaded file. The returned value must be
// treated as immutable by the caller.
func (m *Map) Current() *metadata.File {
	return m.current.Load().(*metadata.File)
}

// Lookup returns the partition map entry that owns key, or ok=false if
// the file is FINITE and key falls outside every entry's range (or the
// map is empty, or key is empty).
func (m *Map) Lookup(key string) (common.PartitionMapEntry, bool) {
	f := m.Current()
	idx, ok := f.GetPartitionMapAt(key)
	if !ok {
		return common.PartitionMapEntry{}, false
	}
	return f.PartitionMap[idx], true
}

// Range returns every entry that may intersect [begin, end). An empty
// begin means "from the start"; an empty end means "to the end".
func (m *Map) Range(begin, end string) []common.PartitionMapEntry {
	f := m.Current()
	if len(f.PartitionMap) == 0 {
		return nil
	}
	start := f.GetPartitionMapRangeBegin(begin)
	stop := f.GetPartitionMapRangeEnd(end)
	if start >= stop {
		return nil
	}
	out := make([]common.PartitionMapEntry, stop-start)
	copy(out, f.PartitionMap[start:stop])
	return out
}

// OwnsLocally reports whether serverID currently serves (or is joining
// to serve) the entry owning key. Joining replicas are read-only until
// promoted; a server listed only among the leaving replicas does not
// count as "owning" here.
func (m *Map) OwnsLocally(key string, serverID string) bool {
	e, ok := m.Lookup(key)
	if !ok {
		return false
	}
	return e.HasServer(serverID)
}

// ReplicaPlacement is a placement annotated with whether it names the
// local server.
type ReplicaPlacement struct {
	common.PartitionPlacement
	IsLocal bool
}

// ReplicasForKey returns every placement responsible for the entry
// owning key (Servers, ServersJoining and ServersLeaving, in that
// order), each annotated with whether it is the local server.
func (m *Map) ReplicasForKey(key string, localServerID string) ([]ReplicaPlacement, bool) {
	e, ok := m.Lookup(key)
	if !ok {
		return nil, false
	}
	placements := e.AllPlacements()
	out := make([]ReplicaPlacement, len(placements))
	for i, p := range placements {
		out[i] = ReplicaPlacement{PartitionPlacement: p, IsLocal: p.ServerID == localServerID}
	}
	return out, true
}
