package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/getlantern/zenodb/common"
	"github.com/getlantern/zenodb/recordcodec"
	"github.com/getlantern/zenodb/recordcodec/memcstable"
)

type fakeScheme struct {
	replicas []common.ReplicaRef
}

func (s *fakeScheme) ReplicasFor(common.PartitionID) []common.ReplicaRef {
	return s.replicas
}

type fakeWriter struct {
	mu    sync.Mutex
	state map[string]uint64
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{state: make(map[string]uint64)}
}

func (w *fakeWriter) FetchReplicationState() (map[string]uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]uint64, len(w.state))
	for k, v := range w.state {
		out[k] = v
	}
	return out, nil
}

func (w *fakeWriter) CommitReplicationState(state map[string]uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, v := range state {
		w.state[k] = v
	}
	return nil
}

type fakeOpener struct {
	tables map[string]*memcstable.Table
}

func (o *fakeOpener) Open(path string) (recordcodec.CSTableReader, error) {
	t, ok := o.tables[path]
	if !ok {
		return nil, fmt.Errorf("fakeOpener: no table registered for %s", path)
	}
	return t, nil
}

type recordedUpload struct {
	addr string
	body []byte
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []recordedUpload

	// statusFor, if set, is consulted by address to decide the response
	// code for every upload to that address; defaults to 201.
	statusFor map[string]int
}

func (u *fakeUploader) Upload(ctx context.Context, addr string, body []byte) (int, []byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, recordedUpload{addr: addr, body: body})
	if u.statusFor != nil {
		if status, ok := u.statusFor[addr]; ok {
			return status, nil, nil
		}
	}
	return 201, nil, nil
}

func (u *fakeUploader) uploadsTo(addr string) []recordedUpload {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []recordedUpload
	for _, up := range u.uploads {
		if up.addr == addr {
			out = append(out, up)
		}
	}
	return out
}

func rowID(n byte) common.SHA1Hash {
	var id common.SHA1Hash
	id[0] = n
	return id
}

func buildSnapshot(key common.PartitionID, rows []memcstable.StoredRow, opener *fakeOpener) *Snapshot {
	const filename = "000001"
	path := "/data/partitions/" + key.String() + "/" + filename + ".cst"
	opener.tables[path] = memcstable.New(rows...)

	var last uint64
	for _, r := range rows {
		if r.Sequence > last {
			last = r.Sequence
		}
	}

	return &Snapshot{
		Key:      key,
		BasePath: "/data/partitions/" + key.String(),
		State: PartitionState{
			LSMSequence: last,
			LSMTables: []LSMTableRef{
				{Filename: filename, FirstSequence: 1, LastSequence: last},
			},
			TSDBNamespace: "prod",
			TableKey:      "events",
			Schema:        memcstable.PassthroughSchema{},
		},
	}
}

func TestReplicateHappyPath(t *testing.T) {
	key := rowID(1)
	rows := []memcstable.StoredRow{
		{ID: rowID(10), Version: 1, Sequence: 1, Payload: []byte("a")},
		{ID: rowID(11), Version: 1, Sequence: 2, Payload: []byte("b")},
		{ID: rowID(12), Version: 1, Sequence: 3, Payload: []byte("c")},
	}

	opener := &fakeOpener{tables: map[string]*memcstable.Table{}}
	snap := buildSnapshot(key, rows, opener)

	scheme := &fakeScheme{replicas: []common.ReplicaRef{
		{UniqueID: "local", Addr: "10.0.0.1:7000", IsLocal: true},
		{UniqueID: "replica-b", Addr: "10.0.0.2:7000"},
	}}
	writer := newFakeWriter()
	uploader := &fakeUploader{}

	r := New(snap, scheme, writer, opener, uploader)

	ok, err := r.Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate: %v", err)
	}
	if !ok {
		t.Fatalf("expected success")
	}

	ups := uploader.uploadsTo("10.0.0.2:7000")
	if len(ups) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(ups))
	}

	state, _ := writer.FetchReplicationState()
	if state["replica-b"] != 3 {
		t.Fatalf("expected replicated offset 3, got %d", state["replica-b"])
	}
}

func TestReplicatePartialFailure(t *testing.T) {
	key := rowID(2)
	rows := []memcstable.StoredRow{
		{ID: rowID(20), Version: 1, Sequence: 1, Payload: []byte("a")},
	}

	opener := &fakeOpener{tables: map[string]*memcstable.Table{}}
	snap := buildSnapshot(key, rows, opener)

	scheme := &fakeScheme{replicas: []common.ReplicaRef{
		{UniqueID: "replica-ok", Addr: "10.0.0.3:7000"},
		{UniqueID: "replica-bad", Addr: "10.0.0.4:7000"},
	}}
	writer := newFakeWriter()
	uploader := &fakeUploader{statusFor: map[string]int{"10.0.0.4:7000": 500}}

	r := New(snap, scheme, writer, opener, uploader)

	ok, err := r.Replicate(context.Background())
	if err != nil {
		t.Fatalf("Replicate: %v", err)
	}
	if ok {
		t.Fatalf("expected overall failure because one replica returned 500")
	}

	state, _ := writer.FetchReplicationState()
	if state["replica-ok"] != 1 {
		t.Fatalf("expected replica-ok offset 1, got %d", state["replica-ok"])
	}
	if _, found := state["replica-bad"]; found {
		t.Fatalf("replica-bad should not have an advanced offset, got %v", state["replica-bad"])
	}
}

func TestReplicateToBatchBoundary(t *testing.T) {
	key := rowID(3)
	rows := make([]memcstable.StoredRow, 8193)
	for i := range rows {
		rows[i] = memcstable.StoredRow{
			ID:       rowID(byte(i % 256)),
			Version:  1,
			Sequence: uint64(i + 1),
			Payload:  make([]byte, 100),
		}
	}

	opener := &fakeOpener{tables: map[string]*memcstable.Table{}}
	snap := buildSnapshot(key, rows, opener)

	writer := newFakeWriter()
	uploader := &fakeUploader{}
	replica := common.ReplicaRef{UniqueID: "replica-c", Addr: "10.0.0.5:7000"}

	r := New(snap, &fakeScheme{}, writer, opener, uploader)

	if err := r.ReplicateTo(context.Background(), replica, 0); err != nil {
		t.Fatalf("ReplicateTo: %v", err)
	}

	ups := uploader.uploadsTo(replica.Addr)
	if len(ups) != 2 {
		t.Fatalf("expected exactly 2 uploads, got %d", len(ups))
	}

	var firstBatch, secondBatch RecordEnvelopeList
	mustUnmarshal(t, ups[0].body, &firstBatch)
	mustUnmarshal(t, ups[1].body, &secondBatch)

	if len(firstBatch.Records) != MaxBatchSizeRows {
		t.Fatalf("expected first batch of %d records, got %d", MaxBatchSizeRows, len(firstBatch.Records))
	}
	if len(secondBatch.Records) != 1 {
		t.Fatalf("expected second batch of 1 record, got %d", len(secondBatch.Records))
	}
}

func TestReplicateToSelfIsIllegalState(t *testing.T) {
	key := rowID(4)
	opener := &fakeOpener{tables: map[string]*memcstable.Table{}}
	snap := buildSnapshot(key, nil, opener)
	writer := newFakeWriter()
	uploader := &fakeUploader{}

	r := New(snap, &fakeScheme{}, writer, opener, uploader)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected ReplicateTo to panic when replicating to a local replica")
		}
	}()
	_ = r.ReplicateTo(context.Background(), common.ReplicaRef{UniqueID: "local", Addr: "x", IsLocal: true}, 0)
}

func TestNeedsReplicationAndFullCopies(t *testing.T) {
	key := rowID(5)
	rows := []memcstable.StoredRow{
		{ID: rowID(50), Version: 1, Sequence: 1, Payload: []byte("a")},
		{ID: rowID(51), Version: 1, Sequence: 2, Payload: []byte("b")},
	}
	opener := &fakeOpener{tables: map[string]*memcstable.Table{}}
	snap := buildSnapshot(key, rows, opener)

	scheme := &fakeScheme{replicas: []common.ReplicaRef{
		{UniqueID: "caught-up", Addr: "10.0.0.6:7000"},
		{UniqueID: "behind", Addr: "10.0.0.7:7000"},
	}}
	writer := newFakeWriter()
	writer.state["caught-up"] = 2

	r := New(snap, scheme, writer, opener, &fakeUploader{})

	needs, err := r.NeedsReplication()
	if err != nil {
		t.Fatalf("NeedsReplication: %v", err)
	}
	if !needs {
		t.Fatalf("expected NeedsReplication true: behind replica is not caught up")
	}

	n, err := r.NumFullRemoteCopies()
	if err != nil {
		t.Fatalf("NumFullRemoteCopies: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 full remote copy, got %d", n)
	}
}

func mustUnmarshal(t *testing.T, body []byte, v *RecordEnvelopeList) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
}
