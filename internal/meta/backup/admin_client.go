package backup

import (
	"context"
	"fmt"
	"sync"

	"github.com/cubefs/graphmeta/internal/meta/codec"
)

// SignType is the write-blocking signal sent to a storage engine around a
// snapshot, mirroring the original's storage::cpp2::EngineSignType.
type SignType int32

const (
	BlockOn SignType = iota
	BlockOff
)

// AdminClient is the metadata service's RPC surface into a storage host's
// admin endpoint. The wire schema for that endpoint belongs to the storage
// engine, which is out of scope here (spec §1); this interface pins down
// only the Go-level contract the backup coordinator calls through. A real
// implementation dials the storage engine's admin gRPC service and is
// wired the same way cmd/metad wires its own gRPC server -- through
// google.golang.org/grpc with grpc/codes and grpc/status for the error
// surface -- but that generated client belongs to the storage engine's own
// module, not this one.
type AdminClient interface {
	CreateSnapshot(ctx context.Context, spaceID codec.GraphSpaceID, name string, host codec.HostAddr) (checkpointDir string, err error)
	DropSnapshot(ctx context.Context, spaceID codec.GraphSpaceID, name string, host codec.HostAddr) error
	BlockingWrites(ctx context.Context, spaceID codec.GraphSpaceID, sign SignType, host codec.HostAddr) error
}

// FakeAdminClient is an in-memory AdminClient used by tests and local
// development, the admin-RPC analogue of kvstore.MemEngine: every call
// succeeds and records what it was asked to do so a test can assert on it.
type FakeAdminClient struct {
	mu        sync.Mutex
	snapshots map[string][]string // name -> checkpoint dirs created, in call order
	dropped   map[string]int
	blocked   map[codec.HostAddr]SignType
	FailHost  codec.HostAddr // if set, every call against this host fails
}

func NewFakeAdminClient() *FakeAdminClient {
	return &FakeAdminClient{
		snapshots: make(map[string][]string),
		dropped:   make(map[string]int),
		blocked:   make(map[codec.HostAddr]SignType),
	}
}

func (f *FakeAdminClient) fails(host codec.HostAddr) bool {
	return f.FailHost != (codec.HostAddr{}) && f.FailHost == host
}

func (f *FakeAdminClient) CreateSnapshot(_ context.Context, spaceID codec.GraphSpaceID, name string, host codec.HostAddr) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails(host) {
		return "", fmt.Errorf("backup: create snapshot rpc failed on %s", host.Host)
	}
	dir := fmt.Sprintf("/data/checkpoints/%s/%d", name, spaceID)
	f.snapshots[name] = append(f.snapshots[name], dir)
	return dir, nil
}

func (f *FakeAdminClient) DropSnapshot(_ context.Context, _ codec.GraphSpaceID, name string, host codec.HostAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails(host) {
		return fmt.Errorf("backup: drop snapshot rpc failed on %s", host.Host)
	}
	f.dropped[name]++
	return nil
}

func (f *FakeAdminClient) BlockingWrites(_ context.Context, _ codec.GraphSpaceID, sign SignType, host codec.HostAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails(host) {
		return fmt.Errorf("backup: blocking writes rpc failed on %s", host.Host)
	}
	f.blocked[host] = sign
	return nil
}
