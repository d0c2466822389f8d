package processors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/graphmeta/internal/kvstore"
	"github.com/cubefs/graphmeta/internal/meta/codec"
	"github.com/cubefs/graphmeta/internal/meta/hosts"
	"github.com/cubefs/graphmeta/internal/meta/lock"
	"github.com/cubefs/graphmeta/internal/meta/processor"
	"github.com/cubefs/graphmeta/internal/meta/store"
)

func newHostsFixture() (*HostsProcessor, *store.Store) {
	s := store.New(kvstore.NewMemEngine())
	base := processor.NewBase(s, lock.NewRegistry())
	reporter := hosts.New(s, hosts.DefaultThresholds, "sha123")
	return NewHostsProcessor(base, reporter), s
}

func TestListHostsGraphFiltersRole(t *testing.T) {
	p, s := newHostsFixture()
	ctx := context.Background()

	now := time.Now().UnixMilli()
	graph := codec.HostAddr{Host: "graph-1", Port: 9100}
	storage := codec.HostAddr{Host: "storage-1", Port: 9000}
	require.NoError(t, s.Put(ctx, codec.HostKey(graph), codec.HostVal(codec.HostInfo{Role: codec.RoleGraph, LastHeartbeatMs: now})))
	require.NoError(t, s.Put(ctx, codec.HostKey(storage), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage, LastHeartbeatMs: now})))

	items, err := p.ListHosts(ctx, ListHostGraph)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, graph, items[0].Addr)
}

// ListHostAlloc attaches leadership and full placement, scoped to spaces
// that still exist, keyed by space name rather than raw id.
func TestListHostAllocFillsLeadersAndAllParts(t *testing.T) {
	p, s := newHostsFixture()
	ctx := context.Background()

	now := time.Now().UnixMilli()
	storage1 := codec.HostAddr{Host: "storage-1", Port: 9000}
	storage2 := codec.HostAddr{Host: "storage-2", Port: 9000}
	require.NoError(t, s.Put(ctx, codec.HostKey(storage1), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage, LastHeartbeatMs: now})))
	require.NoError(t, s.Put(ctx, codec.HostKey(storage2), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage, LastHeartbeatMs: now})))

	require.NoError(t, s.Put(ctx, codec.SpaceKey(1), codec.SpaceVal(codec.SpaceDesc{Name: "g1", PartitionNum: 1, ReplicaFactor: 2})))
	require.NoError(t, s.Put(ctx, codec.IndexSpaceKey("g1"), codec.EncodeInt32(1)))
	require.NoError(t, s.Put(ctx, codec.PartKey(1, 1), codec.PartVal([]codec.HostAddr{storage1, storage2})))
	require.NoError(t, s.Put(ctx, codec.LeaderKey(1, 1), codec.LeaderVal(codec.LeaderInfo{Host: storage1})))

	items, err := p.ListHosts(ctx, ListHostAlloc)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byAddr := make(map[codec.HostAddr]HostItem, len(items))
	for _, it := range items {
		byAddr[it.Addr] = it
	}

	leader := byAddr[storage1]
	require.Equal(t, []codec.PartitionID{1}, leader.LeaderParts["g1"])
	require.Equal(t, []codec.PartitionID{1}, leader.AllParts["g1"])

	follower := byAddr[storage2]
	require.Empty(t, follower.LeaderParts)
	require.Equal(t, []codec.PartitionID{1}, follower.AllParts["g1"])
}

// A dropped space's placement records never surface, even if a stray
// partition entry for it somehow remains.
func TestListHostAllocIgnoresPartitionsOfDroppedSpace(t *testing.T) {
	p, s := newHostsFixture()
	ctx := context.Background()

	storage1 := codec.HostAddr{Host: "storage-1", Port: 9000}
	require.NoError(t, s.Put(ctx, codec.HostKey(storage1), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage, LastHeartbeatMs: time.Now().UnixMilli()})))

	// space 2 has no space record: its partition and leader entries are strays.
	require.NoError(t, s.Put(ctx, codec.PartKey(2, 1), codec.PartVal([]codec.HostAddr{storage1})))
	require.NoError(t, s.Put(ctx, codec.LeaderKey(2, 1), codec.LeaderVal(codec.LeaderInfo{Host: storage1})))

	items, err := p.ListHosts(ctx, ListHostAlloc)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Empty(t, items[0].LeaderParts)
	require.Empty(t, items[0].AllParts)
}
