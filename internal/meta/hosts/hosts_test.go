package hosts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/graphmeta/internal/kvstore"
	"github.com/cubefs/graphmeta/internal/meta/codec"
	"github.com/cubefs/graphmeta/internal/meta/store"
)

var th = Thresholds{HeartbeatIntervalSecs: 10, ExpiredTimeFactor: 3, RemovedThresholdSecs: 100}

func TestClassifyOnlineWithinExpiredWindow(t *testing.T) {
	require.Equal(t, StatusOnline, th.Classify(10_000, 10_000-29_000))
}

func TestClassifyOfflinePastExpiredWindow(t *testing.T) {
	require.Equal(t, StatusOffline, th.Classify(10_000, 10_000-31_000))
}

func TestClassifyForgottenPastRemovedThreshold(t *testing.T) {
	require.Equal(t, StatusForgotten, th.Classify(200_000, 0))
}

// Classify is a pure function: the same (now, lastHeartbeat) pair always
// yields the same status, regardless of how many times it's called.
func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		require.Equal(t, th.Classify(50_000, 20_000), th.Classify(50_000, 20_000))
	}
}

func newReporter() (*Reporter, *store.Store) {
	s := store.New(kvstore.NewMemEngine())
	return New(s, th, "sha123"), s
}

func TestListHostsFiltersByRoleAndRemovesExpired(t *testing.T) {
	r, s := newReporter()
	ctx := context.Background()

	live := codec.HostAddr{Host: "storage-1", Port: 9000}
	dead := codec.HostAddr{Host: "storage-2", Port: 9000}
	other := codec.HostAddr{Host: "graph-1", Port: 9100}

	require.NoError(t, s.Put(ctx, codec.HostKey(live), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage, LastHeartbeatMs: 100_000, GitInfoSHA: "a"})))
	require.NoError(t, s.Put(ctx, codec.HostKey(dead), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage, LastHeartbeatMs: 0, GitInfoSHA: "a"})))
	require.NoError(t, s.Put(ctx, codec.HostKey(other), codec.HostVal(codec.HostInfo{Role: codec.RoleGraph, LastHeartbeatMs: 100_000, GitInfoSHA: "a"})))

	items, err := r.ListHosts(ctx, codec.RoleStorage, 100_000)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, live, items[0].Addr)

	_, err = s.Get(ctx, codec.HostKey(dead))
	require.Error(t, err, "expired host should have been removed")
}

// removeFailEngine wraps a MemEngine but fails every AsyncMultiRemove, so
// tests can exercise ListHosts' best-effort pruning path.
type removeFailEngine struct {
	*kvstore.MemEngine
}

func (e removeFailEngine) AsyncMultiRemove(ctx context.Context, spaceID, partID uint32, keys [][]byte, cb kvstore.PutCallback) {
	cb(kvstore.ErrStoreFailure)
}

// A failure pruning expired hosts is logged, not returned: the caller still
// gets the classification work ListHosts already did.
func TestListHostsToleratesPruneFailure(t *testing.T) {
	engine := removeFailEngine{kvstore.NewMemEngine()}
	s := store.New(engine)
	r := New(s, th, "sha123")
	ctx := context.Background()

	live := codec.HostAddr{Host: "storage-1", Port: 9000}
	dead := codec.HostAddr{Host: "storage-2", Port: 9000}
	require.NoError(t, s.Put(ctx, codec.HostKey(live), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage, LastHeartbeatMs: 100_000})))
	require.NoError(t, s.Put(ctx, codec.HostKey(dead), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage, LastHeartbeatMs: 0})))

	items, err := r.ListHosts(ctx, codec.RoleStorage, 100_000)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, live, items[0].Addr)
}

func TestListHostsMetaDerivedFromRaftPeers(t *testing.T) {
	s := store.New(kvstore.NewMemEngine("meta-1:9500", "meta-2:9500", "meta-3:9500"))
	r := New(s, th, "build-sha")

	items, err := r.ListHosts(context.Background(), codec.RoleMeta, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		require.Equal(t, codec.RoleMeta, it.Role)
		require.Equal(t, StatusOnline, it.Status)
		require.Equal(t, "build-sha", it.GitInfoSHA)
	}
}
