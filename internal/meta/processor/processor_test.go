package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/graphmeta/internal/kvstore"
	"github.com/cubefs/graphmeta/internal/meta/codec"
	metaerrors "github.com/cubefs/graphmeta/internal/meta/errors"
	"github.com/cubefs/graphmeta/internal/meta/lock"
	"github.com/cubefs/graphmeta/internal/meta/store"
)

func newBase() *Base {
	return NewBase(store.New(kvstore.NewMemEngine()), lock.NewRegistry())
}

func TestDoSyncPutAndUpdateStampsLastUpdateTime(t *testing.T) {
	b := newBase()
	ctx := context.Background()

	require.NoError(t, b.DoSyncPutAndUpdate(ctx, []kvstore.KV{{Key: []byte("k"), Value: []byte("v")}}, 1234))

	got, err := b.Store.Get(ctx, codec.LastUpdateTimeKey)
	require.NoError(t, err)
	ts, err := codec.DecodeInt64(got)
	require.NoError(t, err)
	require.Equal(t, int64(1234), ts)
}

func TestDoScanReturnsValuesInRange(t *testing.T) {
	b := newBase()
	ctx := context.Background()
	require.NoError(t, b.DoPut(ctx, []kvstore.KV{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}))

	vals, err := b.DoScan(ctx, []byte("a"), []byte("c"))
	require.NoError(t, err)
	require.ElementsMatch(t, [][]byte{[]byte("1"), []byte("2")}, vals)
}

func TestAllHostsEnumeratesHostPrefix(t *testing.T) {
	b := newBase()
	ctx := context.Background()
	addr := codec.HostAddr{Host: "storage-1", Port: 9000}
	require.NoError(t, b.Store.Put(ctx, codec.HostKey(addr), codec.HostVal(codec.HostInfo{Role: codec.RoleStorage})))

	hosts, err := b.AllHosts(ctx)
	require.NoError(t, err)
	require.Equal(t, []codec.HostAddr{addr}, hosts)
}

func TestSpaceExistHostExistUserExist(t *testing.T) {
	b := newBase()
	ctx := context.Background()

	require.False(t, b.SpaceExist(ctx, 1))
	require.NoError(t, b.Store.Put(ctx, codec.SpaceKey(1), codec.SpaceVal(codec.SpaceDesc{Name: "g1"})))
	require.True(t, b.SpaceExist(ctx, 1))

	addr := codec.HostAddr{Host: "storage-1", Port: 9000}
	require.False(t, b.HostExist(ctx, addr))
	require.NoError(t, b.Store.Put(ctx, codec.HostKey(addr), codec.HostVal(codec.HostInfo{})))
	require.True(t, b.HostExist(ctx, addr))

	require.False(t, b.UserExist(ctx, "alice"))
	require.NoError(t, b.Store.Put(ctx, codec.UserKey("alice"), codec.UserVal("hash")))
	require.True(t, b.UserExist(ctx, "alice"))
}

func TestGetSpaceIDUnknownNameReturnsDomainError(t *testing.T) {
	b := newBase()
	_, err := b.GetSpaceID(context.Background(), "nope")
	require.ErrorIs(t, err, metaerrors.ErrSpaceNotFound)
}

func TestGetTagIDEdgeTypeIndexIDGroupIDZoneIDRoundTrip(t *testing.T) {
	b := newBase()
	ctx := context.Background()

	require.NoError(t, b.Store.Put(ctx, codec.IndexTagKey(1, "person"), codec.EncodeInt32(7)))
	id, err := b.GetTagID(ctx, 1, "person")
	require.NoError(t, err)
	require.Equal(t, codec.TagID(7), id)

	require.NoError(t, b.Store.Put(ctx, codec.IndexEdgeKey(1, "knows"), codec.EncodeInt32(8)))
	et, err := b.GetEdgeType(ctx, 1, "knows")
	require.NoError(t, err)
	require.Equal(t, codec.EdgeType(8), et)

	require.NoError(t, b.Store.Put(ctx, codec.IndexIndexKey(1, "by_name"), codec.EncodeInt32(9)))
	ix, err := b.GetIndexID(ctx, 1, "by_name")
	require.NoError(t, err)
	require.Equal(t, codec.IndexID(9), ix)

	require.NoError(t, b.Store.Put(ctx, codec.IndexGroupKey("g"), codec.EncodeInt32(10)))
	gid, err := b.GetGroupID(ctx, "g")
	require.NoError(t, err)
	require.Equal(t, codec.GroupID(10), gid)

	require.NoError(t, b.Store.Put(ctx, codec.IndexZoneKey("z"), codec.EncodeInt32(11)))
	zid, err := b.GetZoneID(ctx, "z")
	require.NoError(t, err)
	require.Equal(t, codec.ZoneID(11), zid)
}

func TestGetLatestTagSchemaReturnsHighestVersion(t *testing.T) {
	b := newBase()
	ctx := context.Background()

	require.NoError(t, b.Store.Put(ctx, codec.SchemaTagKey(1, 1, 1), codec.SchemaVal(codec.Schema{Version: 1, Columns: []codec.ColumnDef{{Name: "name"}}})))
	require.NoError(t, b.Store.Put(ctx, codec.SchemaTagKey(1, 1, 2), codec.SchemaVal(codec.Schema{Version: 2, Columns: []codec.ColumnDef{{Name: "name"}, {Name: "age"}}})))

	schema, err := b.GetLatestTagSchema(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), schema.Version)
	require.Len(t, schema.Columns, 2)
}

func TestGetLatestTagSchemaMissingReturnsTagNotFound(t *testing.T) {
	b := newBase()
	_, err := b.GetLatestTagSchema(context.Background(), 1, 1)
	require.ErrorIs(t, err, metaerrors.ErrTagNotFound)
}

func TestCheckPasswordMatchesAndMismatches(t *testing.T) {
	b := newBase()
	ctx := context.Background()
	require.NoError(t, b.Store.Put(ctx, codec.UserKey("alice"), codec.UserVal("secret")))

	ok, err := b.CheckPassword(ctx, "alice", "secret")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.CheckPassword(ctx, "alice", "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = b.CheckPassword(ctx, "bob", "secret")
	require.ErrorIs(t, err, metaerrors.ErrUserNotFound)
}

func TestGetIndexesFiltersBySchemaKindAndID(t *testing.T) {
	b := newBase()
	ctx := context.Background()

	require.NoError(t, b.Store.Put(ctx, codec.IndexIndexKey(1, "by_name"), codec.EncodeInt32(1)))
	require.NoError(t, b.Store.Put(ctx, codec.IndexKey(1, 1), codec.IndexVal(codec.IndexItem{
		IndexID: 1, IndexName: "by_name", SchemaKind: codec.SchemaKindTag, SchemaID: 5,
		Fields: []codec.IndexFieldDef{{Name: "name"}},
	})))
	require.NoError(t, b.Store.Put(ctx, codec.IndexIndexKey(1, "by_other_tag"), codec.EncodeInt32(2)))
	require.NoError(t, b.Store.Put(ctx, codec.IndexKey(1, 2), codec.IndexVal(codec.IndexItem{
		IndexID: 2, IndexName: "by_other_tag", SchemaKind: codec.SchemaKindTag, SchemaID: 6,
		Fields: []codec.IndexFieldDef{{Name: "name"}},
	})))

	items, err := b.GetIndexes(ctx, 1, codec.SchemaKindTag, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "by_name", items[0].IndexName)
}

func TestListenerExistHoldsListenerLock(t *testing.T) {
	b := newBase()
	ctx := context.Background()

	ok, err := b.ListenerExist(ctx, 1, 0)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Store.Put(ctx, codec.ListenerKey(1, 0, codec.HostAddr{Host: "graph-1", Port: 9100}), []byte{}))
	ok, err = b.ListenerExist(ctx, 1, 0)
	require.NoError(t, err)
	require.True(t, ok)
}
