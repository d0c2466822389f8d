package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpaceValRoundTrip(t *testing.T) {
	d := SpaceDesc{Name: "graph1", PartitionNum: 8, ReplicaFactor: 3, VidLen: 16, IsIntID: true}
	got, err := ParseSpaceVal(SpaceVal(d))
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestSpaceValShortBuffer(t *testing.T) {
	_, err := ParseSpaceVal([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestPartValRoundTrip(t *testing.T) {
	hosts := []HostAddr{{Host: "10.0.0.1", Port: 9500}, {Host: "10.0.0.2", Port: 9501}}
	got, err := ParsePartVal(PartVal(hosts))
	require.NoError(t, err)
	require.Equal(t, hosts, got)
}

func TestPartKeySpaceAndPartID(t *testing.T) {
	key := PartKey(7, 3)
	spaceID, err := PartKeySpaceID(key)
	require.NoError(t, err)
	require.Equal(t, GraphSpaceID(7), spaceID)

	partID, err := PartKeyPartID(key)
	require.NoError(t, err)
	require.Equal(t, PartitionID(3), partID)
}

func TestHostKeyValRoundTrip(t *testing.T) {
	addr := HostAddr{Host: "host-a", Port: 1234}
	key := HostKey(addr)
	got, err := ParseHostKey(key)
	require.NoError(t, err)
	require.Equal(t, addr, got)

	info := HostInfo{Role: RoleStorage, LastHeartbeatMs: 1690000000000, GitInfoSHA: "deadbeef"}
	gotInfo, err := ParseHostVal(HostVal(info))
	require.NoError(t, err)
	require.Equal(t, info, gotInfo)
}

func TestLeaderKeyValRoundTrip(t *testing.T) {
	key := LeaderKey(4, 2)
	spaceID, partID, err := ParseLeaderKey(key)
	require.NoError(t, err)
	require.Equal(t, GraphSpaceID(4), spaceID)
	require.Equal(t, PartitionID(2), partID)

	info := LeaderInfo{Host: HostAddr{Host: "leader-host", Port: 9500}, Term: 42, ErrCode: 0}
	got, err := ParseLeaderVal(LeaderVal(info))
	require.NoError(t, err)
	require.Equal(t, info, got)
}

func TestSchemaValRoundTrip(t *testing.T) {
	s := Schema{Version: 3, Columns: []ColumnDef{
		{Name: "name", Type: "string", Nullable: false},
		{Name: "age", Type: "int", Nullable: true},
	}}
	got, err := ParseSchema(SchemaVal(s))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

// SchemaTagKey stores the schema version as its bitwise complement so that
// ascending key order enumerates descending version order: a prefix scan
// for the latest schema must see the highest version first.
func TestSchemaTagKeyDescendingVersionOrder(t *testing.T) {
	k1 := SchemaTagKey(1, 5, 1)
	k2 := SchemaTagKey(1, 5, 2)
	k3 := SchemaTagKey(1, 5, 3)

	require.True(t, string(k3) < string(k2))
	require.True(t, string(k2) < string(k1))
	require.True(t, string(SchemaTagKey(1, 5, 256)) < string(SchemaTagKey(1, 5, 255)))
}

func TestIndexValRoundTrip(t *testing.T) {
	item := IndexItem{
		IndexID:    9,
		IndexName:  "by_name",
		SchemaKind: SchemaKindTag,
		SchemaID:   5,
		Fields:     []IndexFieldDef{{Name: "name", Nullable: false}, {Name: "age", Nullable: true}},
	}
	got, err := ParseIndex(IndexVal(item))
	require.NoError(t, err)
	require.Equal(t, item, got)
}

func TestSnapshotValRoundTrip(t *testing.T) {
	rec := SnapshotRecord{Status: SnapshotValid, Hosts: []HostAddr{{Host: "h1", Port: 1}, {Host: "h2", Port: 2}}}
	got, err := ParseSnapshotVal(SnapshotVal(rec.Status, rec.Hosts))
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestEncodeDecodeInt32Int64(t *testing.T) {
	v32, err := DecodeInt32(EncodeInt32(-7))
	require.NoError(t, err)
	require.Equal(t, int32(-7), v32)

	v64, err := DecodeInt64(EncodeInt64(1<<40 + 1))
	require.NoError(t, err)
	require.Equal(t, int64(1<<40+1), v64)

	_, err = DecodeInt32([]byte{1, 2})
	require.ErrorIs(t, err, ErrShortBuffer)
}
