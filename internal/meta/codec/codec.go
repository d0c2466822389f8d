// Package codec implements the metadata key/value layout (spec §3, §6).
// Every function here is pure: no I/O, no locking. Numeric fields are
// fixed-width little-endian, matching the original implementation's
// reinterpret_cast-based layout bit-for-bit, because two independent meta
// server instances in the same Raft group share this storage.
//
// Decoding never reinterprets a raw pointer: every reader checks the
// buffer is at least as long as the field it decodes and returns an error
// otherwise (spec §9, "reinterpret-cast decoding" redesign note).
package codec

import (
	"encoding/binary"
	"errors"
)

var ErrShortBuffer = errors.New("codec: buffer too short to decode field")

// Reserved / well-known keys and prefixes.
var (
	spacesPrefix       = []byte("__spaces__")
	indexSpacePrefix   = []byte("__index_space__")
	partPrefixBytes    = []byte("__parts__")
	hostPrefixBytes    = []byte("__hosts__")
	leaderPrefixBytes  = []byte("__leaders__")
	indexTagPrefix     = []byte("__index_tag__")
	indexEdgePrefix    = []byte("__index_edge__")
	schemaTagPrefixB   = []byte("__schema_tag__")
	schemaEdgePrefixB  = []byte("__schema_edge__")
	indexIndexPrefix   = []byte("__index_index__")
	indexPrefixBytes   = []byte("__indexes__")
	userPrefixBytes    = []byte("__users__")
	rolePrefixBytes    = []byte("__roles__")
	listenerPrefixByte = []byte("__listener__")
	groupIndexPrefix   = []byte("__index_group__")
	zoneIndexPrefix    = []byte("__index_zone__")
	snapshotPrefixByte = []byte("__snapshots__")
	statisPrefixBytes  = []byte("__statis__")
	rebuildIdxPrefix   = []byte("__rebuild_index_status__")

	// IDKey holds the auto-incrementing allocator counter.
	IDKey = []byte("__id__")
	// LastUpdateTimeKey holds the monotonic last-update timestamp.
	LastUpdateTimeKey = []byte("__last_update_time__")
)

func putInt32(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) }

func getInt32(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, ErrShortBuffer
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func getInt64(b []byte) (int64, error) {
	if len(b) < 8 {
		return 0, ErrShortBuffer
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func appendInt32(dst []byte, v int32) []byte {
	var buf [4]byte
	putInt32(buf[:], v)
	return append(dst, buf[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return append(dst, buf[:]...)
}

// --- Space -----------------------------------------------------------

func SpacePrefix() []byte { return append([]byte(nil), spacesPrefix...) }

func SpaceKey(spaceID GraphSpaceID) []byte {
	return appendInt32(append([]byte(nil), spacesPrefix...), spaceID)
}

func SpaceID(key []byte) (GraphSpaceID, error) {
	return getInt32(key[len(spacesPrefix):])
}

func IndexSpaceKey(name string) []byte {
	return append(append([]byte(nil), indexSpacePrefix...), name...)
}

// EncodeInt32 / DecodeInt32 are exported for values that are a bare int32,
// such as the space-id pointed to by IndexSpaceKey or the tag/edge/index id
// pointed to by their respective index keys.
func EncodeInt32(v int32) []byte { return appendInt32(nil, v) }

func DecodeInt32(b []byte) (int32, error) { return getInt32(b) }

func EncodeInt64(v int64) []byte { return appendInt64(nil, v) }

func DecodeInt64(b []byte) (int64, error) { return getInt64(b) }

func SpaceVal(d SpaceDesc) []byte {
	buf := appendInt32(nil, d.PartitionNum)
	buf = appendInt32(buf, d.ReplicaFactor)
	buf = appendInt32(buf, d.VidLen)
	if d.IsIntID {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, []byte(d.Name)...)
	return buf
}

func ParseSpaceVal(b []byte) (SpaceDesc, error) {
	if len(b) < 13 {
		return SpaceDesc{}, ErrShortBuffer
	}
	partNum, _ := getInt32(b[0:4])
	replica, _ := getInt32(b[4:8])
	vidLen, _ := getInt32(b[8:12])
	return SpaceDesc{
		PartitionNum:  partNum,
		ReplicaFactor: replica,
		VidLen:        vidLen,
		IsIntID:       b[12] == 1,
		Name:          string(b[13:]),
	}, nil
}

// --- Part --------------------------------------------------------------

// AllPartsPrefix matches every part record regardless of space, used when
// scanning partition-to-host assignments across the whole cluster.
func AllPartsPrefix() []byte { return append([]byte(nil), partPrefixBytes...) }

func PartPrefix(spaceID GraphSpaceID) []byte {
	return appendInt32(append([]byte(nil), partPrefixBytes...), spaceID)
}

func PartKey(spaceID GraphSpaceID, partID PartitionID) []byte {
	buf := appendInt32(append([]byte(nil), partPrefixBytes...), spaceID)
	return appendInt32(buf, partID)
}

func PartKeySpaceID(key []byte) (GraphSpaceID, error) {
	return getInt32(key[len(partPrefixBytes):])
}

func PartKeyPartID(key []byte) (PartitionID, error) {
	return getInt32(key[len(partPrefixBytes)+4:])
}

func PartVal(hosts []HostAddr) []byte {
	buf := appendInt32(nil, int32(len(hosts)))
	for _, h := range hosts {
		buf = appendInt32(buf, int32(len(h.Host)))
		buf = append(buf, h.Host...)
		buf = appendInt32(buf, h.Port)
	}
	return buf
}

func ParsePartVal(b []byte) ([]HostAddr, error) {
	n, err := getInt32(b)
	if err != nil {
		return nil, err
	}
	b = b[4:]
	hosts := make([]HostAddr, 0, n)
	for i := int32(0); i < n; i++ {
		l, err := getInt32(b)
		if err != nil {
			return nil, err
		}
		b = b[4:]
		if int32(len(b)) < l {
			return nil, ErrShortBuffer
		}
		host := string(b[:l])
		b = b[l:]
		port, err := getInt32(b)
		if err != nil {
			return nil, err
		}
		b = b[4:]
		hosts = append(hosts, HostAddr{Host: host, Port: port})
	}
	return hosts, nil
}

// --- Host ----------------------------------------------------------------

func HostPrefix() []byte { return append([]byte(nil), hostPrefixBytes...) }

func HostKey(addr HostAddr) []byte {
	buf := append([]byte(nil), hostPrefixBytes...)
	buf = appendInt32(buf, int32(len(addr.Host)))
	buf = append(buf, addr.Host...)
	return appendInt32(buf, addr.Port)
}

func ParseHostKey(key []byte) (HostAddr, error) {
	b := key[len(hostPrefixBytes):]
	l, err := getInt32(b)
	if err != nil {
		return HostAddr{}, err
	}
	b = b[4:]
	if int32(len(b)) < l+4 {
		return HostAddr{}, ErrShortBuffer
	}
	host := string(b[:l])
	port, _ := getInt32(b[l:])
	return HostAddr{Host: host, Port: port}, nil
}

func HostVal(info HostInfo) []byte {
	buf := appendInt32(nil, int32(info.Role))
	buf = appendInt64(buf, info.LastHeartbeatMs)
	buf = append(buf, []byte(info.GitInfoSHA)...)
	return buf
}

func ParseHostVal(b []byte) (HostInfo, error) {
	if len(b) < 12 {
		return HostInfo{}, ErrShortBuffer
	}
	role, _ := getInt32(b[0:4])
	hb, _ := getInt64(b[4:12])
	return HostInfo{Role: HostRole(role), LastHeartbeatMs: hb, GitInfoSHA: string(b[12:])}, nil
}

// --- Leader ----------------------------------------------------------

func LeaderPrefix() []byte { return append([]byte(nil), leaderPrefixBytes...) }

func LeaderKey(spaceID GraphSpaceID, partID PartitionID) []byte {
	buf := appendInt32(append([]byte(nil), leaderPrefixBytes...), spaceID)
	return appendInt32(buf, partID)
}

func ParseLeaderKey(key []byte) (GraphSpaceID, PartitionID, error) {
	b := key[len(leaderPrefixBytes):]
	spaceID, err := getInt32(b)
	if err != nil {
		return 0, 0, err
	}
	partID, err := getInt32(b[4:])
	return spaceID, partID, err
}

func LeaderVal(info LeaderInfo) []byte {
	buf := appendInt32(nil, int32(len(info.Host.Host)))
	buf = append(buf, info.Host.Host...)
	buf = appendInt32(buf, info.Host.Port)
	buf = appendInt64(buf, info.Term)
	buf = appendInt32(buf, info.ErrCode)
	return buf
}

func ParseLeaderVal(b []byte) (LeaderInfo, error) {
	l, err := getInt32(b)
	if err != nil {
		return LeaderInfo{}, err
	}
	b = b[4:]
	if int32(len(b)) < l {
		return LeaderInfo{}, ErrShortBuffer
	}
	host := string(b[:l])
	b = b[l:]
	port, err := getInt32(b)
	if err != nil {
		return LeaderInfo{}, err
	}
	b = b[4:]
	term, err := getInt64(b)
	if err != nil {
		return LeaderInfo{}, err
	}
	b = b[8:]
	errCode, err := getInt32(b)
	if err != nil {
		return LeaderInfo{}, err
	}
	return LeaderInfo{Host: HostAddr{Host: host, Port: port}, Term: term, ErrCode: errCode}, nil
}

// --- Tag / Edge index pointers and schema versions ------------------------

func IndexTagKey(spaceID GraphSpaceID, name string) []byte {
	buf := appendInt32(append([]byte(nil), indexTagPrefix...), spaceID)
	return append(buf, name...)
}

func IndexEdgeKey(spaceID GraphSpaceID, name string) []byte {
	buf := appendInt32(append([]byte(nil), indexEdgePrefix...), spaceID)
	return append(buf, name...)
}

// SchemaTagPrefix/SchemaEdgePrefix are ordered so that a prefix scan
// enumerates the highest schema version first: the version is stored as
// its bitwise complement in big-endian byte order (unlike the little-endian
// id fields), so ascending byte order is descending version order
// (invariant #2, spec §3).
func SchemaTagPrefix(spaceID GraphSpaceID, tagID TagID) []byte {
	buf := appendInt32(append([]byte(nil), schemaTagPrefixB...), spaceID)
	return appendInt32(buf, tagID)
}

// appendVersionDesc appends ^version as 8 big-endian bytes.
func appendVersionDesc(dst []byte, version int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(^version))
	return append(dst, buf[:]...)
}

func SchemaTagKey(spaceID GraphSpaceID, tagID TagID, version int64) []byte {
	buf := SchemaTagPrefix(spaceID, tagID)
	return appendVersionDesc(buf, version)
}

func SchemaEdgePrefix(spaceID GraphSpaceID, edgeType EdgeType) []byte {
	buf := appendInt32(append([]byte(nil), schemaEdgePrefixB...), spaceID)
	return appendInt32(buf, edgeType)
}

func SchemaEdgeKey(spaceID GraphSpaceID, edgeType EdgeType, version int64) []byte {
	buf := SchemaEdgePrefix(spaceID, edgeType)
	return appendVersionDesc(buf, version)
}

func SchemaVal(s Schema) []byte {
	buf := appendInt64(nil, s.Version)
	buf = appendInt32(buf, int32(len(s.Columns)))
	for _, c := range s.Columns {
		buf = appendInt32(buf, int32(len(c.Name)))
		buf = append(buf, c.Name...)
		buf = appendInt32(buf, int32(len(c.Type)))
		buf = append(buf, c.Type...)
		if c.Nullable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func ParseSchema(b []byte) (Schema, error) {
	version, err := getInt64(b)
	if err != nil {
		return Schema{}, err
	}
	b = b[8:]
	n, err := getInt32(b)
	if err != nil {
		return Schema{}, err
	}
	b = b[4:]
	cols := make([]ColumnDef, 0, n)
	for i := int32(0); i < n; i++ {
		nameLen, err := getInt32(b)
		if err != nil {
			return Schema{}, err
		}
		b = b[4:]
		if int32(len(b)) < nameLen {
			return Schema{}, ErrShortBuffer
		}
		name := string(b[:nameLen])
		b = b[nameLen:]
		typeLen, err := getInt32(b)
		if err != nil {
			return Schema{}, err
		}
		b = b[4:]
		if int32(len(b)) < typeLen+1 {
			return Schema{}, ErrShortBuffer
		}
		typ := string(b[:typeLen])
		b = b[typeLen:]
		nullable := b[0] == 1
		b = b[1:]
		cols = append(cols, ColumnDef{Name: name, Type: typ, Nullable: nullable})
	}
	return Schema{Version: version, Columns: cols}, nil
}

// --- Index -----------------------------------------------------------

func IndexIndexKey(spaceID GraphSpaceID, name string) []byte {
	buf := appendInt32(append([]byte(nil), indexIndexPrefix...), spaceID)
	return append(buf, name...)
}

func IndexPrefix(spaceID GraphSpaceID) []byte {
	return appendInt32(append([]byte(nil), indexPrefixBytes...), spaceID)
}

func IndexKey(spaceID GraphSpaceID, indexID IndexID) []byte {
	buf := IndexPrefix(spaceID)
	return appendInt32(buf, indexID)
}

func IndexVal(item IndexItem) []byte {
	buf := appendInt32(nil, item.IndexID)
	buf = appendInt32(buf, int32(len(item.IndexName)))
	buf = append(buf, item.IndexName...)
	buf = appendInt32(buf, int32(item.SchemaKind))
	buf = appendInt32(buf, item.SchemaID)
	buf = appendInt32(buf, int32(len(item.Fields)))
	for _, f := range item.Fields {
		buf = appendInt32(buf, int32(len(f.Name)))
		buf = append(buf, f.Name...)
		if f.Nullable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func ParseIndex(b []byte) (IndexItem, error) {
	id, err := getInt32(b)
	if err != nil {
		return IndexItem{}, err
	}
	b = b[4:]
	nameLen, err := getInt32(b)
	if err != nil {
		return IndexItem{}, err
	}
	b = b[4:]
	if int32(len(b)) < nameLen {
		return IndexItem{}, ErrShortBuffer
	}
	name := string(b[:nameLen])
	b = b[nameLen:]
	kind, err := getInt32(b)
	if err != nil {
		return IndexItem{}, err
	}
	b = b[4:]
	schemaID, err := getInt32(b)
	if err != nil {
		return IndexItem{}, err
	}
	b = b[4:]
	n, err := getInt32(b)
	if err != nil {
		return IndexItem{}, err
	}
	b = b[4:]
	fields := make([]IndexFieldDef, 0, n)
	for i := int32(0); i < n; i++ {
		fl, err := getInt32(b)
		if err != nil {
			return IndexItem{}, err
		}
		b = b[4:]
		if int32(len(b)) < fl+1 {
			return IndexItem{}, ErrShortBuffer
		}
		fname := string(b[:fl])
		b = b[fl:]
		nullable := b[0] == 1
		b = b[1:]
		fields = append(fields, IndexFieldDef{Name: fname, Nullable: nullable})
	}
	return IndexItem{
		IndexID:    id,
		IndexName:  name,
		SchemaKind: SchemaKind(kind),
		SchemaID:   schemaID,
		Fields:     fields,
	}, nil
}

// --- User / Role ------------------------------------------------------

func UserKey(account string) []byte {
	return append(append([]byte(nil), userPrefixBytes...), account...)
}

func UserVal(passwordHash string) []byte { return []byte(passwordHash) }

func ParseUserPwd(b []byte) string { return string(b) }

func RoleSpacePrefix(spaceID GraphSpaceID) []byte {
	return appendInt32(append([]byte(nil), rolePrefixBytes...), spaceID)
}

func RoleKey(spaceID GraphSpaceID, account string) []byte {
	buf := RoleSpacePrefix(spaceID)
	return append(buf, account...)
}

// --- Listener ----------------------------------------------------------

func ListenerPrefix(spaceID GraphSpaceID, listenerType ...int32) []byte {
	buf := appendInt32(append([]byte(nil), listenerPrefixByte...), spaceID)
	if len(listenerType) > 0 {
		buf = appendInt32(buf, listenerType[0])
	}
	return buf
}

func ListenerKey(spaceID GraphSpaceID, listenerType int32, addr HostAddr) []byte {
	buf := ListenerPrefix(spaceID, listenerType)
	buf = appendInt32(buf, int32(len(addr.Host)))
	buf = append(buf, addr.Host...)
	return appendInt32(buf, addr.Port)
}

// --- Group / Zone ------------------------------------------------------

func IndexGroupKey(name string) []byte {
	return append(append([]byte(nil), groupIndexPrefix...), name...)
}

func IndexZoneKey(name string) []byte {
	return append(append([]byte(nil), zoneIndexPrefix...), name...)
}

// --- Snapshot ----------------------------------------------------------

func SnapshotPrefix() []byte { return append([]byte(nil), snapshotPrefixByte...) }

func SnapshotKey(name string) []byte {
	return append(append([]byte(nil), snapshotPrefixByte...), name...)
}

func SnapshotVal(status SnapshotStatus, hosts []HostAddr) []byte {
	buf := appendInt32(nil, int32(status))
	buf = appendInt32(buf, int32(len(hosts)))
	for _, h := range hosts {
		buf = appendInt32(buf, int32(len(h.Host)))
		buf = append(buf, h.Host...)
		buf = appendInt32(buf, h.Port)
	}
	return buf
}

func ParseSnapshotVal(b []byte) (SnapshotRecord, error) {
	status, err := getInt32(b)
	if err != nil {
		return SnapshotRecord{}, err
	}
	b = b[4:]
	n, err := getInt32(b)
	if err != nil {
		return SnapshotRecord{}, err
	}
	b = b[4:]
	hosts := make([]HostAddr, 0, n)
	for i := int32(0); i < n; i++ {
		l, err := getInt32(b)
		if err != nil {
			return SnapshotRecord{}, err
		}
		b = b[4:]
		if int32(len(b)) < l+4 {
			return SnapshotRecord{}, ErrShortBuffer
		}
		host := string(b[:l])
		b = b[l:]
		port, _ := getInt32(b)
		b = b[4:]
		hosts = append(hosts, HostAddr{Host: host, Port: port})
	}
	return SnapshotRecord{Status: SnapshotStatus(status), Hosts: hosts}, nil
}

// --- Statis / rebuild-index status / misc prefixes ------------------------

func StatisKey(spaceID GraphSpaceID) []byte {
	return appendInt32(append([]byte(nil), statisPrefixBytes...), spaceID)
}

func RebuildIndexStatusPrefix() []byte {
	return append([]byte(nil), rebuildIdxPrefix...)
}
