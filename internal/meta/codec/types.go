package codec

// GraphSpaceID, PartitionID and friends follow the original wire layout:
// every identifier is a raw little-endian int32, appended straight after a
// textual key prefix with no length delimiter.
type (
	GraphSpaceID = int32
	PartitionID  = int32
	TagID        = int32
	EdgeType     = int32
	IndexID      = int32
	GroupID      = int32
	ZoneID       = int32
	TermID       = int64
)

// HostRole enumerates the kind of process registered under a host key.
type HostRole int32

const (
	RoleUnknown HostRole = iota
	RoleGraph
	RoleMeta
	RoleStorage
)

// HostAddr identifies a process by host:port.
type HostAddr struct {
	Host string
	Port int32
}

// SpaceDesc is the value stored under SpaceKey.
type SpaceDesc struct {
	Name          string
	PartitionNum  int32
	ReplicaFactor int32
	VidLen        int32
	IsIntID       bool
}

// HostInfo is the value stored under HostKey.
type HostInfo struct {
	Role            HostRole
	LastHeartbeatMs int64
	GitInfoSHA      string
}

// LeaderInfo is the value stored under LeaderKey.
type LeaderInfo struct {
	Host    HostAddr
	Term    TermID
	ErrCode int32
}

// ColumnDef describes one field of a tag/edge schema.
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
}

// Schema is one versioned tag/edge schema record.
type Schema struct {
	Version int64
	Columns []ColumnDef
}

// SchemaKind distinguishes the owner of an index: a tag or an edge type.
type SchemaKind int32

const (
	SchemaKindTag SchemaKind = iota
	SchemaKindEdge
)

// IndexFieldDef is one column participating in an index's ordered key.
type IndexFieldDef struct {
	Name     string
	Nullable bool
}

// IndexItem is the value stored under an index record (enumerated via
// IndexPrefix, looked up by id via IndexIndexKey -> IndexID -> this).
type IndexItem struct {
	IndexID    IndexID
	IndexName  string
	SchemaKind SchemaKind
	SchemaID   int32 // TagID or EdgeType, depending on SchemaKind
	Fields     []IndexFieldDef
}

// SnapshotStatus is the two-state lifecycle of a snapshot record.
type SnapshotStatus int32

const (
	SnapshotInvalid SnapshotStatus = iota
	SnapshotValid
)

// SnapshotRecord is the value stored under SnapshotKey.
type SnapshotRecord struct {
	Status SnapshotStatus
	Hosts  []HostAddr
}

// AlterSchemaOp enumerates the kinds of schema ALTER operations relevant to
// index consistency checking.
type AlterSchemaOp int32

const (
	AlterAdd AlterSchemaOp = iota
	AlterChange
	AlterDrop
)

// AlterSchemaItem is one ALTER TAG/EDGE clause.
type AlterSchemaItem struct {
	Op      AlterSchemaOp
	Columns []ColumnDef
}
