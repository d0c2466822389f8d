// Package processors implements the concrete request handlers exposed to
// RPC callers, composing the transaction-core components (C1-C9) into the
// operations spec §2 describes: space lifecycle, schema alteration, host
// listing, and backup.
package processors

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/graphmeta/internal/kvstore"
	"github.com/cubefs/graphmeta/internal/meta/codec"
	metaerrors "github.com/cubefs/graphmeta/internal/meta/errors"
	"github.com/cubefs/graphmeta/internal/meta/idalloc"
	"github.com/cubefs/graphmeta/internal/meta/lock"
	"github.com/cubefs/graphmeta/internal/meta/processor"
)

// SpaceProcessor handles CreateSpace/DropSpace.
type SpaceProcessor struct {
	base  *processor.Base
	ids   *idalloc.Allocator
	nowMs func() int64
}

func NewSpaceProcessor(base *processor.Base, ids *idalloc.Allocator, nowMs func() int64) *SpaceProcessor {
	return &SpaceProcessor{base: base, ids: ids, nowMs: nowMs}
}

// CreateSpaceRequest describes a new graph space.
type CreateSpaceRequest struct {
	Name          string
	PartitionNum  int32
	ReplicaFactor int32
	VidLen        int32
	IsIntID       bool
	// Hosts assigns each partition (1..PartitionNum) a replica set; callers
	// are expected to have already run placement (out of scope here).
	Hosts map[codec.PartitionID][]codec.HostAddr
}

// CreateSpace allocates a fresh space id, writes the space descriptor, the
// name index, and every partition-to-host assignment, and stamps
// lastUpdateTime. Fails with ErrSpaceExisted if the name is already taken.
func (p *SpaceProcessor) CreateSpace(ctx context.Context, req CreateSpaceRequest) (codec.GraphSpaceID, error) {
	unlock := p.base.Locks.Lock(lock.Space)
	defer unlock()

	if _, err := p.base.GetSpaceID(ctx, req.Name); err == nil {
		return 0, metaerrors.ErrSpaceExisted
	}

	id, err := p.ids.Next(ctx)
	if err != nil {
		return 0, err
	}

	desc := codec.SpaceDesc{
		Name:          req.Name,
		PartitionNum:  req.PartitionNum,
		ReplicaFactor: req.ReplicaFactor,
		VidLen:        req.VidLen,
		IsIntID:       req.IsIntID,
	}

	data := []kvstore.KV{
		{Key: codec.IndexSpaceKey(req.Name), Value: codec.EncodeInt32(id)},
		{Key: codec.SpaceKey(id), Value: codec.SpaceVal(desc)},
	}
	for partID, hostList := range req.Hosts {
		data = append(data, kvstore.KV{Key: codec.PartKey(id, partID), Value: codec.PartVal(hostList)})
	}

	if err := p.base.DoSyncPutAndUpdate(ctx, data, p.nowMs()); err != nil {
		return 0, err
	}
	return id, nil
}

// DropSpace removes a space and everything that references it: its
// partitions, role grants, listeners and statis record. ifExists turns a
// missing space into a silent success instead of ErrSpaceNotFound,
// matching DROP SPACE IF EXISTS.
func (p *SpaceProcessor) DropSpace(ctx context.Context, name string, ifExists bool) error {
	span := trace.SpanFromContextSafe(ctx)

	unlockSnapshot := p.base.Locks.RLock(lock.Snapshot)
	defer unlockSnapshot()
	unlockSpace := p.base.Locks.Lock(lock.Space)
	defer unlockSpace()

	id, err := p.base.GetSpaceID(ctx, name)
	if err != nil {
		if err == metaerrors.ErrSpaceNotFound && ifExists {
			return nil
		}
		return err
	}

	var deleteKeys [][]byte

	partKVs, err := p.base.Store.ScanKeyValues(ctx, codec.PartPrefix(id))
	if err != nil {
		return err
	}
	for _, kv := range partKVs {
		deleteKeys = append(deleteKeys, kv.Key)
	}

	deleteKeys = append(deleteKeys, codec.IndexSpaceKey(name), codec.SpaceKey(id))

	roleKVs, err := p.base.Store.ScanKeyValues(ctx, codec.RoleSpacePrefix(id))
	if err != nil {
		return err
	}
	for _, kv := range roleKVs {
		deleteKeys = append(deleteKeys, kv.Key)
	}

	lstKVs, err := p.base.Store.ScanKeyValues(ctx, codec.ListenerPrefix(id))
	if err != nil {
		return err
	}
	for _, kv := range lstKVs {
		deleteKeys = append(deleteKeys, kv.Key)
	}

	deleteKeys = append(deleteKeys, codec.StatisKey(id))

	if err := p.base.DoSyncMultiRemoveAndUpdate(ctx, deleteKeys, p.nowMs()); err != nil {
		return err
	}
	span.Infof("dropped space %q, id %d", name, id)
	return nil
}
