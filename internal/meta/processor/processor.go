// Package processor holds the request-handling building blocks every
// concrete metadata operation composes: the synchronous read/write helpers
// over the KV facade (component C4), and the existence/lookup helpers used
// to validate a request before it touches storage (component C5).
//
// The original implementation expressed these as methods on a mutable
// BaseProcessor<RESP> that every concrete processor inherited from, with a
// one-shot completion hook (onFinished) fired from deep inside doPut/doRemove.
// That shape doesn't translate: Go has no class hierarchy to hang shared
// state on, and a processor that returns its response directly is easier to
// test than one that mutates a shared response object and separately
// signals completion. Every helper here instead returns (value, error) and
// lets the caller build its own response; nothing here ever panics or calls
// back into caller-owned state.
package processor

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/graphmeta/internal/kvstore"
	"github.com/cubefs/graphmeta/internal/meta/codec"
	metaerrors "github.com/cubefs/graphmeta/internal/meta/errors"
	"github.com/cubefs/graphmeta/internal/meta/lock"
	"github.com/cubefs/graphmeta/internal/meta/store"
)

// Base bundles the KV facade and the lock registry every concrete
// processor needs. Concrete processors embed *Base or hold one as a field;
// nothing here is mutated, so a single Base is safely shared across
// concurrently running processors.
type Base struct {
	Store *store.Store
	Locks *lock.Registry
}

func NewBase(s *store.Store, locks *lock.Registry) *Base {
	return &Base{Store: s, Locks: locks}
}

// DoPut writes data and returns the resulting error.
func (b *Base) DoPut(ctx context.Context, data []kvstore.KV) error {
	return b.Store.MultiPut(ctx, data)
}

// DoSyncPut keeps the original's name for recognizability; it behaves
// exactly like DoPut.
func (b *Base) DoSyncPut(ctx context.Context, data []kvstore.KV) error {
	return b.Store.MultiPut(ctx, data)
}

// DoSyncPutAndUpdate writes data, then stamps LastUpdateTimeKey with now.
// A failure stamping the update time is still reported even though the
// primary write already succeeded, matching the original's two-phase
// behavior.
func (b *Base) DoSyncPutAndUpdate(ctx context.Context, data []kvstore.KV, nowMillis int64) error {
	if err := b.Store.MultiPut(ctx, data); err != nil {
		return err
	}
	return b.Store.Put(ctx, codec.LastUpdateTimeKey, codec.EncodeInt64(nowMillis))
}

// DoSyncMultiRemoveAndUpdate removes keys, then stamps LastUpdateTimeKey.
func (b *Base) DoSyncMultiRemoveAndUpdate(ctx context.Context, keys [][]byte, nowMillis int64) error {
	if err := b.Store.MultiRemove(ctx, keys); err != nil {
		return err
	}
	return b.Store.Put(ctx, codec.LastUpdateTimeKey, codec.EncodeInt64(nowMillis))
}

func (b *Base) DoRemove(ctx context.Context, key []byte) error {
	return b.Store.Remove(ctx, key)
}

func (b *Base) DoMultiRemove(ctx context.Context, keys [][]byte) error {
	return b.Store.MultiRemove(ctx, keys)
}

func (b *Base) DoRemoveRange(ctx context.Context, start, end []byte) error {
	return b.Store.RemoveRange(ctx, start, end)
}

// DoScan returns the raw values found in [start, end).
func (b *Base) DoScan(ctx context.Context, start, end []byte) ([][]byte, error) {
	it, err := b.Store.Range(ctx, start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var vals [][]byte
	for it.Valid() {
		v := make([]byte, len(it.Val()))
		copy(v, it.Val())
		vals = append(vals, v)
		it.Next()
	}
	return vals, nil
}

// AllHosts enumerates every host registered under the host prefix.
func (b *Base) AllHosts(ctx context.Context) ([]codec.HostAddr, error) {
	kvs, err := b.Store.ScanKeyValues(ctx, codec.HostPrefix())
	if err != nil {
		return nil, err
	}
	hosts := make([]codec.HostAddr, 0, len(kvs))
	for _, kv := range kvs {
		addr, err := codec.ParseHostKey(kv.Key)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, addr)
	}
	return hosts, nil
}

// SpaceExist reports whether spaceID has a live space record. It holds the
// space lock as a reader for the duration of the lookup, matching the
// original's spaceLock() read-hold around spaceExist.
func (b *Base) SpaceExist(ctx context.Context, spaceID codec.GraphSpaceID) bool {
	unlock := b.Locks.RLock(lock.Space)
	defer unlock()

	_, err := b.Store.Get(ctx, codec.SpaceKey(spaceID))
	return err == nil
}

func (b *Base) UserExist(ctx context.Context, account string) bool {
	_, err := b.Store.Get(ctx, codec.UserKey(account))
	return err == nil
}

func (b *Base) HostExist(ctx context.Context, addr codec.HostAddr) bool {
	_, err := b.Store.Get(ctx, codec.HostKey(addr))
	return err == nil
}

// GetSpaceID resolves a space name to its id, or metaerrors.ErrSpaceNotFound.
func (b *Base) GetSpaceID(ctx context.Context, name string) (codec.GraphSpaceID, error) {
	val, err := b.Store.Get(ctx, codec.IndexSpaceKey(name))
	if err != nil {
		return 0, notFoundAs(err, metaerrors.ErrSpaceNotFound)
	}
	return codec.DecodeInt32(val)
}

func (b *Base) GetTagID(ctx context.Context, spaceID codec.GraphSpaceID, name string) (codec.TagID, error) {
	val, err := b.Store.Get(ctx, codec.IndexTagKey(spaceID, name))
	if err != nil {
		return 0, notFoundAs(err, metaerrors.ErrTagNotFound)
	}
	return codec.DecodeInt32(val)
}

func (b *Base) GetEdgeType(ctx context.Context, spaceID codec.GraphSpaceID, name string) (codec.EdgeType, error) {
	val, err := b.Store.Get(ctx, codec.IndexEdgeKey(spaceID, name))
	if err != nil {
		return 0, notFoundAs(err, metaerrors.ErrEdgeNotFound)
	}
	return codec.DecodeInt32(val)
}

func (b *Base) GetIndexID(ctx context.Context, spaceID codec.GraphSpaceID, name string) (codec.IndexID, error) {
	val, err := b.Store.Get(ctx, codec.IndexIndexKey(spaceID, name))
	if err != nil {
		return 0, notFoundAs(err, metaerrors.ErrIndexNotFound)
	}
	return codec.DecodeInt32(val)
}

func (b *Base) GetGroupID(ctx context.Context, name string) (codec.GroupID, error) {
	val, err := b.Store.Get(ctx, codec.IndexGroupKey(name))
	if err != nil {
		return 0, notFoundAs(err, metaerrors.ErrGroupNotFound)
	}
	return codec.DecodeInt32(val)
}

func (b *Base) GetZoneID(ctx context.Context, name string) (codec.ZoneID, error) {
	val, err := b.Store.Get(ctx, codec.IndexZoneKey(name))
	if err != nil {
		return 0, notFoundAs(err, metaerrors.ErrZoneNotFound)
	}
	return codec.DecodeInt32(val)
}

// GetLatestTagSchema returns the highest-versioned schema record for tagID,
// relying on SchemaTagKey's version-descending encoding to put it first in
// a prefix scan.
func (b *Base) GetLatestTagSchema(ctx context.Context, spaceID codec.GraphSpaceID, tagID codec.TagID) (codec.Schema, error) {
	span := trace.SpanFromContextSafe(ctx)
	it, err := b.Store.Prefix(ctx, codec.SchemaTagPrefix(spaceID, tagID))
	if err != nil {
		span.Errorf("tag schema prefix failed for tag %d: %v", tagID, err)
		return codec.Schema{}, err
	}
	defer it.Close()

	if !it.Valid() {
		return codec.Schema{}, metaerrors.ErrTagNotFound
	}
	return codec.ParseSchema(it.Val())
}

func (b *Base) GetLatestEdgeSchema(ctx context.Context, spaceID codec.GraphSpaceID, edgeType codec.EdgeType) (codec.Schema, error) {
	span := trace.SpanFromContextSafe(ctx)
	it, err := b.Store.Prefix(ctx, codec.SchemaEdgePrefix(spaceID, edgeType))
	if err != nil {
		span.Errorf("edge schema prefix failed for edge type %d: %v", edgeType, err)
		return codec.Schema{}, err
	}
	defer it.Close()

	if !it.Valid() {
		return codec.Schema{}, metaerrors.ErrEdgeNotFound
	}
	return codec.ParseSchema(it.Val())
}

// CheckPassword reports whether password matches the stored hash for
// account. Returns metaerrors.ErrUserNotFound if the account doesn't exist.
func (b *Base) CheckPassword(ctx context.Context, account, password string) (bool, error) {
	val, err := b.Store.Get(ctx, codec.UserKey(account))
	if err != nil {
		return false, notFoundAs(err, metaerrors.ErrUserNotFound)
	}
	return codec.ParseUserPwd(val) == password, nil
}

// GetIndexes returns every index defined over tagOrEdge within spaceID.
func (b *Base) GetIndexes(ctx context.Context, spaceID codec.GraphSpaceID, kind codec.SchemaKind, tagOrEdge int32) ([]codec.IndexItem, error) {
	vals, err := b.Store.ScanValues(ctx, codec.IndexPrefix(spaceID))
	if err != nil {
		return nil, err
	}
	var items []codec.IndexItem
	for _, v := range vals {
		item, err := codec.ParseIndex(v)
		if err != nil {
			return nil, err
		}
		if item.SchemaKind == kind && item.SchemaID == tagOrEdge {
			items = append(items, item)
		}
	}
	return items, nil
}

// ListenerExist reports whether any listener of listenerType is registered
// for space. Holds the listener lock as a reader.
func (b *Base) ListenerExist(ctx context.Context, spaceID codec.GraphSpaceID, listenerType int32) (bool, error) {
	unlock := b.Locks.RLock(lock.Listener)
	defer unlock()

	it, err := b.Store.Prefix(ctx, codec.ListenerPrefix(spaceID, listenerType))
	if err != nil {
		return false, err
	}
	defer it.Close()
	return it.Valid(), nil
}

// notFoundAs remaps a store-level ErrNotFound into a domain-specific
// not-found sentinel; any other error passes through unchanged.
func notFoundAs(err error, domainErr error) error {
	if err == metaerrors.ErrNotFound {
		return domainErr
	}
	return err
}
