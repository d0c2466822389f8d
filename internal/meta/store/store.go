// Package store is the metadata service's synchronous KV facade (spec §4,
// component C1). Every metadata record lives in one reserved
// (spaceID, partitionID) pair of the underlying kvstore.Engine; this
// package turns that engine's asynchronous, callback-driven write API into
// plain blocking calls a processor can call without ever touching a
// channel itself.
//
// The original implementation parked the calling thread on a
// folly::Baton and posted to it from the engine's completion callback.
// Go has no direct Baton equivalent, so the wait is a channel of capacity
// one: the callback sends exactly once, the waiter receives exactly once,
// and a buffered channel never blocks the callback's goroutine even if the
// waiter has already given up (e.g. on context cancellation).
package store

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	metaerrors "github.com/cubefs/graphmeta/internal/meta/errors"
	"github.com/cubefs/graphmeta/internal/kvstore"
)

// ReservedSpaceID and ReservedPartitionID are the single (space, partition)
// pair the metadata service's own records live in. The engine may host many
// other spaces/partitions for user graph data; the metadata service never
// touches those.
const (
	ReservedSpaceID     uint32 = 0
	ReservedPartitionID uint32 = 0
)

// Store wraps a kvstore.Engine with blocking methods a processor can call
// directly. It holds no state of its own beyond the engine handle.
type Store struct {
	engine kvstore.Engine
}

func New(engine kvstore.Engine) *Store {
	return &Store{engine: engine}
}

func (s *Store) Engine() kvstore.Engine { return s.engine }

// oneshot waits for a kvstore.ResultCode delivered by an Async* callback,
// or for ctx to be done, whichever comes first.
func oneshot(ctx context.Context, run func(kvstore.PutCallback)) (kvstore.ResultCode, error) {
	done := make(chan kvstore.ResultCode, 1)
	run(func(code kvstore.ResultCode) { done <- code })

	select {
	case code := <-done:
		return code, nil
	case <-ctx.Done():
		return kvstore.ErrStoreFailure, ctx.Err()
	}
}

func translate(code kvstore.ResultCode) error {
	switch code {
	case kvstore.Succeeded:
		return nil
	case kvstore.ErrKeyNotFound:
		return metaerrors.ErrNotFound
	case kvstore.ErrLeaderChanged:
		return metaerrors.ErrLeaderChanged
	default:
		return metaerrors.ErrStoreFailure
	}
}

// Get reads a single key. Returns metaerrors.ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, code := s.engine.Get(ctx, ReservedSpaceID, ReservedPartitionID, key)
	if code != kvstore.Succeeded {
		return nil, translate(code)
	}
	return val, nil
}

// MultiGet reads several keys atomically with respect to the engine's own
// snapshot guarantees. Any single missing key fails the whole call, matching
// the original's all-or-nothing multiGet semantics.
func (s *Store) MultiGet(ctx context.Context, keys [][]byte) ([][]byte, error) {
	vals, code := s.engine.MultiGet(ctx, ReservedSpaceID, ReservedPartitionID, keys)
	if code != kvstore.Succeeded {
		return nil, translate(code)
	}
	return vals, nil
}

// Prefix returns an iterator over every key sharing prefix. The caller owns
// the returned iterator and must Close it.
func (s *Store) Prefix(ctx context.Context, prefix []byte) (kvstore.Iterator, error) {
	it, code := s.engine.Prefix(ctx, ReservedSpaceID, ReservedPartitionID, prefix)
	if code != kvstore.Succeeded {
		return nil, translate(code)
	}
	return it, nil
}

// Range returns an iterator over [start, end). An empty end means unbounded.
func (s *Store) Range(ctx context.Context, start, end []byte) (kvstore.Iterator, error) {
	it, code := s.engine.Range(ctx, ReservedSpaceID, ReservedPartitionID, start, end)
	if code != kvstore.Succeeded {
		return nil, translate(code)
	}
	return it, nil
}

// ScanValues drains a Prefix scan into a slice of values, closing the
// iterator before returning. Most lookup helpers only need the values, not
// a live iterator, so this is the common path.
func (s *Store) ScanValues(ctx context.Context, prefix []byte) ([][]byte, error) {
	span := trace.SpanFromContextSafe(ctx)
	it, err := s.Prefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out [][]byte
	for it.Valid() {
		v := make([]byte, len(it.Val()))
		copy(v, it.Val())
		out = append(out, v)
		it.Next()
	}
	span.Debugf("scanned %d values under prefix %q", len(out), prefix)
	return out, nil
}

// ScanKeyValues is ScanValues but also returns each entry's key.
func (s *Store) ScanKeyValues(ctx context.Context, prefix []byte) ([]kvstore.KV, error) {
	it, err := s.Prefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []kvstore.KV
	for it.Valid() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		v := make([]byte, len(it.Val()))
		copy(v, it.Val())
		out = append(out, kvstore.KV{Key: k, Value: v})
		it.Next()
	}
	return out, nil
}

// Put writes a single key/value pair and blocks until the write is durable.
func (s *Store) Put(ctx context.Context, key, val []byte) error {
	return s.MultiPut(ctx, []kvstore.KV{{Key: key, Value: val}})
}

// MultiPut writes a batch atomically and blocks until durable.
func (s *Store) MultiPut(ctx context.Context, kvs []kvstore.KV) error {
	code, err := oneshot(ctx, func(cb kvstore.PutCallback) {
		s.engine.AsyncMultiPut(ctx, ReservedSpaceID, ReservedPartitionID, kvs, cb)
	})
	if err != nil {
		return err
	}
	return translate(code)
}

// Remove deletes a single key and blocks until durable.
func (s *Store) Remove(ctx context.Context, key []byte) error {
	code, err := oneshot(ctx, func(cb kvstore.PutCallback) {
		s.engine.AsyncRemove(ctx, ReservedSpaceID, ReservedPartitionID, key, cb)
	})
	if err != nil {
		return err
	}
	return translate(code)
}

// MultiRemove deletes a batch of keys atomically and blocks until durable.
func (s *Store) MultiRemove(ctx context.Context, keys [][]byte) error {
	code, err := oneshot(ctx, func(cb kvstore.PutCallback) {
		s.engine.AsyncMultiRemove(ctx, ReservedSpaceID, ReservedPartitionID, keys, cb)
	})
	if err != nil {
		return err
	}
	return translate(code)
}

// RemoveRange deletes every key in [start, end) and blocks until durable.
func (s *Store) RemoveRange(ctx context.Context, start, end []byte) error {
	code, err := oneshot(ctx, func(cb kvstore.PutCallback) {
		s.engine.AsyncRemoveRange(ctx, ReservedSpaceID, ReservedPartitionID, start, end, cb)
	})
	if err != nil {
		return err
	}
	return translate(code)
}

// IsLeader reports whether the local process currently holds the raft
// leadership for the reserved partition. backup.Coordinator.CreateBackup
// checks it up front and fails fast with ErrLeaderChanged; the space and
// schema processors issue their writes without checking it.
func (s *Store) IsLeader() bool {
	return s.engine.IsLeader(ReservedSpaceID, ReservedPartitionID)
}
