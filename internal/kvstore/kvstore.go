// Package kvstore pins down the external contract of the replicated
// key-value engine the metadata service is built on. The engine's own
// implementation (RocksDB storage, Raft replication) is out of scope: this
// package only describes the shape a caller may rely on, plus a reference
// in-memory Engine used by tests.
package kvstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ResultCode mirrors the small set of engine-level outcomes the metadata
// service distinguishes between. Everything that isn't one of the named
// codes collapses to ErrStoreFailure at the call site.
type ResultCode int

const (
	Succeeded ResultCode = iota
	ErrKeyNotFound
	ErrLeaderChanged
	ErrStoreFailure
)

var (
	ErrNotFound      = errors.New("kvstore: key not found")
	ErrLeaderMoved   = errors.New("kvstore: leader changed")
	ErrEngineFailure = errors.New("kvstore: store failure")
)

// KV is a single key/value pair, used by the batched write calls.
type KV struct {
	Key   []byte
	Value []byte
}

// PutCallback is invoked exactly once, on an engine-owned goroutine, when an
// asynchronous write completes.
type PutCallback func(code ResultCode)

// Iterator is the borrowed view returned by Prefix/Range. Its Key/Val are
// only valid until the next call to Next or to Close; callers that need to
// retain data past that point must copy it.
type Iterator interface {
	Valid() bool
	Key() []byte
	Val() []byte
	Next()
	Close()
}

// Part exposes the Raft peer list for a partition, used by host-listing
// logic to synthesize META role entries.
type Part interface {
	Peers() []string
}

// Engine is the asynchronous KV engine the metadata service's KV facade
// (internal/meta/store) wraps into synchronous calls. Every Async* method
// must invoke its callback exactly once.
type Engine interface {
	Get(ctx context.Context, spaceID, partID uint32, key []byte) (val []byte, code ResultCode)
	MultiGet(ctx context.Context, spaceID, partID uint32, keys [][]byte) (vals [][]byte, code ResultCode)
	Prefix(ctx context.Context, spaceID, partID uint32, prefix []byte) (Iterator, ResultCode)
	Range(ctx context.Context, spaceID, partID uint32, start, end []byte) (Iterator, ResultCode)

	AsyncMultiPut(ctx context.Context, spaceID, partID uint32, kvs []KV, cb PutCallback)
	AsyncRemove(ctx context.Context, spaceID, partID uint32, key []byte, cb PutCallback)
	AsyncMultiRemove(ctx context.Context, spaceID, partID uint32, keys [][]byte, cb PutCallback)
	AsyncRemoveRange(ctx context.Context, spaceID, partID uint32, start, end []byte, cb PutCallback)

	Part(spaceID, partID uint32) (Part, error)
	IsLeader(spaceID, partID uint32) bool
}

// memPart is a static peer list used by the in-memory reference Engine.
type memPart struct{ peers []string }

func (p *memPart) Peers() []string { return p.peers }

// MemEngine is a single-process, map-backed Engine used by unit tests and
// local development. Writes complete synchronously but still go through the
// callback contract so callers exercise the exact same code path they would
// against a real Raft-backed engine.
type MemEngine struct {
	mu       sync.RWMutex
	spaces   map[uint64]map[string][]byte // (spaceID<<32|partID) -> key -> value
	peers    []string
	isLeader bool
}

// NewMemEngine returns a MemEngine that reports itself as leader of every
// partition and exposes the given Raft peer addresses.
func NewMemEngine(peers ...string) *MemEngine {
	return &MemEngine{
		spaces:   make(map[uint64]map[string][]byte),
		peers:    peers,
		isLeader: true,
	}
}

// SetLeader lets tests simulate a leadership change.
func (e *MemEngine) SetLeader(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isLeader = v
}

func partKey(spaceID, partID uint32) uint64 {
	return uint64(spaceID)<<32 | uint64(partID)
}

func (e *MemEngine) bucket(spaceID, partID uint32) map[string][]byte {
	k := partKey(spaceID, partID)
	b, ok := e.spaces[k]
	if !ok {
		b = make(map[string][]byte)
		e.spaces[k] = b
	}
	return b
}

func (e *MemEngine) Get(_ context.Context, spaceID, partID uint32, key []byte) ([]byte, ResultCode) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.bucket(spaceID, partID)[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, Succeeded
}

func (e *MemEngine) MultiGet(_ context.Context, spaceID, partID uint32, keys [][]byte) ([][]byte, ResultCode) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b := e.bucket(spaceID, partID)
	vals := make([][]byte, 0, len(keys))
	for _, k := range keys {
		v, ok := b[string(k)]
		if !ok {
			return nil, ErrKeyNotFound
		}
		out := make([]byte, len(v))
		copy(out, v)
		vals = append(vals, out)
	}
	return vals, Succeeded
}

func (e *MemEngine) sortedKeys(spaceID, partID uint32, match func(string) bool) []string {
	b := e.bucket(spaceID, partID)
	keys := make([]string, 0, len(b))
	for k := range b {
		if match(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

type memIterator struct {
	keys []string
	vals map[string][]byte
	pos  int
}

func (it *memIterator) Valid() bool { return it.pos < len(it.keys) }
func (it *memIterator) Key() []byte { return []byte(it.keys[it.pos]) }
func (it *memIterator) Val() []byte { return it.vals[it.keys[it.pos]] }
func (it *memIterator) Next()       { it.pos++ }
func (it *memIterator) Close()      {}

func (e *MemEngine) Prefix(_ context.Context, spaceID, partID uint32, prefix []byte) (Iterator, ResultCode) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := e.sortedKeys(spaceID, partID, func(k string) bool {
		return strings.HasPrefix(k, string(prefix))
	})
	return &memIterator{keys: keys, vals: e.bucket(spaceID, partID)}, Succeeded
}

func (e *MemEngine) Range(_ context.Context, spaceID, partID uint32, start, end []byte) (Iterator, ResultCode) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, en := string(start), string(end)
	keys := e.sortedKeys(spaceID, partID, func(k string) bool {
		return k >= s && (en == "" || k < en)
	})
	return &memIterator{keys: keys, vals: e.bucket(spaceID, partID)}, Succeeded
}

func (e *MemEngine) AsyncMultiPut(_ context.Context, spaceID, partID uint32, kvs []KV, cb PutCallback) {
	e.mu.Lock()
	b := e.bucket(spaceID, partID)
	for _, kv := range kvs {
		v := make([]byte, len(kv.Value))
		copy(v, kv.Value)
		b[string(kv.Key)] = v
	}
	e.mu.Unlock()
	cb(Succeeded)
}

func (e *MemEngine) AsyncRemove(_ context.Context, spaceID, partID uint32, key []byte, cb PutCallback) {
	e.mu.Lock()
	delete(e.bucket(spaceID, partID), string(key))
	e.mu.Unlock()
	cb(Succeeded)
}

func (e *MemEngine) AsyncMultiRemove(_ context.Context, spaceID, partID uint32, keys [][]byte, cb PutCallback) {
	e.mu.Lock()
	b := e.bucket(spaceID, partID)
	for _, k := range keys {
		delete(b, string(k))
	}
	e.mu.Unlock()
	cb(Succeeded)
}

func (e *MemEngine) AsyncRemoveRange(_ context.Context, spaceID, partID uint32, start, end []byte, cb PutCallback) {
	e.mu.Lock()
	b := e.bucket(spaceID, partID)
	s, en := string(start), string(end)
	for k := range b {
		if k >= s && (en == "" || k < en) {
			delete(b, k)
		}
	}
	e.mu.Unlock()
	cb(Succeeded)
}

func (e *MemEngine) Part(_, _ uint32) (Part, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &memPart{peers: append([]string(nil), e.peers...)}, nil
}

func (e *MemEngine) IsLeader(_, _ uint32) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}
