// Package idalloc is the metadata service's auto-increment id allocator
// (component C6): a single "__id__" counter shared by every entity kind
// that needs a fresh numeric id (space, tag, edge type, index, group,
// zone). Every allocation holds the id lock as the sole writer, so
// concurrent allocators always observe a strictly increasing sequence with
// no duplicate ids handed out.
package idalloc

import (
	"context"

	"github.com/cubefs/graphmeta/internal/meta/codec"
	metaerrors "github.com/cubefs/graphmeta/internal/meta/errors"
	"github.com/cubefs/graphmeta/internal/meta/lock"
	"github.com/cubefs/graphmeta/internal/meta/store"
)

// Allocator hands out the next unused int32 id, starting from 1.
type Allocator struct {
	store *store.Store
	locks *lock.Registry
}

func New(s *store.Store, locks *lock.Registry) *Allocator {
	return &Allocator{store: s, locks: locks}
}

// Next returns the next id in the sequence, persisting the new counter
// value before returning it. On the very first call (no "__id__" key yet)
// it returns 1.
func (a *Allocator) Next(ctx context.Context) (int32, error) {
	unlock := a.locks.Lock(lock.ID)
	defer unlock()

	var id int32 = 1
	val, err := a.store.Get(ctx, codec.IDKey)
	switch err {
	case nil:
		cur, decErr := codec.DecodeInt32(val)
		if decErr != nil {
			return 0, decErr
		}
		id = cur + 1
	case metaerrors.ErrNotFound:
		// first allocation ever; id stays 1
	default:
		return 0, err
	}

	if err := a.store.Put(ctx, codec.IDKey, codec.EncodeInt32(id)); err != nil {
		return 0, err
	}
	return id, nil
}
