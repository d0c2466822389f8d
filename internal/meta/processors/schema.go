package processors

import (
	"context"
	"time"

	"github.com/cubefs/graphmeta/internal/kvstore"
	"github.com/cubefs/graphmeta/internal/meta/codec"
	metaerrors "github.com/cubefs/graphmeta/internal/meta/errors"
	"github.com/cubefs/graphmeta/internal/meta/idalloc"
	"github.com/cubefs/graphmeta/internal/meta/indexcheck"
	"github.com/cubefs/graphmeta/internal/meta/processor"
)

// SchemaProcessor handles tag/edge schema creation and alteration, and index
// creation -- the operations component C7 (indexcheck) gates.
type SchemaProcessor struct {
	base *processor.Base
	ids  *idalloc.Allocator
}

func NewSchemaProcessor(base *processor.Base, ids *idalloc.Allocator) *SchemaProcessor {
	return &SchemaProcessor{base: base, ids: ids}
}

// CreateTag allocates a tag id, writes its name index and its first (version
// 1) schema record. Fails with ErrTagExisted if the space already defines a
// tag by this name.
func (p *SchemaProcessor) CreateTag(ctx context.Context, spaceID codec.GraphSpaceID, name string, columns []codec.ColumnDef) (codec.TagID, error) {
	if !p.base.SpaceExist(ctx, spaceID) {
		return 0, metaerrors.ErrSpaceNotFound
	}
	if _, err := p.base.GetTagID(ctx, spaceID, name); err == nil {
		return 0, metaerrors.ErrTagExisted
	}

	id, err := p.ids.Next(ctx)
	if err != nil {
		return 0, err
	}

	schema := codec.Schema{Version: 1, Columns: columns}
	data := []kvstore.KV{
		{Key: codec.IndexTagKey(spaceID, name), Value: codec.EncodeInt32(id)},
		{Key: codec.SchemaTagKey(spaceID, id, schema.Version), Value: codec.SchemaVal(schema)},
	}
	if err := p.base.DoSyncPutAndUpdate(ctx, data, time.Now().UnixMilli()); err != nil {
		return 0, err
	}
	return id, nil
}

// AlterTag writes a new schema version for an existing tag, after checking
// the alteration doesn't invalidate any index defined over it.
func (p *SchemaProcessor) AlterTag(ctx context.Context, spaceID codec.GraphSpaceID, name string, alters []codec.AlterSchemaItem) error {
	tagID, err := p.base.GetTagID(ctx, spaceID, name)
	if err != nil {
		return err
	}

	current, err := p.base.GetLatestTagSchema(ctx, spaceID, tagID)
	if err != nil {
		return err
	}

	indexes, err := p.base.GetIndexes(ctx, spaceID, codec.SchemaKindTag, tagID)
	if err != nil {
		return err
	}
	if err := indexcheck.Check(indexes, alters); err != nil {
		return err
	}

	columns := applyAlters(current.Columns, alters)
	next := codec.Schema{Version: current.Version + 1, Columns: columns}

	key := codec.SchemaTagKey(spaceID, tagID, next.Version)
	return p.base.DoSyncPutAndUpdate(ctx, []kvstore.KV{{Key: key, Value: codec.SchemaVal(next)}}, time.Now().UnixMilli())
}

// CreateIndex allocates an index id over an existing tag and registers it,
// rejecting a field list that duplicates an existing index's leading fields.
func (p *SchemaProcessor) CreateIndex(ctx context.Context, spaceID codec.GraphSpaceID, indexName string, tagID codec.TagID, fields []codec.IndexFieldDef) (codec.IndexID, error) {
	if _, err := p.base.GetIndexID(ctx, spaceID, indexName); err == nil {
		return 0, metaerrors.ErrIndexExisted
	}

	existing, err := p.base.GetIndexes(ctx, spaceID, codec.SchemaKindTag, tagID)
	if err != nil {
		return 0, err
	}
	for _, idx := range existing {
		if indexcheck.Exists(fields, idx) {
			return 0, metaerrors.ErrConflict
		}
	}

	id, err := p.ids.Next(ctx)
	if err != nil {
		return 0, err
	}

	item := codec.IndexItem{IndexID: id, IndexName: indexName, SchemaKind: codec.SchemaKindTag, SchemaID: tagID, Fields: fields}
	data := []kvstore.KV{
		{Key: codec.IndexIndexKey(spaceID, indexName), Value: codec.EncodeInt32(id)},
		{Key: codec.IndexKey(spaceID, id), Value: codec.IndexVal(item)},
	}
	if err := p.base.DoSyncPutAndUpdate(ctx, data, time.Now().UnixMilli()); err != nil {
		return 0, err
	}
	return id, nil
}

// applyAlters folds a sequence of ADD/CHANGE/DROP clauses over a schema's
// current columns into the next version's column list.
func applyAlters(cols []codec.ColumnDef, alters []codec.AlterSchemaItem) []codec.ColumnDef {
	byName := make(map[string]codec.ColumnDef, len(cols))
	order := make([]string, 0, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
		order = append(order, c.Name)
	}
	for _, alter := range alters {
		for _, c := range alter.Columns {
			switch alter.Op {
			case codec.AlterAdd:
				if _, ok := byName[c.Name]; !ok {
					order = append(order, c.Name)
				}
				byName[c.Name] = c
			case codec.AlterChange:
				byName[c.Name] = c
			case codec.AlterDrop:
				delete(byName, c.Name)
			}
		}
	}
	out := make([]codec.ColumnDef, 0, len(order))
	for _, name := range order {
		if c, ok := byName[name]; ok {
			out = append(out, c)
		}
	}
	return out
}
