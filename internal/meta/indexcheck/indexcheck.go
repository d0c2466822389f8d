// Package indexcheck validates schema ALTER operations against existing
// indexes (component C7): an ALTER that changes or drops a column any
// index depends on must be rejected before it reaches storage, and a
// CREATE INDEX over a field list identical to an existing index must be
// rejected as a duplicate rather than silently creating a second index
// over the same fields.
package indexcheck

import (
	"github.com/cubefs/graphmeta/internal/meta/codec"
	metaerrors "github.com/cubefs/graphmeta/internal/meta/errors"
)

// Check reports metaerrors.ErrConflict if any alterItem that changes or
// drops a column would invalidate one of items' indexed fields.
func Check(items []codec.IndexItem, alterItems []codec.AlterSchemaItem) error {
	for _, index := range items {
		for _, alter := range alterItems {
			if alter.Op != codec.AlterChange && alter.Op != codec.AlterDrop {
				continue
			}
			for _, col := range alter.Columns {
				for _, field := range index.Fields {
					if col.Name == field.Name {
						return metaerrors.ErrConflict
					}
				}
			}
		}
	}
	return nil
}

// Exists reports whether fields exactly match an existing index's leading
// fields, in order. An empty fields list is treated as matching any index
// (a CREATE INDEX with no ordered field list can never be distinguished
// from an existing one, so it is rejected as a duplicate outright).
func Exists(fields []codec.IndexFieldDef, item codec.IndexItem) bool {
	if len(fields) == 0 {
		return true
	}
	if len(fields) > len(item.Fields) {
		return false
	}
	for i, f := range fields {
		if f.Name != item.Fields[i].Name {
			return false
		}
	}
	return true
}
