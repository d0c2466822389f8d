package indexcheck

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/graphmeta/internal/meta/codec"
	metaerrors "github.com/cubefs/graphmeta/internal/meta/errors"
)

func idx(fields ...string) codec.IndexItem {
	defs := make([]codec.IndexFieldDef, 0, len(fields))
	for _, f := range fields {
		defs = append(defs, codec.IndexFieldDef{Name: f})
	}
	return codec.IndexItem{Fields: defs}
}

func TestCheckRejectsChangeOfIndexedColumn(t *testing.T) {
	items := []codec.IndexItem{idx("name", "age")}
	alters := []codec.AlterSchemaItem{{Op: codec.AlterChange, Columns: []codec.ColumnDef{{Name: "age"}}}}
	require.ErrorIs(t, Check(items, alters), metaerrors.ErrConflict)
}

func TestCheckRejectsDropOfIndexedColumn(t *testing.T) {
	items := []codec.IndexItem{idx("name")}
	alters := []codec.AlterSchemaItem{{Op: codec.AlterDrop, Columns: []codec.ColumnDef{{Name: "name"}}}}
	require.ErrorIs(t, Check(items, alters), metaerrors.ErrConflict)
}

func TestCheckAllowsAddOfNewColumn(t *testing.T) {
	items := []codec.IndexItem{idx("name")}
	alters := []codec.AlterSchemaItem{{Op: codec.AlterAdd, Columns: []codec.ColumnDef{{Name: "email"}}}}
	require.NoError(t, Check(items, alters))
}

func TestCheckAllowsUnrelatedChange(t *testing.T) {
	items := []codec.IndexItem{idx("name")}
	alters := []codec.AlterSchemaItem{{Op: codec.AlterChange, Columns: []codec.ColumnDef{{Name: "email"}}}}
	require.NoError(t, Check(items, alters))
}

func TestExistsExactMatch(t *testing.T) {
	existing := idx("name", "age")
	fields := []codec.IndexFieldDef{{Name: "name"}, {Name: "age"}}
	require.True(t, Exists(fields, existing))
}

func TestExistsPrefixMatch(t *testing.T) {
	existing := idx("name", "age", "city")
	fields := []codec.IndexFieldDef{{Name: "name"}, {Name: "age"}}
	require.True(t, Exists(fields, existing))
}

func TestExistsDifferentOrderDoesNotMatch(t *testing.T) {
	existing := idx("name", "age")
	fields := []codec.IndexFieldDef{{Name: "age"}, {Name: "name"}}
	require.False(t, Exists(fields, existing))
}

func TestExistsLongerThanExistingDoesNotMatch(t *testing.T) {
	existing := idx("name")
	fields := []codec.IndexFieldDef{{Name: "name"}, {Name: "age"}}
	require.False(t, Exists(fields, existing))
}

// An empty field list can never be distinguished from an existing index, so
// it is always rejected as a duplicate.
func TestExistsEmptyFieldsAlwaysMatches(t *testing.T) {
	existing := idx("name")
	require.True(t, Exists(nil, existing))
}
