// Package planner builds an index-lookup execution plan (component C10):
// given one or more index query contexts, it decides per context whether
// a scan alone answers the query, or whether the scan also needs to fetch
// the underlying row and/or apply a residual filter, then assembles a DAG
// of plan nodes feeding a shared DeDup and Aggregate tail.
//
// The original expressed this DAG as nodes holding raw pointers to their
// dependencies (addDependency(other.get())), built and walked while the
// StoragePlan itself owned every node's lifetime via unique_ptr. Go has no
// natural equivalent of a unique_ptr forest of raw-pointer edges that
// outlives its owner, so this plan is an arena: every node lives in
// Plan.Nodes, and a dependency is the *index* of another node in that
// slice, not a pointer to it. Nothing here is a pointer into someone
// else's memory.
package planner

// NodeKind enumerates a plan node's role.
type NodeKind int32

const (
	NodeScan NodeKind = iota
	NodeFetchEdge
	NodeFetchVertex
	NodeFilter
	NodeOutput
	NodeDeDup
	NodeAggregate
)

// ColumnHint is one column's scan range within an index query context; the
// index's on-disk comparator is out of scope here (spec §1), so this is
// opaque bytes the scan node would pass straight to the engine.
type ColumnHint struct {
	Column   string
	BeginKey []byte
	EndKey   []byte
}

// QueryContext is one leg of a lookup: scan this index with these column
// hints, optionally evaluated against Filter. IsEdge selects which kind of
// row a data fetch pulls back: true for an edge index (NodeFetchEdge),
// false for a tag/vertex index (NodeFetchVertex), matching the original's
// planContext_->isEdge_ branch.
type QueryContext struct {
	IndexID     int32
	IsEdge      bool
	ColumnHints []ColumnHint
	Filter      *Expr
}

// Node is one arena entry. Deps holds the indices (within the same Plan's
// Nodes slice) of the nodes this one depends on; a node with no deps is a
// source (always a NodeScan).
type Node struct {
	Kind    NodeKind
	Deps    []int
	IndexID int32       // set on NodeScan
	Filter  *Expr        // set on NodeFilter
	Fields  []IndexField // set on NodeScan/NodeFilter, the index's own fields
}

// Plan is the arena: every node referenced by another node's Deps appears
// earlier in or at the same level as the referencing node; Nodes is built
// bottom-up, so a simple linear scan respects dependency order.
type Plan struct {
	Nodes        []Node
	DeDupColumns []int // positions in YieldColumns that participate in dedup
	YieldColumns []string
}

func (p *Plan) addNode(n Node) int {
	p.Nodes = append(p.Nodes, n)
	return len(p.Nodes) - 1
}

// IndexLookup resolves an index id to its definition. The planner never
// talks to storage directly; it is handed everything it needs to decide
// shape up front, matching the original's separation between
// LookupBaseProcessor (owns storage access) and the plan nodes themselves
// (own only execution).
type IndexLookup func(indexID int32) (fields []IndexField, ok bool)

// BuildPlanInput is everything BuildPlan needs to decide every context's
// shape and assemble the shared tail.
type BuildPlanInput struct {
	Contexts     []QueryContext
	YieldColumns []string
	// KeyColumns are columns always satisfied by the scan key itself (vid,
	// tag, or edge src/type/rank/dst) and so never force a data fetch.
	KeyColumns map[string]struct{}
	Lookup     IndexLookup
}

// RequestCheck validates a lookup request has at least one context and at
// least one yield column before any plan construction begins, matching the
// original's requestCheck early-exit on empty contexts/return columns.
func RequestCheck(in BuildPlanInput) error {
	if len(in.Contexts) == 0 {
		return ErrNoQueryContexts
	}
	if len(in.YieldColumns) == 0 {
		return ErrNoYieldColumns
	}
	return nil
}

// BuildPlan assembles the full DAG: one scan-rooted subtree per context,
// chosen from the four shapes, all feeding a single DeDup node which feeds
// a single Aggregate node.
func BuildPlan(in BuildPlanInput) (*Plan, error) {
	if err := RequestCheck(in); err != nil {
		return nil, err
	}

	plan := &Plan{YieldColumns: in.YieldColumns}
	for i, col := range in.YieldColumns {
		if isDeDupEligible(col) {
			plan.DeDupColumns = append(plan.DeDupColumns, i)
		}
	}

	outputs := make([]int, 0, len(in.Contexts))
	for _, ctx := range in.Contexts {
		fields, ok := in.Lookup(ctx.IndexID)
		if !ok {
			return nil, ErrIndexNotFound
		}

		hasNullableCol := false
		for _, f := range fields {
			if f.Nullable {
				hasNullableCol = true
				break
			}
		}

		needData := false
		for _, col := range in.YieldColumns {
			if _, isKeyCol := in.KeyColumns[col]; isKeyCol {
				continue
			}
			if !containsField(fields, col) {
				needData = true
				break
			}
		}

		needFilter := ctx.Filter != nil
		if needFilter && IsOutsideIndex(ctx.Filter, fields) {
			needData = true
		}

		out, err := buildContextPlan(plan, ctx, fields, hasNullableCol, needData, needFilter)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}

	dedup := plan.addNode(Node{Kind: NodeDeDup, Deps: outputs})
	plan.addNode(Node{Kind: NodeAggregate, Deps: []int{dedup}})
	return plan, nil
}

// buildContextPlan dispatches to one of the four shape builders and
// returns the arena index of that context's output node.
func buildContextPlan(plan *Plan, ctx QueryContext, fields []IndexField, hasNullableCol, needData, needFilter bool) (int, error) {
	switch {
	case !needData && !needFilter:
		return buildPlanBasic(plan, ctx, fields), nil
	case needData && !needFilter:
		return buildPlanWithData(plan, ctx, fields), nil
	case !needData && needFilter:
		return buildPlanWithFilter(plan, ctx, fields), nil
	default:
		return buildPlanWithDataAndFilter(plan, ctx, fields), nil
	}
}

// buildPlanBasic is scan -> output: every yielded column is already in the
// index's own fields, no filter outside what the scan's column hints
// already encode.
func buildPlanBasic(plan *Plan, ctx QueryContext, fields []IndexField) int {
	scan := plan.addNode(Node{Kind: NodeScan, IndexID: ctx.IndexID, Fields: fields})
	return plan.addNode(Node{Kind: NodeOutput, Deps: []int{scan}})
}

// fetchKind picks the row-fetch node kind for ctx: edge indexes fetch the
// underlying edge, everything else fetches the underlying vertex.
func fetchKind(ctx QueryContext) NodeKind {
	if ctx.IsEdge {
		return NodeFetchEdge
	}
	return NodeFetchVertex
}

// buildPlanWithData is scan -> fetch -> output: a yielded column isn't
// covered by the index, so the underlying row must be fetched.
func buildPlanWithData(plan *Plan, ctx QueryContext, fields []IndexField) int {
	scan := plan.addNode(Node{Kind: NodeScan, IndexID: ctx.IndexID, Fields: fields})
	fetch := plan.addNode(Node{Kind: fetchKind(ctx), Deps: []int{scan}})
	return plan.addNode(Node{Kind: NodeOutput, Deps: []int{fetch}})
}

// buildPlanWithFilter is scan -> filter -> output: every yielded column is
// covered by the index, but the WHERE clause needs evaluating against the
// scanned fields (e.g. a range the column hints alone can't express).
func buildPlanWithFilter(plan *Plan, ctx QueryContext, fields []IndexField) int {
	scan := plan.addNode(Node{Kind: NodeScan, IndexID: ctx.IndexID, Fields: fields})
	filter := plan.addNode(Node{Kind: NodeFilter, Deps: []int{scan}, Filter: ctx.Filter, Fields: fields})
	return plan.addNode(Node{Kind: NodeOutput, Deps: []int{filter}})
}

// buildPlanWithDataAndFilter is scan -> fetch -> filter -> output: both a
// row fetch and a residual filter are needed.
func buildPlanWithDataAndFilter(plan *Plan, ctx QueryContext, fields []IndexField) int {
	scan := plan.addNode(Node{Kind: NodeScan, IndexID: ctx.IndexID, Fields: fields})
	fetch := plan.addNode(Node{Kind: fetchKind(ctx), Deps: []int{scan}})
	filter := plan.addNode(Node{Kind: NodeFilter, Deps: []int{fetch}, Filter: ctx.Filter, Fields: fields})
	return plan.addNode(Node{Kind: NodeOutput, Deps: []int{filter}})
}

func containsField(fields []IndexField, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// isDeDupEligible reports whether a yielded column identifies the
// underlying row rather than one of its properties (_vid, _src, _dst,
// _type, _rank, _tag). Two index entries for the same row always agree on
// these, so they're what DeDup keys on; a plain property column is not
// distinguishing on its own and is left out of the dedup key.
func isDeDupEligible(col string) bool {
	switch col {
	case "_vid", "_src", "_dst", "_type", "_rank", "_tag":
		return true
	default:
		return false
	}
}
