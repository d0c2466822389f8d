package processors

import (
	"context"
	"time"

	"github.com/cubefs/graphmeta/internal/meta/codec"
	"github.com/cubefs/graphmeta/internal/meta/hosts"
	"github.com/cubefs/graphmeta/internal/meta/processor"
)

// ListHostType selects which ListHosts view the caller wants.
type ListHostType int32

const (
	ListHostGraph ListHostType = iota
	ListHostMeta
	ListHostStorage
	// ListHostAlloc additionally fills each storage host's leadership and
	// partition placement, the view the balancer uses to pick placement
	// candidates.
	ListHostAlloc
)

func (t ListHostType) role() codec.HostRole {
	switch t {
	case ListHostGraph:
		return codec.RoleGraph
	case ListHostMeta:
		return codec.RoleMeta
	default:
		return codec.RoleStorage
	}
}

// HostItem is one ListHosts response entry. LeaderParts/AllParts are only
// populated for ListHostAlloc, keyed by space name.
type HostItem struct {
	hosts.Item
	LeaderParts map[string][]codec.PartitionID
	AllParts    map[string][]codec.PartitionID
}

// HostsProcessor is the thin ListHosts request/response wrapper; liveness
// classification lives in hosts.Reporter.
type HostsProcessor struct {
	base     *processor.Base
	reporter *hosts.Reporter
}

func NewHostsProcessor(base *processor.Base, reporter *hosts.Reporter) *HostsProcessor {
	return &HostsProcessor{base: base, reporter: reporter}
}

// ListHosts returns every host of the requested type as of now. ALLOC
// additionally attaches each storage host's leader and full partition
// placement, scoped to spaces that still exist.
func (p *HostsProcessor) ListHosts(ctx context.Context, listType ListHostType) ([]HostItem, error) {
	spaceNames, err := p.spaceIDToName(ctx)
	if err != nil {
		return nil, err
	}

	nowMs := time.Now().UnixMilli()
	items, err := p.reporter.ListHosts(ctx, listType.role(), nowMs)
	if err != nil {
		return nil, err
	}

	out := make([]HostItem, len(items))
	for i, it := range items {
		out[i] = HostItem{Item: it}
	}

	if listType != ListHostAlloc {
		return out, nil
	}

	byAddr := make(map[codec.HostAddr]int, len(out))
	for i, it := range out {
		byAddr[it.Addr] = i
	}

	if err := p.fillLeaders(ctx, out, byAddr, spaceNames); err != nil {
		return nil, err
	}
	if err := p.fillAllParts(ctx, out, byAddr, spaceNames); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *HostsProcessor) spaceIDToName(ctx context.Context) (map[codec.GraphSpaceID]string, error) {
	kvs, err := p.base.Store.ScanKeyValues(ctx, codec.SpacePrefix())
	if err != nil {
		return nil, err
	}
	out := make(map[codec.GraphSpaceID]string, len(kvs))
	for _, kv := range kvs {
		id, err := codec.SpaceID(kv.Key)
		if err != nil {
			return nil, err
		}
		desc, err := codec.ParseSpaceVal(kv.Value)
		if err != nil {
			return nil, err
		}
		out[id] = desc.Name
	}
	return out, nil
}

// fillLeaders attaches, to each already-listed storage host, the partitions
// for which it currently holds raft leadership.
func (p *HostsProcessor) fillLeaders(ctx context.Context, items []HostItem, byAddr map[codec.HostAddr]int, spaceNames map[codec.GraphSpaceID]string) error {
	it, err := p.base.Store.Prefix(ctx, codec.LeaderPrefix())
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Valid() {
		spaceID, partID, err := codec.ParseLeaderKey(it.Key())
		if err != nil {
			return err
		}
		info, err := codec.ParseLeaderVal(it.Val())
		if err != nil {
			return err
		}
		idx, ok := byAddr[info.Host]
		if !ok {
			it.Next()
			continue
		}
		spaceName, ok := spaceNames[spaceID]
		if !ok {
			it.Next()
			continue
		}
		if items[idx].LeaderParts == nil {
			items[idx].LeaderParts = make(map[string][]codec.PartitionID)
		}
		items[idx].LeaderParts[spaceName] = append(items[idx].LeaderParts[spaceName], partID)
		it.Next()
	}
	return nil
}

// fillAllParts attaches, to each already-listed storage host, every
// partition it replicates, across every space that still exists.
func (p *HostsProcessor) fillAllParts(ctx context.Context, items []HostItem, byAddr map[codec.HostAddr]int, spaceNames map[codec.GraphSpaceID]string) error {
	for spaceID, spaceName := range spaceNames {
		kvs, err := p.base.Store.ScanKeyValues(ctx, codec.PartPrefix(spaceID))
		if err != nil {
			return err
		}
		for _, kv := range kvs {
			partID, err := codec.PartKeyPartID(kv.Key)
			if err != nil {
				return err
			}
			partHosts, err := codec.ParsePartVal(kv.Value)
			if err != nil {
				return err
			}
			for _, h := range partHosts {
				idx, ok := byAddr[h]
				if !ok {
					continue
				}
				if items[idx].AllParts == nil {
					items[idx].AllParts = make(map[string][]codec.PartitionID)
				}
				items[idx].AllParts[spaceName] = append(items[idx].AllParts[spaceName], partID)
			}
		}
	}
	return nil
}
