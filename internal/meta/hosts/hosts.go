// Package hosts reports host liveness (component C9): classifying a
// registered process as ONLINE, OFFLINE or due for removal is a pure
// function of how long ago it last sent a heartbeat, so the classification
// itself never touches storage. ListHosts additionally handles the META
// role specially: a meta process learns about its peers from the raft
// group it belongs to, not from a heartbeat record of its own.
package hosts

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/graphmeta/internal/meta/codec"
	"github.com/cubefs/graphmeta/internal/meta/store"
)

// Status is a host's liveness as of the moment it was computed.
type Status int32

const (
	StatusOnline Status = iota
	StatusOffline
	// StatusForgotten hosts have gone silent past RemovedThresholdSec and
	// are no longer reported; callers remove their host record outright.
	StatusForgotten
)

// Thresholds configures the liveness classifier. It mirrors the flags the
// original gated this logic behind (heartbeat_interval_secs,
// expired_time_factor, removed_threshold_sec).
type Thresholds struct {
	HeartbeatIntervalSecs int64
	ExpiredTimeFactor     int64
	RemovedThresholdSecs  int64
}

// DefaultThresholds matches the original's compiled-in defaults.
var DefaultThresholds = Thresholds{
	HeartbeatIntervalSecs: 10,
	ExpiredTimeFactor:     3,
	RemovedThresholdSecs:  24 * 60 * 60,
}

// Classify reports the liveness of a host whose last heartbeat was at
// lastHeartbeatMs, evaluated at nowMs.
func (t Thresholds) Classify(nowMs, lastHeartbeatMs int64) Status {
	age := nowMs - lastHeartbeatMs
	if age >= t.RemovedThresholdSecs*1000 {
		return StatusForgotten
	}
	if age < t.HeartbeatIntervalSecs*t.ExpiredTimeFactor*1000 {
		return StatusOnline
	}
	return StatusOffline
}

// Item is one entry of a ListHosts response.
type Item struct {
	Addr       codec.HostAddr
	Role       codec.HostRole
	GitInfoSHA string
	Status     Status
}

// Reporter lists and prunes host records against a Thresholds policy.
type Reporter struct {
	store      *store.Store
	thresholds Thresholds
	gitInfoSHA string
}

func New(s *store.Store, thresholds Thresholds, gitInfoSHA string) *Reporter {
	return &Reporter{store: s, thresholds: thresholds, gitInfoSHA: gitInfoSHA}
}

// ListHosts reports every live host of role, reassigning offline/forgotten
// classification as it goes, and removing any host whose last heartbeat is
// older than RemovedThresholdSecs. Removal is best-effort: a failure
// pruning expired hosts is logged, not returned, so it never costs the
// caller the classification work already done. Like the original, META is
// special: its membership comes from the raft peer list rather than
// heartbeat records, since a meta process's own liveness is whatever raft
// already tracks.
func (r *Reporter) ListHosts(ctx context.Context, role codec.HostRole, nowMs int64) ([]Item, error) {
	if role == codec.RoleMeta {
		return r.metaHosts(ctx)
	}
	return r.scanLive(ctx, nowMs, func(info codec.HostInfo) bool { return info.Role == role })
}

// ActiveHosts reports every registered host, of any role, that isn't due
// for removal, the same population ActiveHostsMan::getActiveHosts draws
// the E_NO_HOSTS gate and per-host checkpoint dispatch from -- unlike
// ListHosts it never special-cases META, since backup only ever needs to
// know whether the cluster has a live host to talk to.
func (r *Reporter) ActiveHosts(ctx context.Context, nowMs int64) ([]codec.HostAddr, error) {
	items, err := r.scanLive(ctx, nowMs, func(codec.HostInfo) bool { return true })
	if err != nil {
		return nil, err
	}
	addrs := make([]codec.HostAddr, len(items))
	for i, it := range items {
		addrs[i] = it.Addr
	}
	return addrs, nil
}

// scanLive scans the host registry, classifying every entry matching keep
// and pruning (best-effort) anything past RemovedThresholdSecs.
func (r *Reporter) scanLive(ctx context.Context, nowMs int64, keep func(codec.HostInfo) bool) ([]Item, error) {
	span := trace.SpanFromContextSafe(ctx)
	kvs, err := r.store.ScanKeyValues(ctx, codec.HostPrefix())
	if err != nil {
		return nil, err
	}

	var items []Item
	var expired [][]byte
	for _, kv := range kvs {
		info, err := codec.ParseHostVal(kv.Value)
		if err != nil {
			return nil, err
		}
		if !keep(info) {
			continue
		}
		addr, err := codec.ParseHostKey(kv.Key)
		if err != nil {
			return nil, err
		}

		status := r.thresholds.Classify(nowMs, info.LastHeartbeatMs)
		if status == StatusForgotten {
			expired = append(expired, append([]byte(nil), kv.Key...))
			continue
		}
		items = append(items, Item{Addr: addr, Role: info.Role, GitInfoSHA: info.GitInfoSHA, Status: status})
	}

	if len(expired) > 0 {
		if err := r.store.MultiRemove(ctx, expired); err != nil {
			span.Errorf("failed to remove %d expired hosts: %v", len(expired), err)
		}
	}
	return items, nil
}

// metaHosts reports every peer of the reserved partition's raft group as
// an always-online META host sharing this process's build version.
func (r *Reporter) metaHosts(ctx context.Context) ([]Item, error) {
	part, err := r.store.Engine().Part(store.ReservedSpaceID, store.ReservedPartitionID)
	if err != nil {
		return nil, err
	}
	peers := part.Peers()
	items := make([]Item, 0, len(peers))
	for _, p := range peers {
		items = append(items, Item{
			Addr:       codec.HostAddr{Host: p},
			Role:       codec.RoleMeta,
			GitInfoSHA: r.gitInfoSHA,
			Status:     StatusOnline,
		})
	}
	return items, nil
}
