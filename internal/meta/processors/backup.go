package processors

import (
	"context"

	"github.com/cubefs/graphmeta/internal/meta/backup"
	"github.com/cubefs/graphmeta/internal/meta/codec"
)

// BackupProcessor is the thin request/response wrapper the RPC layer calls
// into; all protocol logic lives in backup.Coordinator.
type BackupProcessor struct {
	coordinator *backup.Coordinator
}

func NewBackupProcessor(c *backup.Coordinator) *BackupProcessor {
	return &BackupProcessor{coordinator: c}
}

func (p *BackupProcessor) CreateBackup(ctx context.Context, spaceNames []string) (*backup.Manifest, error) {
	return p.coordinator.CreateBackup(ctx, spaceNames)
}

func (p *BackupProcessor) DropBackup(ctx context.Context, backupName string, targetHosts []codec.HostAddr) error {
	return p.coordinator.DropBackup(ctx, backupName, targetHosts)
}
