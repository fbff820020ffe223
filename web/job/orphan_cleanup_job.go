package job

import (
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/web/service"
)

// OrphanCleanupJob removes stored files that nothing references any more.
type OrphanCleanupJob struct {
	moderationService service.ModerationService
}

func NewOrphanCleanupJob() *OrphanCleanupJob {
	return new(OrphanCleanupJob)
}

func (j *OrphanCleanupJob) Run() {
	defer common.Recover("orphan cleanup job")
	logger.Debug("Orphan cleanup job started")
	result, err := j.moderationService.SweepOrphans()
	if err != nil {
		logger.Warning("orphan cleanup job err:", err)
		return
	}
	if result.DeletedCount > 0 {
		logger.Infof("orphan cleanup job removed %d files, freed %s", result.DeletedCount, result.FreedSpaceFormatted)
	}
}
