package job

import (
	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/util/common"
)

// CheckpointJob folds the sqlite write-ahead log back into the database file.
type CheckpointJob struct{}

func NewCheckpointJob() *CheckpointJob {
	return new(CheckpointJob)
}

func (j *CheckpointJob) Run() {
	defer common.Recover("checkpoint job")
	if err := database.Checkpoint(); err != nil {
		logger.Warning("checkpoint job err:", err)
	}
}
