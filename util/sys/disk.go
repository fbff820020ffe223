// Package sys reports host resources relevant to the upload volume.
package sys

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
)

type DiskUsage struct {
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
	Used  uint64 `json:"used"`
}

// GetDiskUsage returns usage of the filesystem holding path.
func GetDiskUsage(path string) (*DiskUsage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stat, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, err
	}
	return &DiskUsage{Total: stat.Total, Free: stat.Free, Used: stat.Used}, nil
}
