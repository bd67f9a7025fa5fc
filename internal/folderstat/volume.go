package folderstat

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// volumeOf reports usage of the filesystem holding path.
func volumeOf(path string) (*Volume, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk usage for path %s: %w", path, err)
	}

	return &Volume{
		Path:        usage.Path,
		Fstype:      usage.Fstype,
		Total:       usage.Total,
		Used:        usage.Used,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}
