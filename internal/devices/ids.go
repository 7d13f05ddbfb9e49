package devices

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	byIDDir   = "/dev/v4l/by-id/"
	byPathDir = "/dev/v4l/by-path/"
)

// stableID picks the identifier that survives reboots and re-plugging:
// a by-id link for USB devices, a by-path link for platform devices, and the
// device node itself when udev created neither.
func stableID(devnode string, links []string) string {
	var byID, byPath []string
	for _, l := range links {
		switch {
		case strings.HasPrefix(l, byIDDir):
			byID = append(byID, strings.TrimPrefix(l, byIDDir))
		case strings.HasPrefix(l, byPathDir):
			byPath = append(byPath, strings.TrimPrefix(l, byPathDir))
		}
	}
	if len(byID) > 0 {
		sort.Strings(byID)
		return byID[0]
	}
	if len(byPath) > 0 {
		sort.Strings(byPath)
		return byPath[0]
	}
	return devnode
}

// nodeIndex extracts N from /dev/videoN, or -1.
func nodeIndex(devnode string) int {
	base := filepath.Base(devnode)
	if !strings.HasPrefix(base, "video") {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(base, "video"))
	if err != nil {
		return -1
	}
	return n
}

// sortDevices orders devices by node number so "first device" is /dev/video0
// rather than whatever order udev enumerated them in.
func sortDevices(devices []DeviceInfo) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, b := nodeIndex(devices[i].DevicePath), nodeIndex(devices[j].DevicePath)
		if a != b {
			if a < 0 {
				return false
			}
			if b < 0 {
				return true
			}
			return a < b
		}
		return devices[i].DevicePath < devices[j].DevicePath
	})
}
