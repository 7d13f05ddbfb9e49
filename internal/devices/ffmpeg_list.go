package devices

import (
	"bufio"
	"regexp"
	"strings"
)

var (
	dshowVideoRe   = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)
	avfoundationRe = regexp.MustCompile(`\]\s+\[(\d+)\]\s+(.+)$`)
)

// parseDshowDevices extracts video devices from `ffmpeg -list_devices true -f dshow`.
// dshow opens devices by name, so name, path and ID coincide.
func parseDshowDevices(output string) []DeviceInfo {
	var devices []DeviceInfo
	seen := make(map[string]bool)
	for _, m := range dshowVideoRe.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name == "dummy" || seen[name] {
			continue
		}
		seen[name] = true
		devices = append(devices, DeviceInfo{
			DeviceID:   name,
			DevicePath: name,
			DeviceName: name,
			Bus:        "dshow",
		})
	}
	return devices
}

// parseAVFoundationDevices extracts cameras from
// `ffmpeg -f avfoundation -list_devices true -i ""`. Screen capture
// pseudo-devices are skipped.
func parseAVFoundationDevices(output string) []DeviceInfo {
	var devices []DeviceInfo
	inVideo := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "video devices:"):
			inVideo = true
			continue
		case strings.Contains(line, "audio devices:"):
			inVideo = false
			continue
		}
		if !inVideo {
			continue
		}
		m := avfoundationRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[2])
		if strings.HasPrefix(name, "Capture screen") {
			continue
		}
		devices = append(devices, DeviceInfo{
			DeviceID:   name,
			DevicePath: m[1],
			DeviceName: name,
			Bus:        "avfoundation",
		})
	}
	return devices
}
