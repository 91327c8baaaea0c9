package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultDrmPath = "/sys/class/drm"

// DrmDisplay inspects DRM connector state to decide whether any display is
// currently on. Connectors report "enabled" plus a "dpms" power state.
type DrmDisplay struct {
	Root string
}

func NewDrmDisplay(root string) *DrmDisplay {
	if root == "" {
		root = DefaultDrmPath
	}
	return &DrmDisplay{Root: root}
}

// AnyOn returns true if at least one enabled connector reports DPMS "On".
// Connectors without a dpms file count as on when enabled, since some drivers
// never expose it.
func (d *DrmDisplay) AnyOn() (bool, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", d.Root, err)
	}

	found := false
	for _, entry := range entries {
		// Connectors are named card<N>-<output>, e.g. card0-eDP-1.
		if !strings.Contains(entry.Name(), "-") || !strings.HasPrefix(entry.Name(), "card") {
			continue
		}
		dir := filepath.Join(d.Root, entry.Name())

		enabled, err := os.ReadFile(filepath.Join(dir, "enabled"))
		if err != nil || strings.TrimSpace(string(enabled)) != "enabled" {
			continue
		}
		found = true

		dpms, err := os.ReadFile(filepath.Join(dir, "dpms"))
		if err != nil {
			return true, nil
		}
		if strings.TrimSpace(string(dpms)) == "On" {
			return true, nil
		}
	}

	if !found {
		return false, fmt.Errorf("no display connectors under %s", d.Root)
	}
	return false, nil
}
