package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const DefaultPowerSupplyPath = "/sys/class/power_supply"

// SysfsBattery reads battery state from the kernel power_supply class.
type SysfsBattery struct {
	Root string
}

func NewSysfsBattery(root string) *SysfsBattery {
	if root == "" {
		root = DefaultPowerSupplyPath
	}
	return &SysfsBattery{Root: root}
}

func (b *SysfsBattery) batteryDirs() ([]string, error) {
	entries, err := os.ReadDir(b.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.Root, err)
	}

	var dirs []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "BAT") {
			dirs = append(dirs, filepath.Join(b.Root, entry.Name()))
		}
	}

	if len(dirs) == 0 {
		return nil, fmt.Errorf("no battery found under %s", b.Root)
	}
	return dirs, nil
}

// Level returns the lowest capacity across all batteries, matching how a
// multi-battery laptop runs out of charge.
func (b *SysfsBattery) Level() (int, error) {
	dirs, err := b.batteryDirs()
	if err != nil {
		return 0, err
	}

	lowest := 101
	for _, dir := range dirs {
		raw, err := os.ReadFile(filepath.Join(dir, "capacity"))
		if err != nil {
			return 0, fmt.Errorf("failed to read capacity: %w", err)
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			return 0, fmt.Errorf("unparseable capacity in %s: %w", dir, err)
		}
		if capacity < lowest {
			lowest = capacity
		}
	}

	if lowest > 100 {
		return 0, fmt.Errorf("no readable battery capacity under %s", b.Root)
	}
	return lowest, nil
}

// Charging reports true if any battery reports a Charging status.
func (b *SysfsBattery) Charging() (bool, error) {
	dirs, err := b.batteryDirs()
	if err != nil {
		return false, err
	}

	for _, dir := range dirs {
		raw, err := os.ReadFile(filepath.Join(dir, "status"))
		if err != nil {
			return false, fmt.Errorf("failed to read status: %w", err)
		}
		if strings.EqualFold(strings.TrimSpace(string(raw)), "Charging") {
			return true, nil
		}
	}
	return false, nil
}
