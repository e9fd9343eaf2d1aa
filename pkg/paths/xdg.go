// Package paths provides XDG-compliant path resolution for basin.
//
// Resolution order:
// 1. BASIN_HOME (portable root) → $BASIN_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/basin
// 3. Platform defaults → ~/.config/basin, ~/.local/state/basin
//
// Logs live outside the project tree so that the engine never watches its own
// log output.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "basin"

// xdgHome resolves one XDG base directory.
func xdgHome(basinSub, xdgEnv string, fallback ...string) string {
	if basinHome := os.Getenv("BASIN_HOME"); basinHome != "" {
		return filepath.Join(basinHome, basinSub)
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, append(fallback, appName)...)...)
	}
	return ""
}

// ConfigDir returns the basin configuration directory.
// A basin.yml placed here is used when no project config is found.
func ConfigDir() string {
	return xdgHome("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the basin state directory.
func StateDir() string {
	return xdgHome("state", "XDG_STATE_HOME", ".local", "state")
}

// LogDir returns the directory holding dated engine log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// EnsureDirs creates all basin directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
