package config

import (
	"os"
	"path/filepath"
)

// StateDirName is the directory ptcamp keeps its state in.
const StateDirName = ".ptcamp"

// FindStateDir walks from dir through its ancestors looking for a .ptcamp
// directory and returns the first hit, or "" when no ancestor has one.
func FindStateDir(dir string) string {
	for {
		candidate := filepath.Join(dir, StateDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
