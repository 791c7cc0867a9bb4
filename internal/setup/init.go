// Package setup scaffolds the .ptcamp state directory.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkatops/ptcamp/internal/config"
	"github.com/mkatops/ptcamp/internal/fileio"
)

// Run creates the .ptcamp/ directory under projectDir and writes the default
// configuration. An existing state directory is left untouched.
func Run(projectDir string) error {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, config.StateDirName)
	if _, err := os.Stat(base); err == nil {
		return fmt.Errorf("%s already exists", base)
	}

	dirs := []string{
		"inbox",
		"processed",
		"failed",
		"locks",
		"audit",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	if err := fileio.AtomicWriteYAML(filepath.Join(base, "config.yaml"), config.Default()); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}
	return nil
}
