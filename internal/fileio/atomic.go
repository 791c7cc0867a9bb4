// Package fileio provides atomic file writes and the single-daemon file
// lock.
package fileio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"
)

// AtomicWriteYAML marshals data and writes it atomically, validating the
// written YAML before it replaces the target.
func AtomicWriteYAML(path string, data any) error {
	content, err := yamlv3.Marshal(data)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return atomicWrite(path, content, validateYAML)
}

// AtomicWrite writes content atomically, verifying the temp file holds the
// exact bytes before it replaces the target.
func AtomicWrite(path string, content []byte) error {
	return atomicWrite(path, content, func(written []byte) error {
		if !bytes.Equal(written, content) {
			return fmt.Errorf("written content does not match")
		}
		return nil
	})
}

// atomicWrite stages content in a temp file, validates it, backs up any
// existing target to .bak, then renames into place.
func atomicWrite(path string, content []byte, validate func([]byte) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ptcamp-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read temp file for validation: %w", err)
	}
	if err := validate(written); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

func validateYAML(content []byte) error {
	var v any
	return yamlv3.Unmarshal(content, &v)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
