package fileio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	yamlv3 "gopkg.in/yaml.v3"
)

func TestAtomicWriteYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")

	data := map[string]any{
		"campaign": "default",
		"jobs":     9,
	}
	if err := AtomicWriteYAML(path, data); err != nil {
		t.Fatalf("AtomicWriteYAML returned error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	var got map[string]any
	if err := yamlv3.Unmarshal(content, &got); err != nil {
		t.Fatalf("written file is not valid YAML: %v", err)
	}
	if got["campaign"] != "default" {
		t.Errorf("campaign = %v, want default", got["campaign"])
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".ptcamp-tmp-") {
			t.Errorf("temp file %q left behind", e.Name())
		}
	}
}

func TestAtomicWriteBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")

	if err := AtomicWrite(path, []byte("first: 1\n")); err != nil {
		t.Fatalf("first write returned error: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Error("backup created on first write")
	}

	if err := AtomicWrite(path, []byte("second: 2\n")); err != nil {
		t.Fatalf("second write returned error: %v", err)
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup missing after overwrite: %v", err)
	}
	if string(backup) != "first: 1\n" {
		t.Errorf("backup = %q, want the previous content", backup)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current file: %v", err)
	}
	if string(current) != "second: 2\n" {
		t.Errorf("current = %q, want the new content", current)
	}
}

func TestAtomicWriteRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	content := []byte("phaseup,\nJ0437-4715,600\n")

	if err := AtomicWrite(path, content); err != nil {
		t.Fatalf("AtomicWrite returned error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("written = %q, want %q", got, content)
	}
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")

	first := NewFileLock(path)
	if err := first.TryLock(); err != nil {
		t.Fatalf("TryLock returned error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		t.Error("lock file carries no PID")
	}

	second := NewFileLock(path)
	if err := second.TryLock(); err == nil {
		second.Unlock()
		t.Fatal("second TryLock succeeded while the lock was held")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file remained after Unlock")
	}

	if err := second.TryLock(); err != nil {
		t.Fatalf("relock after release returned error: %v", err)
	}
	second.Unlock()
}
