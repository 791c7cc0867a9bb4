// Package audit appends run lifecycle events to a JSONL journal. Entries
// carry a checksum for later integrity verification and the journal rotates
// into an archive directory when it outgrows its size limit.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxSize caps the journal at 10MB before rotation.
	DefaultMaxSize = 10 * 1024 * 1024

	fileExt    = ".jsonl"
	archiveDir = "archive"
)

// Entry is one journal line. RunID, Campaign and ProgramBlock are promoted
// out of Details when present so downstream tooling can filter without
// parsing the payload.
type Entry struct {
	Timestamp    time.Time              `json:"timestamp"`
	EventType    string                 `json:"event_type"`
	EventID      string                 `json:"event_id"`
	RunID        string                 `json:"run_id,omitempty"`
	Campaign     string                 `json:"campaign,omitempty"`
	ProgramBlock string                 `json:"program_block,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Checksum     string                 `json:"checksum,omitempty"`
}

// Journal is an append-only JSONL event log. Safe for concurrent use.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	size     int64
	maxSize  int64
	path     string
	rotation int
}

// Open creates or appends to the journal at path. maxSize <= 0 selects
// DefaultMaxSize.
func Open(path string, maxSize int64) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	j := &Journal{path: path, maxSize: maxSize}
	if err := j.open(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) open() error {
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat journal: %w", err)
	}
	j.file = file
	j.size = stat.Size()
	return nil
}

// Log appends one event. Each entry gets a fresh event ID and a checksum
// over its canonical JSON form.
func (j *Journal) Log(eventType string, details map[string]interface{}) error {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		EventID:   uuid.NewString(),
		Details:   details,
	}
	if runID, ok := details["run_id"].(string); ok {
		entry.RunID = runID
	}
	if campaign, ok := details["campaign"].(string); ok {
		entry.Campaign = campaign
	}
	if block, ok := details["program_block"].(string); ok {
		entry.ProgramBlock = block
	}
	return j.write(&entry)
}

func (j *Journal) write(entry *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry.Checksum = checksum(entry)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	data = append(data, '\n')

	if j.size+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}

	n, err := j.file.Write(data)
	if err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	j.size += int64(n)
	return nil
}

// rotate moves the current journal into archive/ and starts a fresh file.
// Callers hold the mutex.
func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}

	dir := filepath.Join(filepath.Dir(j.path), archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	j.rotation++
	base := filepath.Base(j.path)
	name := fmt.Sprintf("%s.%s.%d%s",
		base[:len(base)-len(fileExt)],
		time.Now().Format("20060102_150405"),
		j.rotation,
		fileExt)
	if err := os.Rename(j.path, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("archive journal: %w", err)
	}

	return j.open()
}

// Close syncs and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.file.Close()
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// checksum hashes the entry's JSON form with the checksum field blanked.
func checksum(entry *Entry) string {
	clean := *entry
	clean.Checksum = ""
	data, err := json.Marshal(clean)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Verify re-reads a journal and reports how many entries parsed and how
// many carry intact checksums. Entries written without a checksum count as
// valid.
func Verify(path string) (total, valid int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	for decoder.More() {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			return total, valid, fmt.Errorf("decode entry %d: %w", total+1, err)
		}
		total++

		if entry.Checksum == "" {
			valid++
			continue
		}
		want := entry.Checksum
		entry.Checksum = ""
		if checksum(&entry) == want {
			valid++
		}
	}
	return total, valid, nil
}
