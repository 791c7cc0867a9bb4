package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mkatops/ptcamp/internal/config"
	"github.com/mkatops/ptcamp/internal/fileio"
	"github.com/mkatops/ptcamp/internal/submit"
)

const (
	ManifestFileType = "ptcamp/drop_result"

	StatusProcessed = "processed"
	StatusFailed    = "failed"

	manifestSuffix = ".result.yaml"

	defaultStabilityWindow = 750 * time.Millisecond
)

// Manifest is written next to every file the daemon moves out of the inbox.
type Manifest struct {
	SchemaVersion string   `yaml:"schema_version"`
	FileType      string   `yaml:"file_type"`
	Source        string   `yaml:"source"`
	Status        string   `yaml:"status"`
	CompletedAt   string   `yaml:"completed_at"`
	RunID         string   `yaml:"run_id,omitempty"`
	ProgramBlock  string   `yaml:"program_block,omitempty"`
	Jobs          int      `yaml:"jobs,omitempty"`
	Warnings      []string `yaml:"warnings,omitempty"`
	Error         string   `yaml:"error,omitempty"`
}

// fingerprint tracks one inbox file between scans. A file is submitted only
// after its size and mtime held still for the whole stability window.
type fingerprint struct {
	size    int64
	modTime time.Time
	firstAt time.Time
	done    bool
}

// InboxHandler turns settled inbox files into campaign runs and moves them
// to the processed or failed directory with a result manifest alongside.
type InboxHandler struct {
	inboxDir     string
	processedDir string
	failedDir    string
	stability    time.Duration

	runner *submit.Runner
	opts   submit.Options
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]fingerprint
}

// NewInboxHandler resolves the watch directories against the state directory
// and prepares the submission options template. opts.CampaignFile is set per
// dropped file.
func NewInboxHandler(stateDir string, cfg config.WatchConfig, runner *submit.Runner, opts submit.Options, logger *slog.Logger) *InboxHandler {
	stability := time.Duration(cfg.StabilityWindowMs) * time.Millisecond
	if stability <= 0 {
		stability = defaultStabilityWindow
	}

	return &InboxHandler{
		inboxDir:     resolveDir(stateDir, cfg.InboxDir),
		processedDir: resolveDir(stateDir, cfg.ProcessedDir),
		failedDir:    resolveDir(stateDir, cfg.FailedDir),
		stability:    stability,
		runner:       runner,
		opts:         opts,
		logger:       logger,
		now:          time.Now,
		seen:         make(map[string]fingerprint),
	}
}

// EnsureDirs creates the inbox, processed and failed directories.
func (h *InboxHandler) EnsureDirs() error {
	for _, dir := range []string{h.inboxDir, h.processedDir, h.failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create watch directory %s: %w", dir, err)
		}
	}
	return nil
}

// Scan walks the inbox once, submitting files that settled and recording the
// rest for the next pass. Returns the number of files still settling.
func (h *InboxHandler) Scan(ctx context.Context) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := os.ReadDir(h.inboxDir)
	if err != nil {
		h.logger.Warn("inbox scan failed", "dir", h.inboxDir, "error", err)
		return 0
	}

	now := h.now()
	alive := make(map[string]bool, len(entries))
	pending := 0
	for _, entry := range entries {
		if entry.IsDir() || !isCampaignFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(h.inboxDir, entry.Name())
		alive[path] = true

		fp, known := h.seen[path]
		if !known || fp.size != info.Size() || !fp.modTime.Equal(info.ModTime()) {
			h.seen[path] = fingerprint{size: info.Size(), modTime: info.ModTime(), firstAt: now}
			pending++
			continue
		}
		if fp.done {
			continue
		}
		if now.Sub(fp.firstAt) < h.stability {
			pending++
			continue
		}

		h.process(ctx, path)
		if _, err := os.Stat(path); err == nil {
			// The move failed; keep the entry so this run is not repeated.
			fp.done = true
			h.seen[path] = fp
		} else {
			delete(h.seen, path)
		}
	}

	// Forget files that vanished between scans.
	for path := range h.seen {
		if !alive[path] {
			delete(h.seen, path)
		}
	}
	return pending
}

// ProcessAll submits every campaign file currently in the inbox without
// waiting for the stability window, in name order. One-shot invocations only
// see files whose writers finished before the command started. Returns the
// number of files handled.
func (h *InboxHandler) ProcessAll(ctx context.Context) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := os.ReadDir(h.inboxDir)
	if err != nil {
		h.logger.Warn("inbox scan failed", "dir", h.inboxDir, "error", err)
		return 0
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isCampaignFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		h.process(ctx, filepath.Join(h.inboxDir, name))
	}
	return len(names)
}

// process runs one campaign file, moves it out of the inbox and writes the
// result manifest next to the moved file.
func (h *InboxHandler) process(ctx context.Context, path string) {
	opts := h.opts
	opts.GroupKey = ""
	opts.CampaignFile = path

	result, err := h.runner.Run(ctx, opts)

	manifest := Manifest{
		SchemaVersion: config.SchemaVersion,
		FileType:      ManifestFileType,
		Source:        filepath.Base(path),
		CompletedAt:   h.now().UTC().Format(time.RFC3339),
	}
	destDir := h.processedDir
	if err != nil {
		manifest.Status = StatusFailed
		manifest.Error = err.Error()
		destDir = h.failedDir
		h.logger.Error("campaign file failed", "file", filepath.Base(path), "error", err)
	} else {
		manifest.Status = StatusProcessed
		manifest.RunID = result.RunID
		manifest.ProgramBlock = result.ProgramBlock
		manifest.Jobs = len(result.Jobs)
		manifest.Warnings = result.Warnings
		h.logger.Info("campaign file processed",
			"file", filepath.Base(path),
			"run_id", result.RunID,
			"program_block", result.ProgramBlock,
			"jobs", len(result.Jobs))
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(destDir, fmt.Sprintf("%d_%s", h.now().Unix(), filepath.Base(path)))
	}
	if err := os.Rename(path, dest); err != nil {
		h.logger.Error("move out of inbox failed", "file", filepath.Base(path), "error", err)
	}
	if err := fileio.AtomicWriteYAML(dest+manifestSuffix, manifest); err != nil {
		h.logger.Error("write result manifest failed", "file", dest+manifestSuffix, "error", err)
	}
}

// isCampaignFile reports whether an inbox entry is a submittable campaign
// file. Hidden files, manifests and unrelated extensions are skipped.
func isCampaignFile(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, manifestSuffix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".yaml", ".yml":
		return true
	}
	return false
}

func resolveDir(stateDir, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(stateDir, dir)
}
