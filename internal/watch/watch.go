// Package watch runs the drop-box daemon. Campaign files dropped into the
// inbox are submitted once they stop changing, then moved to the processed
// or failed directory with a result manifest describing what happened.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mkatops/ptcamp/internal/config"
	"github.com/mkatops/ptcamp/internal/fileio"
	"github.com/mkatops/ptcamp/internal/submit"
)

// Daemon owns the inbox watcher, the rescan ticker and the daemon lock.
// One daemon runs per state directory.
type Daemon struct {
	stateDir string
	cfg      config.Config
	logger   *slog.Logger

	fileLock *fileio.FileLock
	watcher  *fsnotify.Watcher
	ticker   *time.Ticker

	handler *InboxHandler

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once

	settleMu    sync.Mutex
	settleTimer *time.Timer

	forceExit atomic.Bool
}

// New creates a daemon rooted at the .ptcamp state directory.
func New(stateDir string, cfg config.Config, runner *submit.Runner, opts submit.Options, logger *slog.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	rescan := cfg.Watch.RescanIntervalSec
	if rescan <= 0 {
		rescan = 30
	}

	return &Daemon{
		stateDir: stateDir,
		cfg:      cfg,
		logger:   logger,
		fileLock: fileio.NewFileLock(filepath.Join(stateDir, "locks", "watch.lock")),
		ticker:   time.NewTicker(time.Duration(rescan) * time.Second),
		handler:  NewInboxHandler(stateDir, cfg.Watch, runner, opts, logger),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	// Step 1: take the daemon lock
	if err := os.MkdirAll(filepath.Join(d.stateDir, "locks"), 0755); err != nil {
		return fmt.Errorf("ensure lock dir: %w", err)
	}
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("watch lock: %w", err)
	}
	d.logger.Info("watch daemon starting", "pid", os.Getpid(), "inbox", d.handler.inboxDir)

	// Step 2: ensure the drop directories and watch the inbox
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.cleanup()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.watcher = watcher

	if err := d.handler.EnsureDirs(); err != nil {
		d.cleanup()
		return err
	}
	if err := watcher.Add(d.handler.inboxDir); err != nil {
		d.cleanup()
		return fmt.Errorf("watch %s: %w", d.handler.inboxDir, err)
	}

	// Step 3: start background loops
	d.wg.Add(2)
	go d.fsnotifyLoop()
	go d.tickerLoop()

	// Step 4: pick up files dropped before the daemon started
	d.scan()
	d.logger.Info("watch daemon ready")

	// Step 5: wait for signals
	d.waitSignals()

	return nil
}

// scan runs one inbox pass and arms a follow-up while files are settling.
func (d *Daemon) scan() {
	if pending := d.handler.Scan(d.ctx); pending > 0 {
		d.scheduleScan()
	}
}

// scheduleScan arms a one-shot rescan a stability window from now. A newer
// event resets the timer.
func (d *Daemon) scheduleScan() {
	d.settleMu.Lock()
	defer d.settleMu.Unlock()

	if d.settleTimer != nil {
		d.settleTimer.Stop()
	}
	d.settleTimer = time.AfterFunc(d.handler.stability, func() {
		if d.ctx.Err() != nil {
			return
		}
		d.scan()
	})
}

// fsnotifyLoop processes filesystem change events.
func (d *Daemon) fsnotifyLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				d.logger.Debug("inbox event", "op", event.Op.String(), "file", event.Name)
				d.scheduleScan()
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Error("fsnotify error", "error", err)
		}
	}
}

// tickerLoop rescans the inbox at the configured interval, catching drops
// fsnotify missed.
func (d *Daemon) tickerLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.ticker.C:
			d.logger.Debug("rescan tick")
			d.scan()
		}
	}
}

// waitSignals blocks until a shutdown signal is received.
func (d *Daemon) waitSignals() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	d.logger.Info("signal received, shutting down", "signal", sig.String())

	// Second signal forces exit
	go func() {
		<-sigCh
		d.logger.Warn("second signal received, forcing exit")
		d.forceExit.Store(true)
		os.Exit(1)
	}()

	d.Shutdown()
}

// Shutdown stops the daemon. Safe to call more than once.
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		// 1. Stop accepting new work
		d.cancel()

		// 2. Stop producers
		d.ticker.Stop()
		d.settleMu.Lock()
		if d.settleTimer != nil {
			d.settleTimer.Stop()
		}
		d.settleMu.Unlock()
		if d.watcher != nil {
			d.watcher.Close()
		}

		// 3. Drain in-flight work with a timeout
		timeout := d.cfg.Watch.ShutdownTimeoutSec
		if timeout <= 0 {
			timeout = 10
		}

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.logger.Info("watch daemon stopped")
		case <-time.After(time.Duration(timeout) * time.Second):
			d.logger.Warn("shutdown timed out, a submission may still be in flight", "timeout_sec", timeout)
		}

		// 4. Release the lock
		d.cleanup()
	})
}

// cleanup releases resources.
func (d *Daemon) cleanup() {
	if d.watcher != nil {
		d.watcher.Close()
	}
	d.fileLock.Unlock()
}
