package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-id/internal/constants"
	"github.com/kozaktomas/face-id/internal/recognition"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Enroll photos as they appear in a directory",
	Long: `Watch a directory tree and enroll every new or changed photo.

Names follow the same rules as import: the first subdirectory under <dir>,
or the file name for photos directly in <dir>. A photo is enrolled once it
has not changed for the debounce delay.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Int("debounce", constants.WatchDebounce, "Milliseconds to wait after the last write before enrolling")
}

// debouncer calls fire for a key once no trigger has arrived for delay.
type debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	timers   map[string]*time.Timer
	fire     func(key string)
	inflight sync.WaitGroup
	stopped  bool
}

func newDebouncer(delay time.Duration, fire func(key string)) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer), fire: fire}
}

// Trigger schedules key, pushing back any pending call.
func (d *debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := !d.stopped && d.timers[key] == t
		if current {
			delete(d.timers, key)
			d.inflight.Add(1)
		}
		d.mu.Unlock()
		if current {
			defer d.inflight.Done()
			d.fire(key)
		}
	})
	d.timers[key] = t
}

// Stop cancels all pending calls and waits for running ones to return.
// Triggers after Stop are ignored.
func (d *debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
	d.mu.Unlock()
	d.inflight.Wait()
}

// addWatchTree watches root and every directory below it.
func addWatchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := args[0]
	delay := time.Duration(mustGetInt(cmd, "debounce")) * time.Millisecond

	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}

	deb := newDebouncer(delay, func(path string) {
		enrollWatched(ctx, a.service, root, path)
	})
	defer deb.Stop()

	fmt.Printf("Watching %s for new photos (Ctrl+C to stop)\n", root)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped watching")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					if err := addWatchTree(watcher, event.Name); err != nil {
						a.logger.Warn("cannot watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
					continue
				}
			}
			if isImageFile(event.Name) {
				deb.Trigger(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// enrollWatched enrolls a single watched photo and prints the result.
func enrollWatched(ctx context.Context, svc *recognition.Service, root, path string) {
	job := importJob{Path: path, Name: nameForFile(root, path)}
	out, err := enrollFile(ctx, svc, job)
	if err != nil {
		fmt.Printf("  %s: error: %v\n", path, err)
		return
	}
	if out.Kind == recognition.KindEnrolled {
		fmt.Printf("  %s: %s (ID: %d)\n", path, out.Message(), out.FaceID)
		return
	}
	fmt.Printf("  %s: %s\n", path, out.Message())
}
