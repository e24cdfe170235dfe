package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a feed must be quiet before it is re-read.
const DefaultDebounce = 200 * time.Millisecond

// ErrFeedRemoved is reported when the watched feed disappears.
var ErrFeedRemoved = errors.New("watched feed was removed")

// Watch re-parses the feed at path whenever it is written and hands the
// groups to onChange. Parse failures and watcher errors go to onError and
// watching continues. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func([]Group), onError func(error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	// Watch the directory so editors that replace the file are still seen
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		groups, err := ParseFile(abs)
		if err != nil {
			onError(err)
			return
		}
		onChange(groups)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	target := filepath.Base(abs)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove != 0:
				onError(ErrFeedRemoved)

			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, reload)
				mu.Unlock()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			onError(err)
		}
	}
}
