package prefs

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher surfaces external edits to the preferences file so the app can
// reconfigure providers without a restart. Writes are debounced because
// editors and atomic renames produce bursts of events.
type Watcher struct {
	Events chan struct{}

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// Watch observes the preferences file for out-of-process changes. The parent
// directory is watched because saves replace the file by rename.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		Events: make(chan struct{}, 1),
		fsw:    fsw,
		done:   make(chan struct{}),
	}
	go w.run(filepath.Base(path))
	return w, nil
}

func (w *Watcher) run(base string) {
	var timer *time.Timer
	fire := func() {
		select {
		case w.Events <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(200*time.Millisecond, fire)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("preferences watcher error")
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
