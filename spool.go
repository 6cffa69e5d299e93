package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// jpegEOI terminates every complete JPEG file.
var jpegEOI = []byte{0xFF, 0xD9}

// SpoolWatcher ingests JPEG files dropped into a directory.
// Producers should write elsewhere and rename into the directory; a file whose
// content does not end in an EOI marker is treated as still being written.
type SpoolWatcher struct {
	dir     string
	remove  bool
	ingest  *IngestEndpoint
	watcher *fsnotify.Watcher

	// seen records kept files already ingested so repeated write events
	// do not broadcast the same image twice. Only Run touches it.
	seen map[string]fileStamp
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

func NewSpoolWatcher(dir string, remove bool, ingest *IngestEndpoint) (*SpoolWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating spool dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &SpoolWatcher{dir: dir, remove: remove, ingest: ingest, watcher: watcher, seen: make(map[string]fileStamp)}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *SpoolWatcher) Run(ctx context.Context) {
	infoLog("Watching %s for frames", w.dir)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isJPEGName(event.Name) {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(w.seen, event.Name)
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if err := w.ingestFile(event.Name); err != nil {
				debugLog("Skipping %s: %v", event.Name, err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			errorLog("Spool watcher error: %v", err)
		}
	}
}

// ingestFile ingests path once per distinct size and modification time.
func (w *SpoolWatcher) ingestFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}
	if prev, ok := w.seen[path]; ok && prev == stamp {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if !bytes.HasSuffix(data, jpegEOI) {
		return errors.New("incomplete jpeg")
	}
	if _, err := w.ingest.Ingest(data, int64(len(data))); err != nil {
		return err
	}
	if w.remove {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			warnLog("Removing spooled frame %s: %v", path, err)
		}
		return nil
	}
	w.seen[path] = stamp
	return nil
}

func (w *SpoolWatcher) Close() error {
	return w.watcher.Close()
}

func isJPEGName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}
