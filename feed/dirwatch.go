// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package feed

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/ragline/core"
)

// DefaultMaxFileSize bounds the files a DirWatch will read.
const DefaultMaxFileSize int64 = 1 << 20

// DefaultExtensions are the file extensions a DirWatch picks up by default.
var DefaultExtensions = []string{".txt", ".md"}

// DirWatch emits an event per matching file under a directory tree, then
// re-emits files as they are created or written. The DocID is the file's
// slash-separated path relative to the root. Hidden files and directories
// are skipped.
//
// Removals are logged but not emitted; deleting documents is done through
// the index directly.
type DirWatch struct {
	root        string
	exts        []string
	maxSize     int64
	initialSync bool
	logger      *slog.Logger
}

var _ Feed = (*DirWatch)(nil)

// DirWatchOption configures a DirWatch.
type DirWatchOption func(*DirWatch)

// WithExtensions limits the watched files to the given extensions.
// An empty list accepts every file.
func WithExtensions(exts ...string) DirWatchOption {
	return func(d *DirWatch) {
		d.exts = make([]string, 0, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			d.exts = append(d.exts, ext)
		}
	}
}

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) DirWatchOption {
	return func(d *DirWatch) { d.maxSize = n }
}

// WithInitialSync controls whether existing files are emitted before
// watching starts. Enabled by default.
func WithInitialSync(enabled bool) DirWatchOption {
	return func(d *DirWatch) { d.initialSync = enabled }
}

// WithWatchLogger sets the logger.
func WithWatchLogger(logger *slog.Logger) DirWatchOption {
	return func(d *DirWatch) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDirWatch creates a directory feed rooted at root.
func NewDirWatch(root string, opts ...DirWatchOption) (*DirWatch, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	d := &DirWatch{
		root:        abs,
		exts:        DefaultExtensions,
		maxSize:     DefaultMaxFileSize,
		initialSync: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dirwatch", "root", abs)
	return d, nil
}

// Events starts watching and yields file events until ctx is done. The
// watcher is registered before the initial sync so no write is missed.
func (d *DirWatch) Events(ctx context.Context) iter.Seq2[core.IngestEvent, error] {
	return func(yield func(core.IngestEvent, error) bool) {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			yield(core.IngestEvent{}, fmt.Errorf("create watcher: %w", err))
			return
		}
		defer watcher.Close()

		var files []string
		err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != d.root && isHidden(entry.Name()) {
				if entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.IsDir() {
				return watcher.Add(path)
			}
			if d.matches(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			yield(core.IngestEvent{}, fmt.Errorf("watch %s: %w", d.root, err))
			return
		}

		if d.initialSync {
			for _, path := range files {
				if ctx.Err() != nil {
					return
				}
				ev, ok, err := d.read(path)
				if !ok && err == nil {
					continue
				}
				if !yield(ev, err) {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, open := <-watcher.Events:
				if !open {
					return
				}
				ev, ok, err := d.handle(watcher, event)
				if !ok && err == nil {
					continue
				}
				if !yield(ev, err) {
					return
				}
			case err, open := <-watcher.Errors:
				if !open {
					return
				}
				if !yield(core.IngestEvent{}, fmt.Errorf("watch %s: %w", d.root, err)) {
					return
				}
			}
		}
	}
}

// handle turns a filesystem notification into an event. ok is false when
// the notification produces nothing to ingest.
func (d *DirWatch) handle(watcher *fsnotify.Watcher, event fsnotify.Event) (core.IngestEvent, bool, error) {
	if isHidden(filepath.Base(event.Name)) {
		return core.IngestEvent{}, false, nil
	}

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			// Gone again before we looked.
			return core.IngestEvent{}, false, nil
		}
		if info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				return core.IngestEvent{}, false, fmt.Errorf("watch %s: %w", event.Name, err)
			}
			return core.IngestEvent{}, false, nil
		}
		if !d.matches(event.Name) {
			return core.IngestEvent{}, false, nil
		}
		return d.read(event.Name)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		d.logger.Debug("file removed", "path", event.Name)
	}
	return core.IngestEvent{}, false, nil
}

// read loads a file as an event. Empty and oversized files are skipped.
func (d *DirWatch) read(path string) (core.IngestEvent, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return core.IngestEvent{}, false, nil
	}
	if info.Size() == 0 {
		return core.IngestEvent{}, false, nil
	}
	if d.maxSize > 0 && info.Size() > d.maxSize {
		d.logger.Warn("skipping oversized file", "path", path, "size", info.Size(), "max", d.maxSize)
		return core.IngestEvent{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return core.IngestEvent{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return core.IngestEvent{}, false, err
	}

	return core.IngestEvent{
		DocID: filepath.ToSlash(rel),
		Text:  string(data),
		Metadata: core.Metadata{
			"path": path,
			"size": info.Size(),
		},
		Timestamp: info.ModTime().UTC(),
	}, true, nil
}

func (d *DirWatch) matches(path string) bool {
	if len(d.exts) == 0 {
		return true
	}
	return slices.Contains(d.exts, strings.ToLower(filepath.Ext(path)))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
