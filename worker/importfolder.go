package worker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ImportCandidate is one file ImportFolder surfaces as eligible for
// import.
type ImportCandidate struct {
	Path string
	Size int64
}

// ImportFolder returns a Task that walks dir once, emitting every regular
// file as an ImportCandidate (yielding between directory entries), then —
// if watch is true — keeps the task alive watching dir with fsnotify and
// emitting newly created or written files until ctx is cancelled.
func ImportFolder(dir string, watch bool) Task {
	return func(ctx context.Context, emit ResultFunc) {
		count := 0
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			count++
			emit(Result{Kind: "import_folder", Payload: ImportCandidate{Path: path, Size: info.Size()}})
			return nil
		})
		if err != nil {
			emit(Result{Kind: "import_folder", Done: true, Cancelled: true})
			return
		}

		if !watch {
			emit(Result{Kind: "import_folder", Done: true, Payload: count})
			return
		}

		watcher, werr := fsnotify.NewWatcher()
		if werr != nil {
			emit(Result{Kind: "import_folder", Done: true, Err: werr})
			return
		}
		defer watcher.Close()
		if werr := watcher.Add(dir); werr != nil {
			emit(Result{Kind: "import_folder", Done: true, Err: werr})
			return
		}

		for {
			select {
			case <-ctx.Done():
				emit(Result{Kind: "import_folder", Done: true, Cancelled: true})
				return
			case event, ok := <-watcher.Events:
				if !ok {
					emit(Result{Kind: "import_folder", Done: true})
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				size := int64(0)
				if info, err := os.Stat(event.Name); err == nil {
					size = info.Size()
				}
				emit(Result{Kind: "import_folder", Payload: ImportCandidate{Path: event.Name, Size: size}})
			case werr, ok := <-watcher.Errors:
				if !ok {
					continue
				}
				emit(Result{Kind: "import_folder", Err: werr})
			}
		}
	}
}
