package worker

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sqliteMagic is the 16-byte header every SQLite 3 database file starts
// with, per spec.md §4.5.
var sqliteMagic = []byte("SQLite format 3\x00")

// DetectedDatabase is one candidate file DetectDatabase found.
type DetectedDatabase struct {
	Path     string
	Size     int64
	Modified time.Time
}

// DetectDatabase returns a Task that walks each of roots, checking every
// regular file whose extension is in allowedExtensions (or, when empty,
// every regular file) for the SQLite file-header magic bytes, yielding
// between directory entries. It emits one Result per match found plus a
// terminal Result.
func DetectDatabase(roots []string, allowedExtensions []string) Task {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	return func(ctx context.Context, emit ResultFunc) {
		found := 0
		for _, root := range roots {
			if ctx.Err() != nil {
				emit(Result{Kind: "detect_database", Done: true, Cancelled: true})
				return
			}
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					return nil // skip unreadable entries, keep walking
				}
				if d.IsDir() {
					return nil
				}
				if len(allowed) > 0 {
					if _, ok := allowed[strings.ToLower(filepath.Ext(path))]; !ok {
						return nil
					}
				}
				info, err := d.Info()
				if err != nil {
					return nil
				}
				if !hasSQLiteMagic(path) {
					return nil
				}
				found++
				emit(Result{Kind: "detect_database", Payload: DetectedDatabase{
					Path: path, Size: info.Size(), Modified: info.ModTime(),
				}})
				return nil
			})
			if err != nil && ctx.Err() != nil {
				emit(Result{Kind: "detect_database", Done: true, Cancelled: true})
				return
			}
		}
		emit(Result{Kind: "detect_database", Done: true, Payload: found})
	}
}

func hasSQLiteMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	header := make([]byte, len(sqliteMagic))
	n, err := f.Read(header)
	if err != nil || n < len(sqliteMagic) {
		return false
	}
	return bytes.Equal(header, sqliteMagic)
}
