package worker

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChecksumBlockSize is the read block size the Checksum worker streams the
// file in, per spec.md §4.5.
const ChecksumBlockSize = 1 << 20 // 1 MiB

// ChecksumResult is the Checksum worker's payload, carried in a Result
// with Kind "checksum".
type ChecksumResult struct {
	Path       string
	SHA1       string
	MD5        string
	BytesRead  int64
	FileSize   int64
}

// Checksum returns a Task that streams path in ChecksumBlockSize blocks,
// updating SHA-1 and MD5 digests, yielding (checking ctx) between blocks.
// It emits one progress Result per block plus a terminal Result carrying
// the final ChecksumResult, or Cancelled true if ctx was cancelled first.
func Checksum(path string) Task {
	return func(ctx context.Context, emit ResultFunc) {
		f, err := os.Open(path)
		if err != nil {
			emit(Result{Kind: "checksum", Done: true, Err: err})
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			emit(Result{Kind: "checksum", Done: true, Err: err})
			return
		}
		fileSize := info.Size()

		sha := sha1.New()
		md := md5.New()
		buf := make([]byte, ChecksumBlockSize)
		var read int64

		for {
			if ctx.Err() != nil {
				emit(Result{Kind: "checksum", Done: true, Cancelled: true})
				return
			}
			n, rerr := f.Read(buf)
			if n > 0 {
				sha.Write(buf[:n])
				md.Write(buf[:n])
				read += int64(n)
				emit(Result{Kind: "checksum", Payload: ChecksumResult{
					Path: path, BytesRead: read, FileSize: fileSize,
				}})
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				emit(Result{Kind: "checksum", Done: true, Err: fmt.Errorf("checksum %s: %w", path, rerr)})
				return
			}
		}

		emit(Result{
			Kind: "checksum",
			Done: true,
			Payload: ChecksumResult{
				Path:      path,
				SHA1:      hex.EncodeToString(sha.Sum(nil)),
				MD5:       hex.EncodeToString(md.Sum(nil)),
				BytesRead: read,
				FileSize:  fileSize,
			},
		})
	}
}
