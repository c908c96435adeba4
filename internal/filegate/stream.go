package filegate

// stream.go moves upload bodies to disk in fixed-size chunks so peak memory
// per transfer is one chunk regardless of file size. The context is checked
// at every chunk boundary, which is where a transfer yields to cancellation.

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the streaming buffer used when none is configured.
const DefaultChunkSize = 10 << 20

// copyChunks copies src into dst chunk by chunk and returns the bytes written.
// A positive limit caps the total; exceeding it yields ErrFileTooLarge.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, chunkSize, limit int64) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if limit > 0 && chunkSize > limit+1 {
		chunkSize = limit + 1
	}
	buf := make([]byte, chunkSize)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if limit > 0 && written+int64(n) > limit {
				return written, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write chunk: %w", err)
			}
			written += int64(n)
		}

		switch {
		case rerr == nil:
			continue
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			return written, nil
		default:
			return written, fmt.Errorf("read chunk: %w", rerr)
		}
	}
}
