package file

import (
	"context"
	"io"
)

// CopyWithContext copies src to dst through buf until EOF, checking ctx
// between reads. It returns the number of bytes written.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (uint64, error) {
	cw := &CountingWriter{W: dst}
	for {
		if err := ctx.Err(); err != nil {
			return cw.N, err
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := cw.Write(buf[:nr])
			if ew != nil {
				return cw.N, ew
			}
			if nw != nr {
				return cw.N, io.ErrShortWrite
			}
		}
		if er == io.EOF {
			return cw.N, nil
		}
		if er != nil {
			return cw.N, er
		}
	}
}
