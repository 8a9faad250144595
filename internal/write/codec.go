package write

import (
	"archive/zip"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/zipbuild/internal/ziptype"
)

// codecs supplies compressors to the zip writer. The level of the next
// entry is set with use; encoders are reused while consecutive entries
// agree on the level and rebuilt only when it changes.
type codecs struct {
	deflateLevel int
	fw           *flate.Writer
	fwLevel      int

	zstdLevel zstd.EncoderLevel
	enc       *zstd.Encoder
	encLevel  zstd.EncoderLevel
}

func (c *codecs) register(zw *zip.Writer) {
	zw.RegisterCompressor(zip.Deflate, c.deflate)
	zw.RegisterCompressor(ziptype.CodeZstd, c.zstd)
}

// use selects the level for the next entry compressed with method code.
func (c *codecs) use(code uint16, level int) {
	switch code {
	case ziptype.CodeDeflate:
		c.deflateLevel = deflateLevel(level)
	case ziptype.CodeZstd:
		c.zstdLevel = zstdLevel(level)
	}
}

func (c *codecs) deflate(w io.Writer) (io.WriteCloser, error) {
	if c.fw != nil && c.fwLevel == c.deflateLevel {
		c.fw.Reset(w)
		return c.fw, nil
	}
	fw, err := flate.NewWriter(w, c.deflateLevel)
	if err != nil {
		return nil, err
	}
	c.fw, c.fwLevel = fw, c.deflateLevel
	return fw, nil
}

func (c *codecs) zstd(w io.Writer) (io.WriteCloser, error) {
	if c.enc != nil && c.encLevel == c.zstdLevel {
		c.enc.Reset(w)
		return c.enc, nil
	}
	if c.enc != nil {
		_ = c.enc.Close() //nolint:errcheck // previous entry already finished its frame
	}
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(c.zstdLevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	c.enc, c.encLevel = enc, c.zstdLevel
	return enc, nil
}

func (c *codecs) close() {
	if c.enc != nil {
		_ = c.enc.Close() //nolint:errcheck // no pending frame
		c.enc = nil
	}
	c.fw = nil
}

// deflateLevel maps an entry level onto the flate range.
func deflateLevel(level int) int {
	switch {
	case level < 0:
		return flate.DefaultCompression
	case level > flate.BestCompression:
		return flate.BestCompression
	default:
		return level
	}
}

// zstdLevel maps an entry level onto a zstd encoder level. Level -1 and 0
// select the encoder default.
func zstdLevel(level int) zstd.EncoderLevel {
	if level <= 0 {
		return zstd.SpeedDefault
	}
	return zstd.EncoderLevelFromZstd(level)
}

// registerDecompressors installs the codecs used to read included archives.
func registerDecompressors(zr *zip.Reader) {
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)
	zr.RegisterDecompressor(ziptype.CodeZstd, func(r io.Reader) io.ReadCloser {
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return errReadCloser{err: err}
		}
		return dec.IOReadCloser()
	})
}

type errReadCloser struct {
	err error
}

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errReadCloser) Close() error             { return nil }
