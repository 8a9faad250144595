package write

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"time"
	"unicode/utf8"

	"github.com/meigma/zipbuild/internal/file"
	"github.com/meigma/zipbuild/internal/pathutil"
	"github.com/meigma/zipbuild/internal/ziptype"
)

const (
	dirMode  = 0o755
	fileMode = 0o644

	flagUTF8      = 0x800
	zipVersion20  = 20
	extTimeID     = 0x5455
	extTimeLength = 5
)

func (w *writer) writeDir(e ziptype.Entry) error {
	fh := &zip.FileHeader{
		Name:     pathutil.DirName(e.Path()),
		Method:   zip.Store,
		Modified: e.ModTimeOrEpoch(),
	}
	fh.SetMode(fs.ModeDir | dirMode)
	if _, err := w.zw.CreateHeader(fh); err != nil {
		return fmt.Errorf("write directory %s: %w", e.Path(), err)
	}
	return nil
}

func (w *writer) writeFile(e ziptype.Entry, c content) error {
	r := c.r
	if r == nil {
		r = emptyReader{}
	}
	code := e.Method().Resolve()
	if code == ziptype.CodeStore {
		return w.writeStored(e, r, c)
	}

	w.codecs.use(code, e.Level())
	fh := &zip.FileHeader{
		Name:     e.Path(),
		Method:   code,
		Modified: e.ModTimeOrEpoch(),
	}
	fh.SetMode(fileMode)
	dst, err := w.zw.CreateHeader(fh)
	if err != nil {
		return fmt.Errorf("write %s: %w", e.Path(), err)
	}
	if _, err := file.CopyWithContext(w.ctx, dst, r, w.buf); err != nil {
		return fmt.Errorf("write %s: %w", e.Path(), err)
	}
	return nil
}

// writeStored writes an uncompressed entry. The local header carries CRC
// and size, so unknown content is buffered fully before the header is
// emitted.
func (w *writer) writeStored(e ziptype.Entry, r io.Reader, c content) error {
	if !c.known {
		data, err := w.bufferStored(r)
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Path(), err)
		}
		return w.writeRaw(e, data, crc32.ChecksumIEEE(data), nil)
	}
	return w.writeRaw(e, nil, c.crc, &sized{r: r, size: c.size})
}

// bufferStored reads r fully into a buffer reused across entries.
func (w *writer) bufferStored(r io.Reader) ([]byte, error) {
	w.stored.Reset()
	if _, err := w.stored.ReadFrom(r); err != nil {
		return nil, err
	}
	return w.stored.Bytes(), nil
}

// sized is content of a declared length.
type sized struct {
	r    io.Reader
	size uint64
}

// writeRaw writes a stored entry with a precomputed header. Either data or
// stream supplies the bytes.
func (w *writer) writeRaw(e ziptype.Entry, data []byte, crc uint32, stream *sized) error {
	size := uint64(len(data))
	if stream != nil {
		size = stream.size
	}
	fh := rawHeader(e.Path(), e.ModTimeOrEpoch(), crc, size)
	dst, err := w.zw.CreateRaw(fh)
	if err != nil {
		return fmt.Errorf("write %s: %w", e.Path(), err)
	}
	if stream == nil {
		if _, err := dst.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", e.Path(), err)
		}
		return nil
	}
	n, err := file.CopyWithContext(w.ctx, dst, io.LimitReader(stream.r, int64(size)+1), w.buf)
	if err != nil {
		return fmt.Errorf("write %s: %w", e.Path(), err)
	}
	if n != size {
		return fmt.Errorf("write %s: content size changed: expected %d, got %d", e.Path(), size, n)
	}
	return nil
}

// rawHeader builds the header of a stored entry whose CRC and size are
// known. It fills in what CreateHeader would otherwise derive, so raw and
// streamed entries carry the same metadata.
func rawHeader(name string, mod time.Time, crc uint32, size uint64) *zip.FileHeader {
	fh := &zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		CRC32:              crc,
		CompressedSize64:   size,
		UncompressedSize64: size,
	}
	fh.SetMode(fileMode)
	fh.CreatorVersion = fh.CreatorVersion&0xff00 | zipVersion20
	fh.ReaderVersion = zipVersion20
	if !isASCII(name) && utf8.ValidString(name) {
		fh.Flags |= flagUTF8
	}
	fh.ModifiedDate, fh.ModifiedTime = msDosTime(mod)
	fh.Extra = extendedTimestamp(mod)
	return fh
}

// msDosTime converts t to MS-DOS date and time fields the way
// archive/zip does for streamed entries.
func msDosTime(t time.Time) (fDate, fTime uint16) {
	fDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9) //nolint:gosec // wraps like archive/zip
	fTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)     //nolint:gosec // bounded by clock values
	return fDate, fTime
}

// extendedTimestamp returns the extended timestamp extra field holding the
// modification time.
func extendedTimestamp(t time.Time) []byte {
	b := make([]byte, 9)
	binary.LittleEndian.PutUint16(b[0:], extTimeID)
	binary.LittleEndian.PutUint16(b[2:], extTimeLength)
	b[4] = 1 // flags: mod time
	binary.LittleEndian.PutUint32(b[5:], uint32(t.Unix())) //nolint:gosec // ZIP stores 32-bit times
	return b
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
