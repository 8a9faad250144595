package disk

import (
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/zipbuild/cache"
	"github.com/meigma/zipbuild/internal/fb"
)

// encodeRecord serializes rec to FlatBuffers format.
func encodeRecord(rec cache.Record) []byte {
	builder := flatbuffers.NewBuilder(256)

	fingerprintOffset := builder.CreateString(rec.Fingerprint.String())
	digestOffset := builder.CreateString(rec.Digest.String())

	fb.RecordStart(builder)
	fb.RecordAddFingerprint(builder, fingerprintOffset)
	fb.RecordAddDigest(builder, digestOffset)
	fb.RecordAddSize(builder, uint64(rec.Size))       //nolint:gosec // size is non-negative
	fb.RecordAddEntries(builder, uint64(rec.Entries)) //nolint:gosec // count is non-negative
	if !rec.Created.IsZero() {
		fb.RecordAddCreatedNs(builder, rec.Created.UnixNano())
	}
	recordOffset := fb.RecordEnd(builder)

	fb.FinishRecordBuffer(builder, recordOffset)
	return builder.FinishedBytes()
}

// decodeRecord parses a record written by encodeRecord.
func decodeRecord(data []byte) (rec cache.Record, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return cache.Record{}, errors.New("record too short")
	}
	// Accessors index the buffer without bounds checks of their own.
	defer func() {
		if r := recover(); r != nil {
			rec, err = cache.Record{}, fmt.Errorf("malformed record: %v", r)
		}
	}()

	r := fb.GetRootAsRecord(data, 0)
	rec.Fingerprint, err = digest.Parse(string(r.Fingerprint()))
	if err != nil {
		return cache.Record{}, fmt.Errorf("record fingerprint: %w", err)
	}
	rec.Digest, err = digest.Parse(string(r.Digest()))
	if err != nil {
		return cache.Record{}, fmt.Errorf("record digest: %w", err)
	}
	rec.Size = int64(r.Size())     //nolint:gosec // written from an int64
	rec.Entries = int(r.Entries()) //nolint:gosec // written from an int
	if ns := r.CreatedNs(); ns != 0 {
		rec.Created = time.Unix(0, ns).UTC()
	}
	return rec, nil
}
