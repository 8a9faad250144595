// Package cache provides a build-result cache for archives.
//
// Archives are keyed by the digest of their fingerprint. Two archives with
// equal fingerprints produce identical bytes, so a cached result can stand
// in for a build. Every stored result carries the digest of its bytes, and
// backends verify it on read.
package cache

import (
	"errors"
	"time"

	"github.com/opencontainers/go-digest"
)

// MediaTypeZip is the media type of materialized archives.
const MediaTypeZip = "application/zip"

// AnnotationFingerprint records the fingerprint digest on result descriptors.
const AnnotationFingerprint = "dev.zipbuild.fingerprint"

// ErrDigestMismatch is returned when content does not match its record.
var ErrDigestMismatch = errors.New("cache: digest mismatch")

// Record describes one cached archive.
type Record struct {
	// Fingerprint is the fingerprint digest the archive was built from.
	Fingerprint digest.Digest
	// Digest is the digest of the archive bytes.
	Digest digest.Digest
	// Size is the archive size in bytes.
	Size int64
	// Entries is the number of directly added resources.
	Entries int
	// Created is when the record was stored.
	Created time.Time
}

// Backend persists built archives.
//
// Implementations must be safe for concurrent use and must only return
// content whose digest matches the record.
type Backend interface {
	// Get returns the record and bytes stored for a fingerprint digest.
	// It returns false if nothing valid is stored.
	Get(fingerprint digest.Digest) (Record, []byte, bool)

	// Put stores content under rec.Fingerprint.
	Put(rec Record, content []byte) error
}

// Verify reports whether content matches rec.
func Verify(rec Record, content []byte) error {
	return validate(rec, content)
}
