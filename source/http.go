package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

// errChanged is returned when the remote content no longer matches the
// validators seen when the source was created.
var errChanged = errors.New("remote content changed")

// HTTP is a source backed by a remote URL. The remote must support range
// requests: includes read the archive's central directory with positioned
// reads instead of downloading it first.
//
// Every read after NewHTTP carries If-Match or If-Unmodified-Since when the
// server supplied an ETag or Last-Modified, so one build never mixes two
// versions of the remote content.
type HTTP struct {
	url     string
	client  *http.Client
	headers http.Header

	size         int64
	etag         string
	lastModified string
}

// Option configures an HTTP source.
type Option func(*HTTP)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTP) {
		s.client = client
	}
}

// WithHeader sets a header on each request.
func WithHeader(key, value string) Option {
	return func(s *HTTP) {
		if s.headers == nil {
			s.headers = make(http.Header)
		}
		s.headers.Set(key, value)
	}
}

// NewHTTP creates an HTTP source. It issues a one-byte range request to
// learn the content size and validators.
func NewHTTP(ctx context.Context, url string, opts ...Option) (*HTTP, error) {
	s := &HTTP{url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if err := s.probe(ctx); err != nil {
		return nil, notFound(url, err)
	}
	return s, nil
}

// Size returns the total size of the remote content.
func (s *HTTP) Size() int64 {
	return s.size
}

// ContentID implements Source. It is derived from the URL and the
// strongest validator the server offered.
func (s *HTTP) ContentID() digest.Digest {
	id := "url:" + s.url
	switch {
	case s.etag != "":
		id += "|etag:" + s.etag
	case s.lastModified != "":
		id += "|mod:" + s.lastModified + "|size:" + strconv.FormatInt(s.size, 10)
	default:
		id += "|size:" + strconv.FormatInt(s.size, 10)
	}
	return digest.FromString(id)
}

// Open implements Source.
func (s *HTTP) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.get(ctx, "")
	if err != nil {
		return nil, notFound(s.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, notFound(s.url, statusErr(resp))
	}
	return &limitedBody{Reader: io.LimitReader(resp.Body, s.size), body: resp.Body}, nil
}

// OpenReaderAt implements RandomAccess. Each ReadAt issues one range
// request bound to ctx.
func (s *HTTP) OpenReaderAt(ctx context.Context) (ReaderAt, error) {
	return &httpReaderAt{src: s, ctx: ctx}, nil
}

type httpReaderAt struct {
	src *HTTP
	ctx context.Context
}

func (r *httpReaderAt) Size() int64  { return r.src.size }
func (r *httpReaderAt) Close() error { return nil }

// ReadAt implements io.ReaderAt. A read crossing the end of the content
// returns the available bytes with io.EOF.
func (r *httpReaderAt) ReadAt(p []byte, off int64) (int, error) {
	size := r.src.size
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), size-off)

	resp, err := r.src.get(r.ctx, fmt.Sprintf("bytes=%d-%d", off, off+want-1))
	if err != nil {
		return 0, err
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusPartialContent {
		return 0, statusErr(resp)
	}

	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// probe learns size and validators from a one-byte range request.
func (s *HTTP) probe(ctx context.Context) error {
	resp, err := s.get(ctx, "bytes=0-0")
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		return errors.New("range requests not supported")
	default:
		return statusErr(resp)
	}
	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	s.size = size
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

// get issues a GET, optionally for a byte range. Validators are attached
// once known.
func (s *HTTP) get(ctx context.Context, byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	// Sizes are byte offsets into the stored representation.
	req.Header.Set("Accept-Encoding", "identity")
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	if s.etag != "" {
		req.Header.Set("If-Match", s.etag)
	} else if s.lastModified != "" {
		req.Header.Set("If-Unmodified-Since", s.lastModified)
	}
	return s.client.Do(req)
}

func statusErr(resp *http.Response) error {
	if resp.StatusCode == http.StatusPreconditionFailed {
		return errChanged
	}
	return fmt.Errorf("unexpected status: %s", resp.Status)
}

// drain reads and closes body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best-effort drain for connection reuse
	_ = body.Close()
}

// limitedBody reads at most the probed size and drains the body on close.
type limitedBody struct {
	io.Reader
	body io.ReadCloser
}

func (b *limitedBody) Close() error {
	drain(b.body)
	return nil
}

// parseContentRange extracts the total size from a Content-Range value of
// the form "bytes start-end/size".
func parseContentRange(value string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
