package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies where a location's bytes live.
type Kind int

const (
	// KindLocal is a path on the local file system.
	KindLocal Kind = iota
	// KindHTTP is an http or https URL.
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindHTTP:
		return "http"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Location names the bytes of a resource or included archive.
type Location struct {
	Kind Kind
	Path string
}

// Local returns a local file location.
func Local(path string) Location {
	return Location{Kind: KindLocal, Path: path}
}

// ParseLocation classifies s. http:// and https:// URLs are remote; a
// file:// prefix is stripped; everything else is a local path.
func ParseLocation(s string) (Location, error) {
	switch {
	case s == "":
		return Location{}, errors.New("empty location")
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return Location{Kind: KindHTTP, Path: s}, nil
	case strings.HasPrefix(s, "file://"):
		return Local(strings.TrimPrefix(s, "file://")), nil
	default:
		return Local(s), nil
	}
}

func (l Location) String() string {
	return l.Kind.String() + ":" + l.Path
}

// Resolve opens the source a location names. Options apply to HTTP
// locations only.
func Resolve(ctx context.Context, loc Location, opts ...Option) (Source, error) {
	switch loc.Kind {
	case KindLocal:
		f, err := NewFile(loc.Path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case KindHTTP:
		h, err := NewHTTP(ctx, loc.Path, opts...)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("resolve %s: unknown location kind", loc)
	}
}
