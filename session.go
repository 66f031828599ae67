// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

package metastream

import (
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Options configures a Session. All fields are optional.
type Options struct {
	// Warnf receives non-fatal diagnostics, e.g. tags skipped because the
	// container cannot store them. The default is a no-op.
	Warnf func(string, ...any)

	// OpenStore opens a metadata store over an image source. The default
	// opens JPEG images.
	OpenStore func(r io.ReadSeeker, warnf func(string, ...any)) (Store, error)
}

// Session runs metadata operations over image buffers and files.
type Session struct {
	opts Options
}

// NewSession creates a Session, applying defaults for unset options.
func NewSession(opts Options) *Session {
	if opts.Warnf == nil {
		opts.Warnf = func(string, ...any) {}
	}
	if opts.OpenStore == nil {
		opts.OpenStore = func(r io.ReadSeeker, warnf func(string, ...any)) (Store, error) {
			return OpenJPEG(r, warnf)
		}
	}
	return &Session{opts: opts}
}

// AddGPSInfo returns a copy of the image in buf with its GPS position
// replaced by the given coordinates. Any pre-existing GPS tags are removed
// first, so stale fields never survive next to the new position. buf is
// never modified; on error the returned slice is nil.
func (s *Session) AddGPSInfo(buf []byte, lat, long, alt float64) ([]byte, error) {
	src := NewBufStream(buf)
	store, err := s.opts.OpenStore(IOStream(src), s.opts.Warnf)
	if err != nil {
		s.opts.Warnf("open image: %v", err)
		return nil, err
	}
	if err := store.ReadMetadata(); err != nil {
		s.opts.Warnf("read metadata: %v", err)
		return nil, err
	}

	store.DeleteTags(IsGPSTag)

	info := GPSInfo{Latitude: lat, Longitude: long, Altitude: alt}
	for _, t := range info.Encode() {
		if t.SkipIfPresent {
			if _, ok := store.TagString(t.Key); ok {
				continue
			}
		}
		if err := store.SetTag(t.Key, t.Value); err != nil {
			s.opts.Warnf("set %s: %v", t.Key, err)
			return nil, err
		}
	}

	out := NewBufStreamSize(len(buf) + 1024)
	if err := store.SaveTo(out); err != nil {
		s.opts.Warnf("save image: %v", err)
		return nil, err
	}
	return out.Detach(), nil
}

// TagValue is one looked-up tag value. Present distinguishes an absent tag
// from a present but empty one.
type TagValue struct {
	Value   string
	Present bool
}

// TagResult holds the values of a tag query, in the order the keys were
// given, plus the media type of the queried image.
type TagResult struct {
	Values []TagValue
	MIME   string
}

// Tags reads the image at path and looks up the given tag keys.
func (s *Session) Tags(path string, keys []string) (*TagResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	store, err := s.opts.OpenStore(f, s.opts.Warnf)
	if err != nil {
		return nil, err
	}
	if err := store.ReadMetadata(); err != nil {
		return nil, err
	}

	res := &TagResult{Values: make([]TagValue, len(keys))}
	for i, key := range keys {
		v, ok := store.TagString(key)
		res.Values[i] = TagValue{Value: v, Present: ok}
	}
	if mime, ok := store.MIMEType(); ok {
		res.MIME = mime
	}
	return res, nil
}

// Rating returns the xmp:Rating of the image at path, or -1 when the image
// cannot be read or carries no rating.
func (s *Session) Rating(path string) int {
	res, err := s.Tags(path, []string{"Xmp.xmp.Rating"})
	if err != nil {
		s.opts.Warnf("read rating: %v", err)
		return -1
	}
	v := res.Values[0]
	if !v.Present {
		return -1
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		s.opts.Warnf("invalid rating %q", v.Value)
		return -1
	}
	return n
}
